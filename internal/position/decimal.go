package position

import (
	"math"

	"github.com/shopspring/decimal"
)

// 资金与数量运算统一走 decimal，避免 float 累积误差影响成本与钳制边界。

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(val)
}

func decToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}
