package position

import (
	"tiller/internal/types"
)

// ApplyBuy 以加权平均更新成本：new_avg = (old_qty*old_avg + qty*price) / (old_qty+qty)。
// 返回更新后的持仓副本，不修改入参。
func ApplyBuy(pos types.PositionState, quantity, price float64) types.PositionState {
	if quantity <= 0 || price <= 0 {
		return pos
	}
	oldQty := decFromFloat(pos.TotalQuantity)
	oldAvg := decFromFloat(pos.AverageCost)
	buyQty := decFromFloat(quantity)
	buyPrice := decFromFloat(price)

	newQty := oldQty.Add(buyQty)
	newAvg := oldQty.Mul(oldAvg).Add(buyQty.Mul(buyPrice)).Div(newQty)

	pos.TotalQuantity = decToFloat(newQty)
	pos.AverageCost = decToFloat(newAvg)
	return pos
}

// ApplySell 结转已实现盈亏：realized = (price - avg_cost) * qty。
// 均价在卖出时保持不变（加权平均模型，不做逐笔批次追踪）。
func ApplySell(pos types.PositionState, quantity, price float64) (realizedGain float64, updated types.PositionState) {
	updated = pos
	if quantity <= 0 {
		return 0, updated
	}
	if quantity > pos.TotalQuantity {
		quantity = pos.TotalQuantity
	}
	sellQty := decFromFloat(quantity)
	gain := decFromFloat(price).Sub(decFromFloat(pos.AverageCost)).Mul(sellQty)

	updated.TotalQuantity = decToFloat(decFromFloat(pos.TotalQuantity).Sub(sellQty))
	updated.RealizedPnL = decToFloat(decFromFloat(pos.RealizedPnL).Add(gain))
	return decToFloat(gain), updated
}

// UnrealizedPnL 计算当前价下的浮动盈亏：(current - avg_cost) * total。
func UnrealizedPnL(pos types.PositionState, currentPrice float64) float64 {
	if pos.TotalQuantity == 0 {
		return 0
	}
	diff := decFromFloat(currentPrice).Sub(decFromFloat(pos.AverageCost))
	return decToFloat(diff.Mul(decFromFloat(pos.TotalQuantity)))
}
