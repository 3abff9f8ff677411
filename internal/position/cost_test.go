package position

import (
	"testing"

	"tiller/internal/types"

	"github.com/stretchr/testify/assert"
)

func TestApplyBuy_EmptyPosition(t *testing.T) {
	pos := types.PositionState{Symbol: "BTC/USDT"}
	updated := ApplyBuy(pos, 100, 10)

	assert.InDelta(t, 100, updated.TotalQuantity, 1e-9)
	assert.InDelta(t, 10, updated.AverageCost, 1e-9)
}

func TestApplyBuy_WeightedAverage(t *testing.T) {
	pos := types.PositionState{Symbol: "BTC/USDT", TotalQuantity: 100, AverageCost: 10}
	updated := ApplyBuy(pos, 100, 20)

	assert.InDelta(t, 200, updated.TotalQuantity, 1e-9)
	assert.InDelta(t, 15, updated.AverageCost, 1e-9)
	// 入参不被修改
	assert.InDelta(t, 100, pos.TotalQuantity, 1e-9)
}

func TestApplyBuy_IgnoresInvalid(t *testing.T) {
	pos := types.PositionState{Symbol: "BTC/USDT", TotalQuantity: 100, AverageCost: 10}

	assert.Equal(t, pos, ApplyBuy(pos, 0, 10))
	assert.Equal(t, pos, ApplyBuy(pos, 10, 0))
}

func TestApplySell_RealizedGain(t *testing.T) {
	pos := types.PositionState{Symbol: "BTC/USDT", TotalQuantity: 100, AverageCost: 10}
	gain, updated := ApplySell(pos, 50, 15)

	assert.InDelta(t, 250, gain, 1e-9)
	assert.InDelta(t, 50, updated.TotalQuantity, 1e-9)
	assert.InDelta(t, 10, updated.AverageCost, 1e-9) // 卖出不改均价
	assert.InDelta(t, 250, updated.RealizedPnL, 1e-9)
}

func TestApplySell_Loss(t *testing.T) {
	pos := types.PositionState{Symbol: "BTC/USDT", TotalQuantity: 100, AverageCost: 10}
	gain, updated := ApplySell(pos, 40, 8)

	assert.InDelta(t, -80, gain, 1e-9)
	assert.InDelta(t, -80, updated.RealizedPnL, 1e-9)
}

func TestApplySell_CapsAtTotal(t *testing.T) {
	pos := types.PositionState{Symbol: "BTC/USDT", TotalQuantity: 100, AverageCost: 10}
	gain, updated := ApplySell(pos, 150, 12)

	assert.InDelta(t, 200, gain, 1e-9) // 只能卖 100
	assert.InDelta(t, 0, updated.TotalQuantity, 1e-9)
}

func TestUnrealizedPnL(t *testing.T) {
	pos := types.PositionState{Symbol: "BTC/USDT", TotalQuantity: 100, AverageCost: 10}

	assert.InDelta(t, 500, UnrealizedPnL(pos, 15), 1e-9)
	assert.InDelta(t, -300, UnrealizedPnL(pos, 7), 1e-9)
	assert.Zero(t, UnrealizedPnL(pos, 10))
	assert.Zero(t, UnrealizedPnL(types.PositionState{}, 15))
}

func TestBuySellRoundTrip(t *testing.T) {
	pos := types.PositionState{Symbol: "BTC/USDT"}
	pos = ApplyBuy(pos, 100, 10)
	pos = ApplyBuy(pos, 50, 16)
	assert.InDelta(t, 12, pos.AverageCost, 1e-9)

	gain, pos := ApplySell(pos, 150, 12)
	assert.InDelta(t, 0, gain, 1e-9)
	assert.InDelta(t, 0, pos.TotalQuantity, 1e-9)
	assert.Zero(t, UnrealizedPnL(pos, 12))
}
