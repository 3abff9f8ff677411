package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierAllocation_Validate(t *testing.T) {
	ok := TierAllocation{CorePct: 0.5, SwingPct: 0.3, ActivePct: 0.2}
	assert.NoError(t, ok.Validate())

	bad := TierAllocation{CorePct: 0.5, SwingPct: 0.3, ActivePct: 0.3}
	assert.Error(t, bad.Validate())

	negative := TierAllocation{CorePct: -0.1, SwingPct: 0.6, ActivePct: 0.5}
	assert.Error(t, negative.Validate())
}

func TestTierAllocation_FloatTolerance(t *testing.T) {
	// 0.1*3 + 0.7 的浮点误差必须被容忍
	alloc := TierAllocation{CorePct: 0.7, SwingPct: 0.1 + 0.1 + 0.1, ActivePct: 0}
	assert.NoError(t, alloc.Validate())
}

func TestPositionState_Quantities(t *testing.T) {
	pos := PositionState{
		TotalQuantity: 10000,
		Tiers:         TierAllocation{CorePct: 0.7, SwingPct: 0.2, ActivePct: 0.1},
	}

	assert.InDelta(t, 7000, pos.CoreQuantity(), 1e-6)
	assert.InDelta(t, 3000, pos.TradeableQuantity(), 1e-6)
	assert.InDelta(t, pos.TotalQuantity, pos.CoreQuantity()+pos.TradeableQuantity(), 1e-6)
}

func TestPositionState_Validate(t *testing.T) {
	tiers := TierAllocation{CorePct: 0.5, SwingPct: 0.3, ActivePct: 0.2}

	assert.NoError(t, PositionState{TotalQuantity: 1, Tiers: tiers}.Validate())
	assert.Error(t, PositionState{TotalQuantity: -1, Tiers: tiers}.Validate())
	assert.Error(t, PositionState{AverageCost: -5, Tiers: tiers}.Validate())
}

func TestTradeActivity_CountResetsAcrossUTCDays(t *testing.T) {
	lateNight := time.Date(2026, 8, 22, 23, 59, 0, 0, time.UTC)
	nextDay := time.Date(2026, 8, 23, 0, 1, 0, 0, time.UTC)

	activity := TradeActivity{Symbol: "BTC/USDT"}
	activity = activity.RecordTrade(lateNight)
	require.Equal(t, 1, activity.CountOn(lateNight))

	// 跨过 UTC 午夜后计数归零
	assert.Equal(t, 0, activity.CountOn(nextDay))

	activity = activity.RecordTrade(nextDay)
	assert.Equal(t, 1, activity.DailyCount)
	assert.Equal(t, "2026-08-23", activity.Day)
}

func TestTradeActivity_RecordTradeAccumulates(t *testing.T) {
	now := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	activity := TradeActivity{Symbol: "BTC/USDT"}

	activity = activity.RecordTrade(now)
	activity = activity.RecordTrade(now.Add(2 * time.Hour))

	assert.Equal(t, 2, activity.DailyCount)
	require.NotNil(t, activity.LastTradeAt)
	assert.Equal(t, now.Add(2*time.Hour), *activity.LastTradeAt)
}
