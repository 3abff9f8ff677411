package gormstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tiller/internal/store"
	"tiller/internal/store/model"
	"tiller/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPositionRepo_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Positions().Get(ctx, "BTC/USDT")
	assert.ErrorIs(t, err, store.ErrNotFound)

	pos := types.PositionState{
		Symbol:        "BTC/USDT",
		TotalQuantity: 1.5,
		Tiers:         types.TierAllocation{CorePct: 0.5, SwingPct: 0.3, ActivePct: 0.2},
		AverageCost:   42000,
		RealizedPnL:   120.5,
		LastUpdated:   time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.Positions().Put(ctx, pos))

	got, err := s.Positions().Get(ctx, "BTC/USDT")
	require.NoError(t, err)
	assert.InDelta(t, 1.5, got.TotalQuantity, 1e-9)
	assert.InDelta(t, 42000, got.AverageCost, 1e-9)
	assert.InDelta(t, 0.3, got.Tiers.SwingPct, 1e-9)

	// 单键覆盖：第二次 Put 整体替换
	pos.TotalQuantity = 2.0
	require.NoError(t, s.Positions().Put(ctx, pos))
	got, err = s.Positions().Get(ctx, "BTC/USDT")
	require.NoError(t, err)
	assert.InDelta(t, 2.0, got.TotalQuantity, 1e-9)
}

func TestActivityRepo_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Activities().Get(ctx, "BTC/USDT")
	assert.ErrorIs(t, err, store.ErrNotFound)

	last := time.Now().UTC().Truncate(time.Second)
	activity := types.TradeActivity{
		Symbol:      "BTC/USDT",
		Day:         "2026-08-23",
		DailyCount:  3,
		LastTradeAt: &last,
	}
	require.NoError(t, s.Activities().Put(ctx, activity))

	got, err := s.Activities().Get(ctx, "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, 3, got.DailyCount)
	assert.Equal(t, "2026-08-23", got.Day)
	require.NotNil(t, got.LastTradeAt)
	assert.True(t, got.LastTradeAt.Equal(last))
}

func TestHistoryRepo_TrimsFIFO(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 7; i++ {
		err := s.History().Append(ctx, "BTC/USDT", types.PricePoint{
			Value:      100 + float64(i),
			ObservedAt: base.Add(time.Duration(i) * time.Hour),
		}, 5)
		require.NoError(t, err)
	}

	points, err := s.History().Recent(ctx, "BTC/USDT", 10)
	require.NoError(t, err)
	require.Len(t, points, 5)
	// 最旧的两个点被淘汰，剩余升序
	assert.InDelta(t, 102, points[0].Value, 1e-9)
	assert.InDelta(t, 106, points[4].Value, 1e-9)
	for i := 1; i < len(points); i++ {
		assert.True(t, points[i].ObservedAt.After(points[i-1].ObservedAt))
	}
}

func TestHistoryRepo_SymbolIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.History().Append(ctx, "BTC/USDT", types.PricePoint{Value: 1, ObservedAt: now}, 10))
	require.NoError(t, s.History().Append(ctx, "ETH/USDT", types.PricePoint{Value: 2, ObservedAt: now}, 10))

	points, err := s.History().Recent(ctx, "BTC/USDT", 10)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.InDelta(t, 1, points[0].Value, 1e-9)
}

func TestPlanRepo_AppendAndTrim(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := s.Plans().Append(ctx, &model.RebalancePlanModel{
			TraceID:       string(rune('a' + i)),
			Symbol:        "BTC/USDT",
			Action:        "HOLD",
			ReasonCode:    "no_signal",
			State:         "RECORDED",
			SignalJSON:    []byte(`{}`),
			ChecksJSON:    []byte(`[]`),
			TiersJSON:     []byte(`{}`),
			CreatedAtUnix: int64(1000 + i),
		}, 3)
		require.NoError(t, err)
	}

	plans, err := s.Plans().ListRecent(ctx, "BTC/USDT", 10)
	require.NoError(t, err)
	require.Len(t, plans, 3)
	// 最新在前
	assert.Equal(t, "e", plans[0].TraceID)
	assert.Equal(t, "c", plans[2].TraceID)
}
