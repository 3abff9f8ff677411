package cache

import (
	"testing"
	"time"

	"tiller/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotCache_PutGet(t *testing.T) {
	c := NewSnapshotCache(time.Minute)

	_, ok := c.Get("BTC/USDT")
	assert.False(t, ok)

	c.Put(types.PositionSnapshot{Symbol: "BTC/USDT", TotalQuantity: 10})
	got, ok := c.Get("BTC/USDT")
	require.True(t, ok)
	assert.InDelta(t, 10, got.TotalQuantity, 1e-9)
}

func TestSnapshotCache_Expires(t *testing.T) {
	c := NewSnapshotCache(10 * time.Millisecond)
	c.Put(types.PositionSnapshot{Symbol: "BTC/USDT"})

	time.Sleep(20 * time.Millisecond)
	_, ok := c.Get("BTC/USDT")
	assert.False(t, ok)
}

func TestSnapshotCache_WholeReplace(t *testing.T) {
	c := NewSnapshotCache(time.Minute)
	c.Put(types.PositionSnapshot{Symbol: "BTC/USDT", TotalQuantity: 10, UnrealizedPnL: 5})
	c.Put(types.PositionSnapshot{Symbol: "BTC/USDT", TotalQuantity: 12})

	got, ok := c.Get("BTC/USDT")
	require.True(t, ok)
	assert.InDelta(t, 12, got.TotalQuantity, 1e-9)
	assert.Zero(t, got.UnrealizedPnL)
}
