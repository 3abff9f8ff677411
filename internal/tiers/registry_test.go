package tiers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validTiersYAML = `
profiles:
  balanced:
    description: "test profile"
    core_pct: 0.5
    swing_pct: 0.3
    active_pct: 0.2
    max_daily_trades: 8
    min_interval_seconds: 3600
    reserve_pct: 0.1
    max_position_pct: 0.8
    min_profit_pct: 0.02
    sell_pct: 0.25
    target_allocation_pct: 0.6
  conservative:
    core_pct: 0.7
    swing_pct: 0.2
    active_pct: 0.1
    max_daily_trades: 3
`

func writeTiersFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewRegistry_LoadsProfiles(t *testing.T) {
	r, err := NewRegistry(writeTiersFile(t, validTiersYAML))
	require.NoError(t, err)

	p, ok := r.Resolve("balanced")
	require.True(t, ok)
	assert.Equal(t, "balanced", p.Name)
	assert.InDelta(t, 0.5, p.CorePct, 1e-9)
	assert.Equal(t, 8, p.MaxDailyTrades)
	assert.Equal(t, time.Hour, p.MinInterval())
	assert.InDelta(t, 0.5, p.Tiers().TradeablePct(), 1e-9)

	_, ok = r.Resolve("missing")
	assert.False(t, ok)

	snap := r.Snapshot()
	assert.Len(t, snap.Profiles, 2)
	assert.Equal(t, int64(1), snap.Version)
}

func TestNewRegistry_RejectsBadTierSum(t *testing.T) {
	_, err := NewRegistry(writeTiersFile(t, `
profiles:
  broken:
    core_pct: 0.5
    swing_pct: 0.5
    active_pct: 0.2
    max_daily_trades: 5
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1.0")
}

func TestNewRegistry_RejectsUnknownField(t *testing.T) {
	_, err := NewRegistry(writeTiersFile(t, `
profiles:
  typo:
    core_pct: 0.5
    swing_pct: 0.3
    active_pct: 0.2
    max_daily_trades: 5
    max_dailly_trades: 5
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema")
}

func TestNewRegistry_RejectsEmptyProfiles(t *testing.T) {
	_, err := NewRegistry(writeTiersFile(t, "profiles: {}\n"))
	assert.Error(t, err)
}

func TestNewRegistry_MissingFile(t *testing.T) {
	_, err := NewRegistry(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	_, err = NewRegistry("  ")
	assert.Error(t, err)
}

func TestProfile_Validate(t *testing.T) {
	p := Profile{
		Name:           "x",
		CorePct:        0.5,
		SwingPct:       0.3,
		ActivePct:      0.2,
		MaxDailyTrades: 1,
	}
	assert.NoError(t, p.validate())

	p.MaxDailyTrades = 0
	assert.Error(t, p.validate())

	p.MaxDailyTrades = 1
	p.ReservePct = 1.5
	assert.Error(t, p.validate())
}
