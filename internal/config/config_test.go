package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
engine:
  symbol: "BTC/USDT"
`))
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.App.Env)
	assert.Equal(t, ":9985", cfg.App.HTTPAddr)
	assert.Equal(t, 7, cfg.Engine.ShortWindow)
	assert.Equal(t, 25, cfg.Engine.LongWindow)
	assert.Equal(t, 100, cfg.Engine.HistoryMax)
	assert.Equal(t, "balanced", cfg.Engine.Profile)
	assert.Equal(t, "data/tiller.db", cfg.Store.DBPath)
	assert.Equal(t, 30, cfg.Store.SnapshotTTLSeconds)
	assert.Equal(t, 80, cfg.Engine.SentimentMaxValue)
}

func TestLoad_ExpandsSecrets(t *testing.T) {
	t.Setenv("TEST_TILLER_KEY", "key-from-env")
	cfg, err := Load(writeConfig(t, `
engine:
  symbol: "BTC/USDT"
exchange:
  api_key: "${TEST_TILLER_KEY}"
`))
	require.NoError(t, err)
	assert.Equal(t, "key-from-env", cfg.Exchange.APIKey)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	_, err := Load(writeConfig(t, `
engine:
  symbol: "not-a-pair"
`))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `
engine:
  symbol: "BTC/USDT"
  short_window: 30
  long_window: 25
`))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `
engine:
  symbol: "BTC/USDT"
notify:
  telegram:
    enabled: true
`))
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load("")
	assert.Error(t, err)
}
