package config

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = ":9985"
	}
	if c.Exchange.TimeoutSeconds <= 0 {
		c.Exchange.TimeoutSeconds = 15
	}
	if c.Engine.Interval == "" {
		c.Engine.Interval = "1h"
	}
	if c.Engine.ShortWindow <= 0 {
		c.Engine.ShortWindow = 7
	}
	if c.Engine.LongWindow <= 0 {
		c.Engine.LongWindow = 25
	}
	if c.Engine.HistoryMax <= 0 {
		c.Engine.HistoryMax = 100
	}
	if c.Engine.AuditMax <= 0 {
		c.Engine.AuditMax = 200
	}
	if c.Engine.Profile == "" {
		c.Engine.Profile = "balanced"
	}
	if c.Engine.ProfilesPath == "" {
		c.Engine.ProfilesPath = "configs/tiers.yaml"
	}
	if c.Engine.SentimentMaxValue <= 0 {
		c.Engine.SentimentMaxValue = 80
	}
	if c.Store.DBPath == "" {
		c.Store.DBPath = "data/tiller.db"
	}
	if c.Store.SnapshotTTLSeconds <= 0 {
		c.Store.SnapshotTTLSeconds = 30
	}
}
