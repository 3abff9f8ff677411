package config

// Config 是 tiller 的主配置载体。
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Store    StoreConfig    `mapstructure:"store"`
	Notify   NotifyConfig   `mapstructure:"notify"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	HTTPAddr string `mapstructure:"http_addr"`
	LogPath  string `mapstructure:"log_path"`
}

// ExchangeConfig 描述交易所协作方访问方式。密钥支持 ${ENV_VAR} 展开。
type ExchangeConfig struct {
	APIKey            string `mapstructure:"api_key"`
	APISecret         string `mapstructure:"api_secret"`
	RESTBaseURL       string `mapstructure:"rest_base_url"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	ProxyEnabled      bool   `mapstructure:"proxy_enabled"`
	RESTProxyURL      string `mapstructure:"rest_proxy_url"`
	QuantityPrecision int    `mapstructure:"quantity_precision"`
}

// EngineConfig 是决策引擎的静态参数；可热更新的阈值在 tiers 档案里。
type EngineConfig struct {
	Symbol       string `mapstructure:"symbol"`
	Interval     string `mapstructure:"interval"`
	ShortWindow  int    `mapstructure:"short_window"`
	LongWindow   int    `mapstructure:"long_window"`
	HistoryMax   int    `mapstructure:"history_max"`
	AuditMax     int    `mapstructure:"audit_max"`
	Profile      string `mapstructure:"profile"`
	ProfilesPath string `mapstructure:"profiles_path"`

	SentimentGate     bool `mapstructure:"sentiment_gate"`
	SentimentMaxValue int  `mapstructure:"sentiment_max_value"`
}

type StoreConfig struct {
	DBPath             string `mapstructure:"db_path"`
	SnapshotTTLSeconds int    `mapstructure:"snapshot_ttl_seconds"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}
