package binance

import (
	"strings"
	"time"
)

type Config struct {
	APIKey    string
	APISecret string

	RESTBaseURL string
	HTTPTimeout time.Duration

	ProxyEnabled bool
	RESTProxyURL string

	// QuantityPrecision 控制市价单数量的小数位（按交易对 LOT_SIZE 配置）。
	QuantityPrecision int
}

func (c *Config) withDefaults() Config {
	out := *c
	out.RESTBaseURL = strings.TrimSpace(out.RESTBaseURL)
	if out.RESTBaseURL == "" {
		out.RESTBaseURL = "https://api.binance.com"
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	if out.QuantityPrecision <= 0 {
		out.QuantityPrecision = 6
	}
	out.RESTProxyURL = strings.TrimSpace(out.RESTProxyURL)
	return out
}
