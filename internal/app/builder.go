package app

import (
	"context"
	"fmt"
	"time"

	"tiller/internal/config"
	"tiller/internal/engine"
	binancegw "tiller/internal/gateway/binance"
	"tiller/internal/market"
	"tiller/internal/notifier"
	"tiller/internal/store/cache"
	"tiller/internal/store/gormstore"
	"tiller/internal/tiers"
	transporthttp "tiller/internal/transport/http"
)

// AppBuilder 按依赖顺序逐层组装：存储 → 网关 → 档案 → 引擎 → HTTP。
// 全部句柄显式传递，不设包级单例。
type AppBuilder struct {
	cfg *config.Config
}

func NewAppBuilder(cfg *config.Config) *AppBuilder {
	return &AppBuilder{cfg: cfg}
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	cfg := b.cfg

	st, err := gormstore.New(cfg.Store.DBPath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	gateway, err := binancegw.New(binancegw.Config{
		APIKey:            cfg.Exchange.APIKey,
		APISecret:         cfg.Exchange.APISecret,
		RESTBaseURL:       cfg.Exchange.RESTBaseURL,
		HTTPTimeout:       time.Duration(cfg.Exchange.TimeoutSeconds) * time.Second,
		ProxyEnabled:      cfg.Exchange.ProxyEnabled,
		RESTProxyURL:      cfg.Exchange.RESTProxyURL,
		QuantityPrecision: cfg.Exchange.QuantityPrecision,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init binance gateway: %w", err)
	}

	registry, err := tiers.NewRegistry(cfg.Engine.ProfilesPath)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init tiers registry: %w", err)
	}

	var notify notifier.Notifier = notifier.Noop{}
	if cfg.Notify.Telegram.Enabled {
		notify = notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
	}

	var sentiment engine.SentimentSource
	if cfg.Engine.SentimentGate {
		sentiment = market.NewFearGreedService()
	}

	eng, err := engine.New(engine.Params{
		Config: engine.Config{
			Symbol:            cfg.Engine.Symbol,
			Interval:          cfg.Engine.Interval,
			ShortWindow:       cfg.Engine.ShortWindow,
			LongWindow:        cfg.Engine.LongWindow,
			HistoryMax:        cfg.Engine.HistoryMax,
			AuditMax:          cfg.Engine.AuditMax,
			Profile:           cfg.Engine.Profile,
			SentimentGate:     cfg.Engine.SentimentGate,
			SentimentMaxValue: cfg.Engine.SentimentMaxValue,
		},
		Exchange:  gateway,
		Store:     st,
		Profiles:  registry,
		Sentiment: sentiment,
		Notifier:  notify,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init engine: %w", err)
	}

	snapshots := cache.NewSnapshotCache(time.Duration(cfg.Store.SnapshotTTLSeconds) * time.Second)
	routes := transporthttp.NewRouter(eng, st, snapshots, gateway)
	server, err := transporthttp.NewServer(transporthttp.ServerConfig{
		Addr:   cfg.App.HTTPAddr,
		Routes: routes,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init http server: %w", err)
	}

	return &App{
		cfg:    cfg,
		engine: eng,
		http:   server,
		closer: st.Close,
	}, nil
}
