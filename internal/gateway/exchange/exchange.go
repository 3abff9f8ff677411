// Package exchange 定义交易所协作方的最小契约。决策引擎只依赖这里的接口，
// 便于替换后端（Binance、回放、测试替身）而不动核心逻辑。
package exchange

import "context"

// MarketData 提供公共行情，不依赖账户状态。
type MarketData interface {
	// GetPrice 返回交易对最新成交价。
	GetPrice(ctx context.Context, symbol string) (float64, error)

	// GetKlines 返回最近 limit 根已收盘 K 线（时间升序）。
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error)
}

// Account 提供账户余额与下单能力。可能因限频或鉴权失败返回错误，
// 引擎将其视为本次调用中止条件，不在内部重试。
type Account interface {
	// GetBalances 返回 asset -> 余额 映射。
	GetBalances(ctx context.Context) (map[string]Balance, error)

	// PlaceMarketOrder 提交市价单并返回成交结果。
	PlaceMarketOrder(ctx context.Context, symbol string, side OrderSide, quantity float64) (*OrderResult, error)
}

// Exchange 聚合行情与账户两类协作方。
type Exchange interface {
	Name() string
	MarketData
	Account
}
