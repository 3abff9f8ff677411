package exchange

import "time"

type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Kline 是一根已收盘的 K 线。
type Kline struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Balance 描述单一资产的账户余额。
type Balance struct {
	Asset  string  `json:"asset"`
	Free   float64 `json:"free"`
	Locked float64 `json:"locked"`
}

// OrderResult 是一次市价单的成交回执。
type OrderResult struct {
	OrderID        string    `json:"order_id"`
	Symbol         string    `json:"symbol"`
	Side           OrderSide `json:"side"`
	FilledQuantity float64   `json:"filled_quantity"`
	FilledPrice    float64   `json:"filled_price"`
	SubmittedAt    time.Time `json:"submitted_at"`
}
