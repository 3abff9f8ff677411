package types

import "time"

// PositionSnapshot 是面向展示端的只读投影（缓存层数据，禁止回写决策）。
type PositionSnapshot struct {
	Symbol            string         `json:"symbol"`
	TotalQuantity     float64        `json:"total_quantity"`
	CoreQuantity      float64        `json:"core_quantity"`
	TradeableQuantity float64        `json:"tradeable_quantity"`
	Tiers             TierAllocation `json:"tiers"`
	AverageCost       float64        `json:"average_cost"`
	CurrentPrice      float64        `json:"current_price,omitempty"`
	PositionValue     float64        `json:"position_value,omitempty"`
	RealizedPnL       float64        `json:"realized_pnl"`
	UnrealizedPnL     float64        `json:"unrealized_pnl"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// AccountSnapshot 描述稳定币侧余额。
type AccountSnapshot struct {
	Asset     string    `json:"asset"`
	Free      float64   `json:"free"`
	Locked    float64   `json:"locked"`
	UpdatedAt time.Time `json:"updated_at"`
}
