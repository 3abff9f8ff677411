package model

import "gorm.io/datatypes"

// PositionStateModel 持仓权威记录，symbol 为主键，永不删除。
type PositionStateModel struct {
	Symbol        string  `gorm:"column:symbol;primaryKey"`
	TotalQuantity float64 `gorm:"column:total_quantity"`
	CorePct       float64 `gorm:"column:core_pct"`
	SwingPct      float64 `gorm:"column:swing_pct"`
	ActivePct     float64 `gorm:"column:active_pct"`
	AverageCost   float64 `gorm:"column:average_cost"`
	RealizedPnL   float64 `gorm:"column:realized_pnl"`
	UpdatedAtUnix int64   `gorm:"column:updated_at"`
}

func (PositionStateModel) TableName() string { return "position_states" }

// TradeActivityModel 当日成交计数，symbol 为主键；Day 变更即视为跨日归零。
type TradeActivityModel struct {
	Symbol          string `gorm:"column:symbol;primaryKey"`
	Day             string `gorm:"column:day"`
	DailyCount      int    `gorm:"column:daily_count"`
	LastTradeAtUnix *int64 `gorm:"column:last_trade_at"`
	UpdatedAtUnix   int64  `gorm:"column:updated_at"`
}

func (TradeActivityModel) TableName() string { return "trade_activities" }

// PricePointModel 有界价格序列的一个观测点。
type PricePointModel struct {
	ID             int64   `gorm:"column:id;primaryKey;autoIncrement"`
	Symbol         string  `gorm:"column:symbol;index:idx_price_symbol_time,priority:1"`
	Value          float64 `gorm:"column:value"`
	ObservedAtUnix int64   `gorm:"column:observed_at;index:idx_price_symbol_time,priority:2"`
}

func (PricePointModel) TableName() string { return "price_points" }

// RebalancePlanModel 决策审计记录：每次调用产出一条（含 HOLD）。
type RebalancePlanModel struct {
	ID            int64          `gorm:"column:id;primaryKey;autoIncrement"`
	TraceID       string         `gorm:"column:trace_id;index"`
	Symbol        string         `gorm:"column:symbol;index"`
	Action        string         `gorm:"column:action"`
	Quantity      float64        `gorm:"column:quantity"`
	Price         float64        `gorm:"column:price_at_decision"`
	ReasonCode    string         `gorm:"column:reason_code"`
	Reason        string         `gorm:"column:reason"`
	State         string         `gorm:"column:state"`
	OrderID       string         `gorm:"column:order_id"`
	SignalJSON    datatypes.JSON `gorm:"column:signal_json;type:TEXT"`
	ChecksJSON    datatypes.JSON `gorm:"column:checks_json;type:TEXT"`
	TiersJSON     datatypes.JSON `gorm:"column:tiers_json;type:TEXT"`
	CreatedAtUnix int64          `gorm:"column:created_at;index"`
}

func (RebalancePlanModel) TableName() string { return "rebalance_plans" }
