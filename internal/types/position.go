package types

import (
	"fmt"
	"math"
	"time"
)

// tierSumEpsilon 允许的层级占比求和误差。
const tierSumEpsilon = 1e-9

// TierAllocation 描述持仓的三层分配：core 永不自动卖出，swing+active 可交易。
type TierAllocation struct {
	CorePct   float64 `json:"core_pct"`
	SwingPct  float64 `json:"swing_pct"`
	ActivePct float64 `json:"active_pct"`
}

func (t TierAllocation) Sum() float64 {
	return t.CorePct + t.SwingPct + t.ActivePct
}

// TradeablePct 返回可参与自动买卖的占比（swing + active）。
func (t TierAllocation) TradeablePct() float64 {
	return t.SwingPct + t.ActivePct
}

// Validate 校验层级占比：各项在 [0,1] 且总和为 1。
func (t TierAllocation) Validate() error {
	for name, pct := range map[string]float64{
		"core_pct":   t.CorePct,
		"swing_pct":  t.SwingPct,
		"active_pct": t.ActivePct,
	} {
		if pct < 0 || pct > 1 {
			return fmt.Errorf("tier %s out of range: %v", name, pct)
		}
	}
	if math.Abs(t.Sum()-1.0) > tierSumEpsilon {
		return fmt.Errorf("tier percentages must sum to 1.0, got %v", t.Sum())
	}
	return nil
}

// PricePoint 是一条不可变的价格观测记录。
type PricePoint struct {
	Value      float64   `json:"value"`
	ObservedAt time.Time `json:"observed_at"`
}

// PositionState 是每个交易对唯一的持仓记录（权威副本在永久存储层）。
type PositionState struct {
	Symbol        string         `json:"symbol"`
	TotalQuantity float64        `json:"total_quantity"`
	Tiers         TierAllocation `json:"tiers"`
	AverageCost   float64        `json:"average_cost"`
	RealizedPnL   float64        `json:"realized_pnl"`
	LastUpdated   time.Time      `json:"last_updated"`
}

// CoreQuantity 返回受保护、永不自动卖出的数量。
func (p PositionState) CoreQuantity() float64 {
	return p.TotalQuantity * p.Tiers.CorePct
}

// TradeableQuantity 返回可自动卖出的数量（swing + active 层）。
func (p PositionState) TradeableQuantity() float64 {
	return p.TotalQuantity * p.Tiers.TradeablePct()
}

// Validate 校验持仓不变量，违反时属于 InvalidState（见 engine 错误分类）。
func (p PositionState) Validate() error {
	if p.TotalQuantity < 0 {
		return fmt.Errorf("total_quantity must be >= 0, got %v", p.TotalQuantity)
	}
	if p.AverageCost < 0 {
		return fmt.Errorf("average_cost must be >= 0, got %v", p.AverageCost)
	}
	return p.Tiers.Validate()
}

// TradeActivity 记录某交易对当日的成交次数与最近一次成交时间。
// DailyCount 按 UTC 自然日归零：Day 与当前日期不一致时视为 0。
type TradeActivity struct {
	Symbol      string     `json:"symbol"`
	Day         string     `json:"day"`
	DailyCount  int        `json:"daily_count"`
	LastTradeAt *time.Time `json:"last_trade_at,omitempty"`
}

// DayKey 返回 UTC 自然日键（YYYY-MM-DD）。
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// CountOn 返回给定时刻生效的当日成交次数（跨日自动归零）。
func (a TradeActivity) CountOn(now time.Time) int {
	if a.Day != DayKey(now) {
		return 0
	}
	return a.DailyCount
}

// RecordTrade 返回记入一笔成交后的活动状态。
func (a TradeActivity) RecordTrade(now time.Time) TradeActivity {
	ts := now.UTC()
	return TradeActivity{
		Symbol:      a.Symbol,
		Day:         DayKey(now),
		DailyCount:  a.CountOn(now) + 1,
		LastTradeAt: &ts,
	}
}
