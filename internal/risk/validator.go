// Package risk 提供下单前的独立风控检查链：频次 → 间隔 → 方向保护。
package risk

import (
	"fmt"
	"time"

	"tiller/internal/types"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// 检查失败时的 reason code，写入计划审计记录。
const (
	CodeMaxDailyTrades = "max_daily_trades"
	CodeMinInterval    = "min_interval"
	CodeCoreProtection = "core_protection"
	CodeReserve        = "reserve"
)

// CheckResult 是单项检查的结论。Allowed=false 时 Code/Reason 说明拒绝原因；
// core-protection 拒绝时 MaxSellable 携带可卖上限，供 sizer 钳制而非直接放弃。
type CheckResult struct {
	Name        string  `json:"name"`
	Allowed     bool    `json:"allowed"`
	Code        string  `json:"code,omitempty"`
	Reason      string  `json:"reason"`
	MaxSellable float64 `json:"max_sellable,omitempty"`
}

// Limits 是一组可热更新的风控阈值（由 tiers registry 提供）。
type Limits struct {
	MaxDailyTrades int
	MinInterval    time.Duration
	ReservePct     float64
}

// Validator 按固定顺序执行检查链。无状态，可并发使用。
type Validator struct {
	Limits Limits
}

func NewValidator(limits Limits) Validator {
	return Validator{Limits: limits}
}

// CheckFrequency 当日成交次数达到上限时拒绝（UTC 自然日重置）。
func (v Validator) CheckFrequency(activity types.TradeActivity, now time.Time) CheckResult {
	count := activity.CountOn(now)
	if count >= v.Limits.MaxDailyTrades {
		return CheckResult{
			Name:    "frequency",
			Allowed: false,
			Code:    CodeMaxDailyTrades,
			Reason:  fmt.Sprintf("daily trade count %d reached limit %d", count, v.Limits.MaxDailyTrades),
		}
	}
	return CheckResult{
		Name:    "frequency",
		Allowed: true,
		Reason:  fmt.Sprintf("daily trade count %d/%d", count, v.Limits.MaxDailyTrades),
	}
}

// CheckInterval 距上次成交不足最小间隔时拒绝。从未成交过则总是放行。
// 该检查同时是重叠调用的事实互斥：前一次调用写入的 last_trade_at
// 会让紧随其后的第二次调用在此被拒。
func (v Validator) CheckInterval(activity types.TradeActivity, now time.Time) CheckResult {
	if activity.LastTradeAt == nil {
		return CheckResult{Name: "interval", Allowed: true, Reason: "no prior trade"}
	}
	elapsed := now.Sub(*activity.LastTradeAt)
	if elapsed < v.Limits.MinInterval {
		return CheckResult{
			Name:    "interval",
			Allowed: false,
			Code:    CodeMinInterval,
			Reason:  fmt.Sprintf("last trade %s ago, minimum interval %s", elapsed.Round(time.Second), v.Limits.MinInterval),
		}
	}
	return CheckResult{
		Name:    "interval",
		Allowed: true,
		Reason:  fmt.Sprintf("last trade %s ago", elapsed.Round(time.Second)),
	}
}

// CheckCoreProtection 仅用于卖出：请求量超过可交易量（total*(1-core_pct)）时
// 拒绝，并在 MaxSellable 中返回钳制上限。
func (v Validator) CheckCoreProtection(pos types.PositionState, sellQty float64) CheckResult {
	tradeable := pos.TradeableQuantity()
	if sellQty > tradeable {
		return CheckResult{
			Name:        "core_protection",
			Allowed:     false,
			Code:        CodeCoreProtection,
			Reason:      fmt.Sprintf("sell %v exceeds tradeable %v (core %v protected)", sellQty, tradeable, pos.CoreQuantity()),
			MaxSellable: tradeable,
		}
	}
	return CheckResult{
		Name:        "core_protection",
		Allowed:     true,
		Reason:      fmt.Sprintf("sell %v within tradeable %v", sellQty, tradeable),
		MaxSellable: tradeable,
	}
}

// CheckReserve 仅用于买入：本次花费超过可用稳定币的 (1-reserve_pct) 时拒绝。
func (v Validator) CheckReserve(quoteFree, spendQuote float64) CheckResult {
	budget := quoteFree * (1 - v.Limits.ReservePct)
	if spendQuote > budget {
		return CheckResult{
			Name:    "reserve",
			Allowed: false,
			Code:    CodeReserve,
			Reason:  fmt.Sprintf("spend %.2f exceeds budget %.2f (reserve %.0f%% of %.2f)", spendQuote, budget, v.Limits.ReservePct*100, quoteFree),
		}
	}
	return CheckResult{
		Name:    "reserve",
		Allowed: true,
		Reason:  fmt.Sprintf("spend %.2f within budget %.2f", spendQuote, budget),
	}
}

// Input 汇总一次组合检查所需的上下文。
type Input struct {
	Side     Side
	Now      time.Time
	Activity types.TradeActivity
	Position types.PositionState

	// SellQuantity 仅在 Side=SELL 时参与 core-protection。
	SellQuantity float64
	// QuoteFree/SpendQuote 仅在 Side=BUY 时参与 reserve 检查。
	QuoteFree  float64
	SpendQuote float64
}

// CheckAll 按 frequency → interval → 方向保护 的顺序执行，遇到首个拒绝即
// 短路返回。返回组合结论与已执行的各项结果（含失败项）。
func (v Validator) CheckAll(in Input) (CheckResult, []CheckResult) {
	evaluated := make([]CheckResult, 0, 3)

	freq := v.CheckFrequency(in.Activity, in.Now)
	evaluated = append(evaluated, freq)
	if !freq.Allowed {
		return freq, evaluated
	}

	interval := v.CheckInterval(in.Activity, in.Now)
	evaluated = append(evaluated, interval)
	if !interval.Allowed {
		return interval, evaluated
	}

	switch in.Side {
	case SideSell:
		core := v.CheckCoreProtection(in.Position, in.SellQuantity)
		evaluated = append(evaluated, core)
		if !core.Allowed {
			return core, evaluated
		}
	case SideBuy:
		reserve := v.CheckReserve(in.QuoteFree, in.SpendQuote)
		evaluated = append(evaluated, reserve)
		if !reserve.Allowed {
			return reserve, evaluated
		}
	}

	return CheckResult{Name: "all", Allowed: true, Reason: "all checks passed"}, evaluated
}
