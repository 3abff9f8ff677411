package engine

import (
	"encoding/json"
	"time"

	"tiller/internal/position"
	"tiller/internal/risk"
	"tiller/internal/signal"
	"tiller/internal/store/model"
	"tiller/internal/types"
)

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// State 标记一次调用走到的阶段，随计划入审计记录。
type State string

const (
	StateStarted         State = "STARTED"
	StateSignalEvaluated State = "SIGNAL_EVALUATED"
	StateRiskEvaluated   State = "RISK_EVALUATED"
	StateSized           State = "SIZED"
	StateOrderSubmitted  State = "ORDER_SUBMITTED"
	StateNoAction        State = "NO_ACTION"
	StateRecorded        State = "RECORDED"
)

// 计划原因码。
const (
	ReasonInsufficientData  = "insufficient_data"
	ReasonNoSignal          = "no_signal"
	ReasonAllocationMet     = "allocation_within_target"
	ReasonPriceAboveCost    = "price_above_average_cost"
	ReasonProfitNotMet      = "profit_target_not_met"
	ReasonZeroQuantity      = "zero_quantity"
	ReasonExtremeGreed      = "extreme_greed"
	ReasonCircuitOpen       = "circuit_open"
	ReasonCollaboratorError = "collaborator_error"
	ReasonOrderExecuted     = "order_executed"
	ReasonSellClamped       = "sell_clamped"
)

// Plan 是一次调用的唯一产出：动作、数量与完整决策依据。
type Plan struct {
	TraceID         string               `json:"trace_id"`
	Symbol          string               `json:"symbol"`
	Action          Action               `json:"action"`
	Quantity        float64              `json:"quantity"`
	PriceAtDecision float64              `json:"price_at_decision"`
	ReasonCode      string               `json:"reason_code"`
	Reason          string               `json:"reason"`
	State           State                `json:"state"`
	Signal          signal.Result        `json:"signal"`
	RiskChecks      []risk.CheckResult   `json:"risk_checks,omitempty"`
	Tiers           types.TierAllocation `json:"tiers"`
	Sell            *position.SellSize   `json:"sell,omitempty"`
	OrderID         string               `json:"order_id,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

// ToModel 转成审计存储记录，子结果序列化为 JSON 列。
func (p *Plan) ToModel() *model.RebalancePlanModel {
	signalJSON, _ := json.Marshal(p.Signal)
	checksJSON, _ := json.Marshal(p.RiskChecks)
	tiersJSON, _ := json.Marshal(p.Tiers)
	return &model.RebalancePlanModel{
		TraceID:       p.TraceID,
		Symbol:        p.Symbol,
		Action:        string(p.Action),
		Quantity:      p.Quantity,
		Price:         p.PriceAtDecision,
		ReasonCode:    p.ReasonCode,
		Reason:        p.Reason,
		State:         string(p.State),
		OrderID:       p.OrderID,
		SignalJSON:    signalJSON,
		ChecksJSON:    checksJSON,
		TiersJSON:     tiersJSON,
		CreatedAtUnix: p.CreatedAt.Unix(),
	}
}
