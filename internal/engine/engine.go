// Package engine 实现再平衡决策编排：信号 → 风控 → 仓位测算 → 成本账。
// 每次调用单发执行（由外部调度器触发），对重复、并发与此前的部分失败保持正确：
// 间隔/频次检查充当事实上的互斥，全部状态写入都是单键覆盖，
// 且持仓与活动记录只在订单确认之后落盘。
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tiller/internal/gateway/exchange"
	"tiller/internal/logger"
	"tiller/internal/market"
	"tiller/internal/metrics"
	"tiller/internal/notifier"
	"tiller/internal/pkg/circuit"
	symbolpkg "tiller/internal/pkg/symbol"
	"tiller/internal/position"
	"tiller/internal/risk"
	"tiller/internal/signal"
	"tiller/internal/store"
	"tiller/internal/tiers"
	"tiller/internal/types"

	"github.com/google/uuid"
)

// Config 是引擎的静态参数；风控阈值与层级分配走 tiers 档案，可热更新。
type Config struct {
	Symbol      string
	Interval    string
	ShortWindow int
	LongWindow  int
	HistoryMax  int
	AuditMax    int
	Profile     string

	// SentimentGate 开启时，恐惧贪婪指数达到 SentimentMaxValue 即暂停买入。
	SentimentGate     bool
	SentimentMaxValue int
}

// ProfileResolver 解析当前生效的分层/风控档案。*tiers.Registry 满足该接口。
type ProfileResolver interface {
	Resolve(name string) (tiers.Profile, bool)
}

// SentimentSource 提供市场情绪读数（可选协作方，失败只降级）。
type SentimentSource interface {
	Get() (market.FearGreedData, bool)
	RefreshIfStale(ctx context.Context)
}

// Engine 持有全部协作方句柄，依赖显式注入，无环境全局量。
type Engine struct {
	cfg       Config
	ex        exchange.Exchange
	store     store.Store
	profiles  ProfileResolver
	sentiment SentimentSource
	notify    notifier.Notifier
	breaker   *circuit.Breaker
	now       func() time.Time
}

type Params struct {
	Config    Config
	Exchange  exchange.Exchange
	Store     store.Store
	Profiles  ProfileResolver
	Sentiment SentimentSource
	Notifier  notifier.Notifier
	// Now 仅测试用，缺省 time.Now。
	Now func() time.Time
}

func New(p Params) (*Engine, error) {
	if p.Exchange == nil {
		return nil, fmt.Errorf("engine requires exchange")
	}
	if p.Store == nil {
		return nil, fmt.Errorf("engine requires store")
	}
	if p.Profiles == nil {
		return nil, fmt.Errorf("engine requires profile resolver")
	}
	cfg := p.Config
	if !symbolpkg.IsValid(cfg.Symbol) {
		return nil, fmt.Errorf("engine: invalid symbol %q", cfg.Symbol)
	}
	cfg.Symbol = symbolpkg.Normalize(cfg.Symbol)
	if cfg.ShortWindow <= 0 || cfg.LongWindow <= 0 || cfg.ShortWindow >= cfg.LongWindow {
		return nil, fmt.Errorf("engine: invalid MA windows short=%d long=%d", cfg.ShortWindow, cfg.LongWindow)
	}
	if cfg.HistoryMax < cfg.LongWindow {
		cfg.HistoryMax = cfg.LongWindow * 4
	}
	if cfg.AuditMax <= 0 {
		cfg.AuditMax = 200
	}
	if cfg.Interval == "" {
		cfg.Interval = "1h"
	}
	notify := p.Notifier
	if notify == nil {
		notify = notifier.Noop{}
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		cfg:       cfg,
		ex:        p.Exchange,
		store:     p.Store,
		profiles:  p.Profiles,
		sentiment: p.Sentiment,
		notify:    notify,
		breaker:   circuit.NewBreaker("engine."+cfg.Symbol, 5, 2*time.Minute),
		now:       now,
	}, nil
}

func (e *Engine) Symbol() string { return e.cfg.Symbol }

// RunOnce 执行一次完整的再平衡决策。软失败吸收为 HOLD 计划并落审计；
// 硬失败返回未落盘的 HOLD 计划与错误，重试策略归外部调度器。
func (e *Engine) RunOnce(ctx context.Context) (*Plan, error) {
	started := e.now()
	defer func() {
		metrics.DecisionDuration.Observe(time.Since(started).Seconds())
	}()

	plan := &Plan{
		TraceID:   uuid.NewString(),
		Symbol:    e.cfg.Symbol,
		Action:    ActionHold,
		State:     StateStarted,
		CreatedAt: started.UTC(),
	}

	if !e.breaker.Allow() {
		logger.Warnf("engine: 熔断开启，跳过本次调用 symbol=%s", e.cfg.Symbol)
		return e.recordHold(ctx, plan, ReasonCircuitOpen, "circuit breaker open, collaborators not called"), nil
	}

	profile, ok := e.profiles.Resolve(e.cfg.Profile)
	if !ok {
		return plan, &InvalidStateError{Err: fmt.Errorf("tiers profile %q not found", e.cfg.Profile)}
	}
	plan.Tiers = profile.Tiers()

	price, err := e.ex.GetPrice(ctx, e.cfg.Symbol)
	if err != nil {
		return plan, e.hardFailure(plan, "get_price", err)
	}
	e.breaker.RecordSuccess()
	plan.PriceAtDecision = price

	history, err := e.store.History().Recent(ctx, e.cfg.Symbol, e.cfg.HistoryMax)
	if err != nil {
		return plan, fmt.Errorf("load price history: %w", err)
	}
	// 冷启动回填：序列不足 long_window 时先用已收盘 K 线补足，
	// 不必等满 long_window 个调度周期才能产出首个信号。
	if len(history)+1 < e.cfg.LongWindow {
		klines, err := e.ex.GetKlines(ctx, e.cfg.Symbol, e.cfg.Interval, e.cfg.HistoryMax)
		if err != nil {
			return plan, e.hardFailure(plan, "get_klines", err)
		}
		e.breaker.RecordSuccess()
		if err := e.backfillHistory(ctx, history, klines); err != nil {
			return plan, fmt.Errorf("backfill price history: %w", err)
		}
	}

	point := types.PricePoint{Value: price, ObservedAt: started.UTC()}
	if err := e.store.History().Append(ctx, e.cfg.Symbol, point, e.cfg.HistoryMax); err != nil {
		return plan, fmt.Errorf("append price history: %w", err)
	}
	history, err = e.store.History().Recent(ctx, e.cfg.Symbol, e.cfg.HistoryMax)
	if err != nil {
		return plan, fmt.Errorf("load price history: %w", err)
	}
	closes := make([]float64, len(history))
	for i, pt := range history {
		closes[i] = pt.Value
	}

	plan.Signal = signal.Detect(closes, e.cfg.ShortWindow, e.cfg.LongWindow)
	plan.State = StateSignalEvaluated
	if plan.Signal.Classification == signal.InsufficientData {
		reason := fmt.Sprintf("history has %d points, long window needs %d", plan.Signal.Points, e.cfg.LongWindow)
		return e.recordHold(ctx, plan, ReasonInsufficientData, reason), nil
	}

	balances, err := e.ex.GetBalances(ctx)
	if err != nil {
		return plan, e.hardFailure(plan, "get_balances", err)
	}
	e.breaker.RecordSuccess()

	pos, err := e.loadOrInitPosition(ctx, profile, balances, price)
	if err != nil {
		return plan, err
	}
	activity, err := e.loadActivity(ctx)
	if err != nil {
		return plan, err
	}

	sym := symbolpkg.Parse(e.cfg.Symbol)
	quote := balances[sym.Quote]

	validator := risk.NewValidator(risk.Limits{
		MaxDailyTrades: profile.MaxDailyTrades,
		MinInterval:    profile.MinInterval(),
		ReservePct:     profile.ReservePct,
	})

	switch plan.Signal.Classification {
	case signal.Bullish:
		return e.evaluateBuy(ctx, plan, profile, validator, pos, activity, quote, price)
	case signal.Bearish:
		return e.evaluateSell(ctx, plan, profile, validator, pos, activity, quote, price)
	default:
		return e.recordHold(ctx, plan, ReasonNoSignal, "moving averages neutral"), nil
	}
}

// evaluateBuy 买入分支：牛市信号 + 低于目标占比 + 只买回调 + 储备检查。
func (e *Engine) evaluateBuy(ctx context.Context, plan *Plan, profile tiers.Profile, validator risk.Validator, pos types.PositionState, activity types.TradeActivity, quote exchange.Balance, price float64) (*Plan, error) {
	share := valueShare(pos.TotalQuantity, price, quote)
	if share >= profile.TargetAllocPct {
		reason := fmt.Sprintf("asset share %.1f%% at or above target %.1f%%", share*100, profile.TargetAllocPct*100)
		return e.recordHold(ctx, plan, ReasonAllocationMet, reason), nil
	}
	if pos.AverageCost > 0 && price > pos.AverageCost {
		reason := fmt.Sprintf("price %.8g above average cost %.8g, buying dips only", price, pos.AverageCost)
		return e.recordHold(ctx, plan, ReasonPriceAboveCost, reason), nil
	}
	if e.cfg.SentimentGate && e.sentiment != nil {
		e.sentiment.RefreshIfStale(ctx)
		if data, ok := e.sentiment.Get(); ok && data.Value >= e.cfg.SentimentMaxValue {
			reason := fmt.Sprintf("fear & greed %d (%s) at or above %d, buys paused", data.Value, data.Classification, e.cfg.SentimentMaxValue)
			return e.recordHold(ctx, plan, ReasonExtremeGreed, reason), nil
		}
	}

	size, err := position.CalculateBuy(quote.Free, price, profile.MaxPositionPct)
	if err != nil {
		return plan, &InvalidStateError{Err: fmt.Errorf("buy sizing: %w", err)}
	}
	if size.Quantity <= 0 {
		return e.recordHold(ctx, plan, ReasonZeroQuantity, "no stablecoin budget for buy"), nil
	}

	verdict, evaluated := validator.CheckAll(risk.Input{
		Side:       risk.SideBuy,
		Now:        e.now(),
		Activity:   activity,
		Position:   pos,
		QuoteFree:  quote.Free,
		SpendQuote: size.QuoteToUse,
	})
	plan.RiskChecks = evaluated
	plan.State = StateRiskEvaluated
	if !verdict.Allowed {
		return e.recordHold(ctx, plan, verdict.Code, verdict.Reason), nil
	}

	plan.Action = ActionBuy
	plan.Quantity = size.Quantity
	plan.State = StateSized
	return e.execute(ctx, plan, pos, activity, exchange.OrderSideBuy, ReasonOrderExecuted,
		fmt.Sprintf("bullish dip buy: %.8g @ %.8g (spend %.2f %s)", size.Quantity, price, size.QuoteToUse, symbolpkg.Parse(e.cfg.Symbol).Quote))
}

// evaluateSell 卖出分支：熊市信号 + 高于目标占比 + 达到止盈线 + core 保护。
// core-protection 触发钳制时按钳制量执行（部分成交意图），不视为失败。
func (e *Engine) evaluateSell(ctx context.Context, plan *Plan, profile tiers.Profile, validator risk.Validator, pos types.PositionState, activity types.TradeActivity, quote exchange.Balance, price float64) (*Plan, error) {
	share := valueShare(pos.TotalQuantity, price, quote)
	if share <= profile.TargetAllocPct {
		reason := fmt.Sprintf("asset share %.1f%% at or below target %.1f%%", share*100, profile.TargetAllocPct*100)
		return e.recordHold(ctx, plan, ReasonAllocationMet, reason), nil
	}
	minSellPrice := pos.AverageCost * (1 + profile.MinProfitPct)
	if pos.AverageCost > 0 && price < minSellPrice {
		reason := fmt.Sprintf("price %.8g below profit floor %.8g (cost %.8g +%.1f%%)", price, minSellPrice, pos.AverageCost, profile.MinProfitPct*100)
		return e.recordHold(ctx, plan, ReasonProfitNotMet, reason), nil
	}

	size := position.CalculateSell(pos, profile.SellPct)
	if size.Quantity <= 0 {
		return e.recordHold(ctx, plan, ReasonZeroQuantity, "nothing tradeable to sell"), nil
	}

	verdict, evaluated := validator.CheckAll(risk.Input{
		Side:         risk.SideSell,
		Now:          e.now(),
		Activity:     activity,
		Position:     pos,
		SellQuantity: size.Quantity,
	})
	plan.RiskChecks = evaluated
	plan.State = StateRiskEvaluated
	if !verdict.Allowed {
		if verdict.Code != risk.CodeCoreProtection {
			return e.recordHold(ctx, plan, verdict.Code, verdict.Reason), nil
		}
		// 策略选择：core 保护拒绝时按可卖上限钳制执行，而非放弃。
		size = position.ClampSell(pos, verdict.MaxSellable)
		if size.Quantity <= 0 {
			return e.recordHold(ctx, plan, verdict.Code, verdict.Reason), nil
		}
	}

	reasonCode := ReasonOrderExecuted
	reason := fmt.Sprintf("bearish profit take: %.8g @ %.8g", size.Quantity, price)
	if size.Clamped {
		reasonCode = ReasonSellClamped
		reason = fmt.Sprintf("bearish profit take clamped to tradeable: %.8g of requested %.8g @ %.8g", size.Quantity, size.Requested, price)
	}
	plan.Action = ActionSell
	plan.Quantity = size.Quantity
	plan.Sell = &size
	plan.State = StateSized
	return e.execute(ctx, plan, pos, activity, exchange.OrderSideSell, reasonCode, reason)
}

// execute 提交市价单，确认成交后才更新持仓与活动记录（顺序保证）。
func (e *Engine) execute(ctx context.Context, plan *Plan, pos types.PositionState, activity types.TradeActivity, side exchange.OrderSide, reasonCode, reason string) (*Plan, error) {
	order, err := e.ex.PlaceMarketOrder(ctx, e.cfg.Symbol, side, plan.Quantity)
	if err != nil {
		return plan, e.hardFailure(plan, "place_order", err)
	}
	e.breaker.RecordSuccess()
	plan.State = StateOrderSubmitted
	plan.OrderID = order.OrderID

	filledQty := order.FilledQuantity
	if filledQty <= 0 {
		filledQty = plan.Quantity
	}
	filledPrice := order.FilledPrice
	if filledPrice <= 0 {
		filledPrice = plan.PriceAtDecision
	}

	now := e.now()
	switch side {
	case exchange.OrderSideBuy:
		pos = position.ApplyBuy(pos, filledQty, filledPrice)
	case exchange.OrderSideSell:
		var gain float64
		gain, pos = position.ApplySell(pos, filledQty, filledPrice)
		logger.Infof("engine: 卖出结转已实现盈亏 %+.2f symbol=%s", gain, e.cfg.Symbol)
	}
	pos.LastUpdated = now.UTC()
	if err := e.store.Positions().Put(ctx, pos); err != nil {
		return plan, fmt.Errorf("persist position after fill: %w", err)
	}
	if err := e.store.Activities().Put(ctx, activity.RecordTrade(now)); err != nil {
		return plan, fmt.Errorf("persist trade activity after fill: %w", err)
	}

	plan.ReasonCode = reasonCode
	plan.Reason = reason
	e.recordPlan(ctx, plan)
	metrics.OrdersExecuted.WithLabelValues(string(side)).Inc()
	metrics.InvocationsTotal.WithLabelValues(string(plan.Action), plan.ReasonCode).Inc()
	e.notifyExecution(plan, filledQty, filledPrice)
	logger.Infof("engine: %s %s qty=%.8g price=%.8g order_id=%s trace=%s",
		plan.Action, e.cfg.Symbol, filledQty, filledPrice, plan.OrderID, plan.TraceID)
	return plan, nil
}

// recordHold 把软失败/无动作收敛为 HOLD 计划并落审计。
func (e *Engine) recordHold(ctx context.Context, plan *Plan, reasonCode, reason string) *Plan {
	plan.Action = ActionHold
	plan.Quantity = 0
	plan.ReasonCode = reasonCode
	plan.Reason = reason
	plan.State = StateNoAction
	e.recordPlan(ctx, plan)
	metrics.InvocationsTotal.WithLabelValues(string(ActionHold), reasonCode).Inc()
	logger.Infof("engine: HOLD symbol=%s reason=%s (%s) trace=%s", e.cfg.Symbol, reasonCode, reason, plan.TraceID)
	return plan
}

func (e *Engine) recordPlan(ctx context.Context, plan *Plan) {
	if err := e.store.Plans().Append(ctx, plan.ToModel(), e.cfg.AuditMax); err != nil {
		logger.Warnf("engine: 审计记录写入失败 trace=%s: %v", plan.TraceID, err)
		return
	}
	plan.State = StateRecorded
}

// hardFailure 统一处理协作方硬失败：计数、熔断、携带 HOLD 理由上抛。
func (e *Engine) hardFailure(plan *Plan, op string, err error) error {
	e.breaker.RecordFailure()
	metrics.CollaboratorErrors.WithLabelValues(op).Inc()
	metrics.InvocationsTotal.WithLabelValues(string(ActionHold), ReasonCollaboratorError).Inc()
	plan.ReasonCode = ReasonCollaboratorError
	plan.Reason = fmt.Sprintf("%s: %v", op, err)
	logger.Errorf("engine: 协作方失败 op=%s symbol=%s: %v", op, e.cfg.Symbol, err)
	return &CollaboratorError{Op: op, Err: err}
}

// loadOrInitPosition 读取持仓；首次运行时用交易所余额同步出初始记录，
// 成本基线以当前价为种子（此前无成本信息可用）。
func (e *Engine) loadOrInitPosition(ctx context.Context, profile tiers.Profile, balances map[string]exchange.Balance, price float64) (types.PositionState, error) {
	pos, err := e.store.Positions().Get(ctx, e.cfg.Symbol)
	if errors.Is(err, store.ErrNotFound) {
		sym := symbolpkg.Parse(e.cfg.Symbol)
		base := balances[sym.Base]
		pos = types.PositionState{
			Symbol:        e.cfg.Symbol,
			TotalQuantity: base.Free + base.Locked,
			Tiers:         profile.Tiers(),
			LastUpdated:   e.now().UTC(),
		}
		if pos.TotalQuantity > 0 {
			pos.AverageCost = price
		}
		if err := e.store.Positions().Put(ctx, pos); err != nil {
			return types.PositionState{}, fmt.Errorf("init position from balance sync: %w", err)
		}
		logger.Infof("engine: 首次余额同步建仓 symbol=%s qty=%.8g cost_seed=%.8g", e.cfg.Symbol, pos.TotalQuantity, pos.AverageCost)
	} else if err != nil {
		return types.PositionState{}, fmt.Errorf("load position: %w", err)
	}

	// 分配以当前档案为准；持久副本在下次成交写回。
	pos.Tiers = profile.Tiers()
	if err := pos.Validate(); err != nil {
		return types.PositionState{}, &InvalidStateError{Err: err}
	}
	return pos, nil
}

// backfillHistory 把已收盘 K 线的收盘价写入价格序列，按观测时间去重。
// 先于当次实时观测点写入，保证存储序列保持时间升序。
func (e *Engine) backfillHistory(ctx context.Context, existing []types.PricePoint, klines []exchange.Kline) error {
	seen := make(map[int64]struct{}, len(existing))
	for _, pt := range existing {
		seen[pt.ObservedAt.Unix()] = struct{}{}
	}
	added := 0
	for _, kl := range klines {
		if kl.Close <= 0 {
			continue
		}
		observed := time.UnixMilli(kl.CloseTime).UTC()
		if _, ok := seen[observed.Unix()]; ok {
			continue
		}
		point := types.PricePoint{Value: kl.Close, ObservedAt: observed}
		if err := e.store.History().Append(ctx, e.cfg.Symbol, point, e.cfg.HistoryMax); err != nil {
			return err
		}
		added++
	}
	if added > 0 {
		logger.Infof("engine: K 线回填价格历史 symbol=%s interval=%s added=%d", e.cfg.Symbol, e.cfg.Interval, added)
	}
	return nil
}

func (e *Engine) loadActivity(ctx context.Context) (types.TradeActivity, error) {
	activity, err := e.store.Activities().Get(ctx, e.cfg.Symbol)
	if errors.Is(err, store.ErrNotFound) {
		return types.TradeActivity{Symbol: e.cfg.Symbol}, nil
	}
	if err != nil {
		return types.TradeActivity{}, fmt.Errorf("load trade activity: %w", err)
	}
	return activity, nil
}

func (e *Engine) notifyExecution(plan *Plan, filledQty, filledPrice float64) {
	sym := symbolpkg.Parse(e.cfg.Symbol)
	text := strings.Join([]string{
		fmt.Sprintf("*%s %s*", plan.Action, e.cfg.Symbol),
		fmt.Sprintf("数量: %.8g", filledQty),
		fmt.Sprintf("价格: %.8g %s", filledPrice, sym.Quote),
		fmt.Sprintf("原因: %s", plan.Reason),
	}, "\n")
	if err := e.notify.SendText(text); err != nil {
		logger.Warnf("engine: 通知发送失败: %v", err)
	}
}

// valueShare 计算资产市值占（资产市值+稳定币余额）的比例。
func valueShare(baseQty, price float64, quote exchange.Balance) float64 {
	assetValue := baseQty * price
	total := assetValue + quote.Free + quote.Locked
	if total <= 0 {
		return 0
	}
	return assetValue / total
}
