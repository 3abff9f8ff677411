package transporthttp

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"tiller/internal/engine"
	"tiller/internal/gateway/exchange"
	"tiller/internal/logger"
	symbolpkg "tiller/internal/pkg/symbol"
	"tiller/internal/position"
	"tiller/internal/report"
	"tiller/internal/store"
	"tiller/internal/store/cache"
	"tiller/internal/types"

	"github.com/gin-gonic/gin"
)

// Runner 是再平衡触发入口的最小契约（*engine.Engine 满足）。
type Runner interface {
	RunOnce(ctx context.Context) (*engine.Plan, error)
	Symbol() string
}

// Router 注册 /api 下的只读展示与触发路由。
type Router struct {
	runner Runner
	store  store.Store
	cache  *cache.SnapshotCache
	ex     exchange.Exchange
}

func NewRouter(runner Runner, st store.Store, snapshots *cache.SnapshotCache, ex exchange.Exchange) *Router {
	return &Router{runner: runner, store: st, cache: snapshots, ex: ex}
}

func (r *Router) Register(group *gin.RouterGroup) {
	group.GET("/position", r.handlePosition)
	group.GET("/account", r.handleAccount)
	group.GET("/plans", r.handlePlans)
	group.GET("/report", r.handleReport)
	group.POST("/rebalance/run", r.handleRebalanceRun)
}

// handlePosition 展示端读取：优先走缓存层；缓存失效时从永久层整体投影后
// 回填（读穿刷新）。缓存从不作为决策输入。
func (r *Router) handlePosition(c *gin.Context) {
	symbol := r.runner.Symbol()
	if snap, ok := r.cache.Get(symbol); ok {
		c.JSON(http.StatusOK, snap)
		return
	}
	snap, err := r.projectSnapshot(c.Request.Context(), symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	r.cache.Put(snap)
	c.JSON(http.StatusOK, snap)
}

func (r *Router) projectSnapshot(ctx context.Context, symbol string) (types.PositionSnapshot, error) {
	pos, err := r.store.Positions().Get(ctx, symbol)
	if err != nil {
		if err == store.ErrNotFound {
			return types.PositionSnapshot{Symbol: symbol}, nil
		}
		return types.PositionSnapshot{}, err
	}
	snap := types.PositionSnapshot{
		Symbol:            pos.Symbol,
		TotalQuantity:     pos.TotalQuantity,
		CoreQuantity:      pos.CoreQuantity(),
		TradeableQuantity: pos.TradeableQuantity(),
		Tiers:             pos.Tiers,
		AverageCost:       pos.AverageCost,
		RealizedPnL:       pos.RealizedPnL,
		UpdatedAt:         pos.LastUpdated,
	}
	// 当前价仅用于展示浮动盈亏，拉取失败不影响快照本体。
	if price, err := r.ex.GetPrice(ctx, symbol); err == nil && price > 0 {
		snap.CurrentPrice = price
		snap.PositionValue = pos.TotalQuantity * price
		snap.UnrealizedPnL = position.UnrealizedPnL(pos, price)
	} else if err != nil {
		logger.Debugf("http: 展示快照价格拉取失败 symbol=%s: %v", symbol, err)
	}
	return snap, nil
}

// handleAccount 展示稳定币侧余额（交易对的 quote 资产）。
func (r *Router) handleAccount(c *gin.Context) {
	quote := symbolpkg.Parse(r.runner.Symbol()).Quote
	balances, err := r.ex.GetBalances(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	bal := balances[quote]
	c.JSON(http.StatusOK, types.AccountSnapshot{
		Asset:     quote,
		Free:      bal.Free,
		Locked:    bal.Locked,
		UpdatedAt: time.Now().UTC(),
	})
}

func (r *Router) handlePlans(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	rows, err := r.store.Plans().ListRecent(c.Request.Context(), r.runner.Symbol(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": rows, "count": len(rows)})
}

func (r *Router) handleReport(c *gin.Context) {
	ctx := c.Request.Context()
	symbol := r.runner.Symbol()
	history, err := r.store.History().Recent(ctx, symbol, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	in := report.Input{Symbol: symbol, History: history}
	if pos, err := r.store.Positions().Get(ctx, symbol); err == nil {
		in.AverageCost = pos.AverageCost
		in.RealizedPnL = pos.RealizedPnL
		if len(history) > 0 {
			in.UnrealizedPnL = position.UnrealizedPnL(pos, history[len(history)-1].Value)
		}
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := report.RenderPriceChart(c.Writer, in); err != nil {
		logger.Errorf("http: 报表渲染失败: %v", err)
	}
}

// handleRebalanceRun 由外部调度器触发一次决策。硬失败以 502 返回，
// 调度器据此执行自身的重试策略。
func (r *Router) handleRebalanceRun(c *gin.Context) {
	plan, err := r.runner.RunOnce(c.Request.Context())
	if err != nil {
		status := http.StatusBadGateway
		if !engine.IsHard(err) {
			status = http.StatusInternalServerError
		}
		body := gin.H{"error": err.Error()}
		if plan != nil {
			body["plan"] = plan
		}
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": plan})
}
