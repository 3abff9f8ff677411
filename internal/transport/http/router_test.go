package transporthttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tiller/internal/engine"
	"tiller/internal/gateway/exchange"
	"tiller/internal/store"
	"tiller/internal/store/cache"
	"tiller/internal/store/model"
	"tiller/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	plan *engine.Plan
	err  error
}

func (s *stubRunner) RunOnce(ctx context.Context) (*engine.Plan, error) { return s.plan, s.err }
func (s *stubRunner) Symbol() string                                    { return "BTC/USDT" }

type fakeStore struct {
	position types.PositionState
	posErr   error
	plans    []model.RebalancePlanModel
}

type fakePositionRepo struct{ s *fakeStore }

func (r fakePositionRepo) Get(ctx context.Context, symbol string) (types.PositionState, error) {
	if r.s.posErr != nil {
		return types.PositionState{}, r.s.posErr
	}
	return r.s.position, nil
}
func (r fakePositionRepo) Put(ctx context.Context, state types.PositionState) error { return nil }

type fakeActivityRepo struct{}

func (fakeActivityRepo) Get(ctx context.Context, symbol string) (types.TradeActivity, error) {
	return types.TradeActivity{}, store.ErrNotFound
}
func (fakeActivityRepo) Put(ctx context.Context, activity types.TradeActivity) error { return nil }

type fakeHistoryRepo struct{}

func (fakeHistoryRepo) Append(ctx context.Context, symbol string, point types.PricePoint, max int) error {
	return nil
}
func (fakeHistoryRepo) Recent(ctx context.Context, symbol string, limit int) ([]types.PricePoint, error) {
	return nil, nil
}

type fakePlanRepo struct{ s *fakeStore }

func (r fakePlanRepo) Append(ctx context.Context, plan *model.RebalancePlanModel, max int) error {
	return nil
}
func (r fakePlanRepo) ListRecent(ctx context.Context, symbol string, limit int) ([]model.RebalancePlanModel, error) {
	return r.s.plans, nil
}

func (s *fakeStore) Positions() store.PositionRepository  { return fakePositionRepo{s: s} }
func (s *fakeStore) Activities() store.ActivityRepository { return fakeActivityRepo{} }
func (s *fakeStore) History() store.HistoryRepository     { return fakeHistoryRepo{} }
func (s *fakeStore) Plans() store.PlanRepository          { return fakePlanRepo{s: s} }
func (s *fakeStore) Close() error                         { return nil }

type fakeExchange struct {
	price       float64
	err         error
	balances    map[string]exchange.Balance
	balancesErr error
}

func (m fakeExchange) Name() string { return "fake" }

func (m fakeExchange) GetPrice(ctx context.Context, symbol string) (float64, error) {
	return m.price, m.err
}

func (m fakeExchange) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]exchange.Kline, error) {
	return nil, nil
}

func (m fakeExchange) GetBalances(ctx context.Context) (map[string]exchange.Balance, error) {
	return m.balances, m.balancesErr
}

func (m fakeExchange) PlaceMarketOrder(ctx context.Context, symbol string, side exchange.OrderSide, quantity float64) (*exchange.OrderResult, error) {
	return nil, errors.New("not supported")
}

func testRouter(runner Runner, st store.Store, md fakeExchange) *gin.Engine {
	gin.SetMode(gin.TestMode)
	g := gin.New()
	r := NewRouter(runner, st, cache.NewSnapshotCache(time.Minute), md)
	r.Register(g.Group("/api"))
	return g
}

func TestHandleRebalanceRun_OK(t *testing.T) {
	runner := &stubRunner{plan: &engine.Plan{
		TraceID:    "trace-1",
		Symbol:     "BTC/USDT",
		Action:     engine.ActionHold,
		ReasonCode: engine.ReasonNoSignal,
	}}
	g := testRouter(runner, &fakeStore{}, fakeExchange{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/rebalance/run", nil)
	g.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Plan engine.Plan `json:"plan"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "trace-1", body.Plan.TraceID)
	assert.Equal(t, engine.ActionHold, body.Plan.Action)
}

func TestHandleRebalanceRun_HardFailureIs502(t *testing.T) {
	runner := &stubRunner{
		plan: &engine.Plan{TraceID: "trace-2", ReasonCode: engine.ReasonCollaboratorError},
		err:  &engine.CollaboratorError{Op: "get_price", Err: errors.New("timeout")},
	}
	g := testRouter(runner, &fakeStore{}, fakeExchange{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/rebalance/run", nil)
	g.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "get_price")
}

func TestHandlePosition_ReadThrough(t *testing.T) {
	st := &fakeStore{position: types.PositionState{
		Symbol:        "BTC/USDT",
		TotalQuantity: 2,
		AverageCost:   100,
		Tiers:         types.TierAllocation{CorePct: 0.5, SwingPct: 0.3, ActivePct: 0.2},
	}}
	g := testRouter(&stubRunner{}, st, fakeExchange{price: 150})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/position", nil)
	g.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var snap types.PositionSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.InDelta(t, 2, snap.TotalQuantity, 1e-9)
	assert.InDelta(t, 1, snap.CoreQuantity, 1e-9)
	assert.InDelta(t, 150, snap.CurrentPrice, 1e-9)
	assert.InDelta(t, 100, snap.UnrealizedPnL, 1e-9)

	// 第二次命中缓存，即使永久层报错也照常返回
	st.posErr = errors.New("db locked")
	w = httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/position", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleAccount_QuoteBalance(t *testing.T) {
	g := testRouter(&stubRunner{}, &fakeStore{}, fakeExchange{
		balances: map[string]exchange.Balance{
			"USDT": {Asset: "USDT", Free: 900, Locked: 100},
			"BTC":  {Asset: "BTC", Free: 1},
		},
	})

	w := httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/account", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var snap types.AccountSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "USDT", snap.Asset)
	assert.InDelta(t, 900, snap.Free, 1e-9)
	assert.InDelta(t, 100, snap.Locked, 1e-9)
}

func TestHandleAccount_CollaboratorFailureIs502(t *testing.T) {
	g := testRouter(&stubRunner{}, &fakeStore{}, fakeExchange{
		balancesErr: errors.New("binance: -1003 rate limited"),
	})

	w := httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/account", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHandlePlans_Limit(t *testing.T) {
	st := &fakeStore{plans: []model.RebalancePlanModel{
		{TraceID: "a", Symbol: "BTC/USDT", Action: "HOLD"},
		{TraceID: "b", Symbol: "BTC/USDT", Action: "BUY"},
	}}
	g := testRouter(&stubRunner{}, st, fakeExchange{})

	w := httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/plans?limit=2", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
}
