// Package store 定义永久存储层（决策引擎的权威状态）访问接口。
// 所有写入都是按 symbol 键的整记录覆盖，不做跨回合的读-改-写。
package store

import (
	"context"
	"errors"

	"tiller/internal/store/model"
	"tiller/internal/types"
)

// ErrNotFound 表示指定键尚无记录（首次同步前的正常状态）。
var ErrNotFound = errors.New("record not found")

// PositionRepository 每个交易对持有唯一一条持仓记录。
type PositionRepository interface {
	Get(ctx context.Context, symbol string) (types.PositionState, error)
	// Put 整体覆盖指定 symbol 的持仓记录（幂等单键写）。
	Put(ctx context.Context, state types.PositionState) error
}

// ActivityRepository 每个交易对持有唯一一条交易活动记录。
type ActivityRepository interface {
	Get(ctx context.Context, symbol string) (types.TradeActivity, error)
	Put(ctx context.Context, activity types.TradeActivity) error
}

// HistoryRepository 维护按数量截断的价格序列（FIFO 淘汰，不按时间过期）。
type HistoryRepository interface {
	// Append 追加一个观测点并把序列裁剪到最多 max 条。
	Append(ctx context.Context, symbol string, point types.PricePoint, max int) error
	// Recent 返回最近 limit 个点，时间升序。
	Recent(ctx context.Context, symbol string, limit int) ([]types.PricePoint, error)
}

// PlanRepository 是只追加、按条数截断的决策审计日志。
type PlanRepository interface {
	Append(ctx context.Context, plan *model.RebalancePlanModel, max int) error
	ListRecent(ctx context.Context, symbol string, limit int) ([]model.RebalancePlanModel, error)
}

// Store 是永久层入口。
type Store interface {
	Positions() PositionRepository
	Activities() ActivityRepository
	History() HistoryRepository
	Plans() PlanRepository
	Close() error
}
