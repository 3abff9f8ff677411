// Package gormstore 用 Gorm + SQLite 实现永久存储层。
// SQLite WAL + 单键 upsert 即本系统的并发控制手段（无显式锁）。
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tiller/internal/store"
	"tiller/internal/store/model"
	"tiller/internal/types"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type GormStore struct {
	db *gorm.DB
}

// New 打开（或创建）SQLite 数据库并迁移表结构。
func New(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: 数据库路径不能为空")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&model.PositionStateModel{},
		&model.TradeActivityModel{},
		&model.PricePointModel{},
		&model.RebalancePlanModel{},
	); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL：少量并行即可支撑展示端读取，同时压低锁竞争。
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) Positions() store.PositionRepository  { return positionRepo{db: s.db} }
func (s *GormStore) Activities() store.ActivityRepository { return activityRepo{db: s.db} }
func (s *GormStore) History() store.HistoryRepository     { return historyRepo{db: s.db} }
func (s *GormStore) Plans() store.PlanRepository          { return planRepo{db: s.db} }

var _ store.Store = (*GormStore)(nil)

type positionRepo struct{ db *gorm.DB }

func (r positionRepo) Get(ctx context.Context, symbol string) (types.PositionState, error) {
	var m model.PositionStateModel
	err := r.db.WithContext(ctx).First(&m, "symbol = ?", symbol).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.PositionState{}, store.ErrNotFound
	}
	if err != nil {
		return types.PositionState{}, err
	}
	return positionFromModel(m), nil
}

func (r positionRepo) Put(ctx context.Context, state types.PositionState) error {
	m := positionToModel(state)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}},
			UpdateAll: true,
		}).
		Create(&m).Error
}

func positionToModel(p types.PositionState) model.PositionStateModel {
	updated := p.LastUpdated
	if updated.IsZero() {
		updated = time.Now()
	}
	return model.PositionStateModel{
		Symbol:        p.Symbol,
		TotalQuantity: p.TotalQuantity,
		CorePct:       p.Tiers.CorePct,
		SwingPct:      p.Tiers.SwingPct,
		ActivePct:     p.Tiers.ActivePct,
		AverageCost:   p.AverageCost,
		RealizedPnL:   p.RealizedPnL,
		UpdatedAtUnix: updated.Unix(),
	}
}

func positionFromModel(m model.PositionStateModel) types.PositionState {
	return types.PositionState{
		Symbol:        m.Symbol,
		TotalQuantity: m.TotalQuantity,
		Tiers: types.TierAllocation{
			CorePct:   m.CorePct,
			SwingPct:  m.SwingPct,
			ActivePct: m.ActivePct,
		},
		AverageCost: m.AverageCost,
		RealizedPnL: m.RealizedPnL,
		LastUpdated: time.Unix(m.UpdatedAtUnix, 0).UTC(),
	}
}

type activityRepo struct{ db *gorm.DB }

func (r activityRepo) Get(ctx context.Context, symbol string) (types.TradeActivity, error) {
	var m model.TradeActivityModel
	err := r.db.WithContext(ctx).First(&m, "symbol = ?", symbol).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.TradeActivity{}, store.ErrNotFound
	}
	if err != nil {
		return types.TradeActivity{}, err
	}
	out := types.TradeActivity{
		Symbol:     m.Symbol,
		Day:        m.Day,
		DailyCount: m.DailyCount,
	}
	if m.LastTradeAtUnix != nil {
		ts := time.Unix(*m.LastTradeAtUnix, 0).UTC()
		out.LastTradeAt = &ts
	}
	return out, nil
}

func (r activityRepo) Put(ctx context.Context, activity types.TradeActivity) error {
	m := model.TradeActivityModel{
		Symbol:        activity.Symbol,
		Day:           activity.Day,
		DailyCount:    activity.DailyCount,
		UpdatedAtUnix: time.Now().Unix(),
	}
	if activity.LastTradeAt != nil {
		unix := activity.LastTradeAt.Unix()
		m.LastTradeAtUnix = &unix
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}},
			UpdateAll: true,
		}).
		Create(&m).Error
}

type historyRepo struct{ db *gorm.DB }

func (r historyRepo) Append(ctx context.Context, symbol string, point types.PricePoint, max int) error {
	m := model.PricePointModel{
		Symbol:         symbol,
		Value:          point.Value,
		ObservedAtUnix: point.ObservedAt.Unix(),
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	if max <= 0 {
		return nil
	}
	// FIFO 截断：按条数淘汰最旧的点，不按时间过期。
	return r.db.WithContext(ctx).
		Where("symbol = ? AND id NOT IN (?)", symbol,
			r.db.Model(&model.PricePointModel{}).
				Select("id").
				Where("symbol = ?", symbol).
				Order("id DESC").
				Limit(max),
		).
		Delete(&model.PricePointModel{}).Error
}

func (r historyRepo) Recent(ctx context.Context, symbol string, limit int) ([]types.PricePoint, error) {
	var rows []model.PricePointModel
	q := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	// 查询按 id 倒序取最近 N 条，这里翻回时间升序。
	out := make([]types.PricePoint, len(rows))
	for i, row := range rows {
		out[len(rows)-1-i] = types.PricePoint{
			Value:      row.Value,
			ObservedAt: time.Unix(row.ObservedAtUnix, 0).UTC(),
		}
	}
	return out, nil
}

type planRepo struct{ db *gorm.DB }

func (r planRepo) Append(ctx context.Context, plan *model.RebalancePlanModel, max int) error {
	if plan == nil {
		return fmt.Errorf("nil plan")
	}
	if plan.CreatedAtUnix == 0 {
		plan.CreatedAtUnix = time.Now().Unix()
	}
	if err := r.db.WithContext(ctx).Create(plan).Error; err != nil {
		return err
	}
	if max <= 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("symbol = ? AND id NOT IN (?)", plan.Symbol,
			r.db.Model(&model.RebalancePlanModel{}).
				Select("id").
				Where("symbol = ?", plan.Symbol).
				Order("id DESC").
				Limit(max),
		).
		Delete(&model.RebalancePlanModel{}).Error
}

func (r planRepo) ListRecent(ctx context.Context, symbol string, limit int) ([]model.RebalancePlanModel, error) {
	var rows []model.RebalancePlanModel
	q := r.db.WithContext(ctx).Order("id DESC")
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
