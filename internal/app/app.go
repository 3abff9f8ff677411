package app

import (
	"context"
	"fmt"

	"tiller/internal/config"
	"tiller/internal/engine"
	"tiller/internal/logger"
	transporthttp "tiller/internal/transport/http"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置 → 初始化依赖 → 启动 HTTP 面。
type App struct {
	cfg    *config.Config
	engine *engine.Engine
	http   *transporthttp.Server
	closer func() error
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动 HTTP 服务并阻塞到 ctx 取消。再平衡由外部调度器经
// POST /api/rebalance/run 触发，进程内不跑调度循环。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.http.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// RunOnce 执行单次再平衡后退出（cron 部署形态）。
func (a *App) RunOnce(ctx context.Context) error {
	if a == nil || a.engine == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()
	plan, err := a.engine.RunOnce(ctx)
	if err != nil {
		return err
	}
	logger.Infof("单次执行完成: action=%s reason=%s trace=%s", plan.Action, plan.ReasonCode, plan.TraceID)
	return nil
}

// Engine 暴露底层引擎实例（测试/回放用）。
func (a *App) Engine() *engine.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}

func (a *App) Close() {
	if a == nil || a.closer == nil {
		return
	}
	if err := a.closer(); err != nil {
		logger.Warnf("关闭资源失败: %v", err)
	}
}
