package application

import (
	"context"
	"fmt"

	"github.com/KOMKZ/yogan-shield/health"
	"github.com/KOMKZ/yogan-shield/limiter"
	"github.com/KOMKZ/yogan-shield/loadshed"
	"github.com/KOMKZ/yogan-shield/logger"
	"github.com/KOMKZ/yogan-shield/middleware"
	"github.com/KOMKZ/yogan-shield/stats"
	"github.com/KOMKZ/yogan-shield/telemetry"
	"github.com/samber/do/v2"
	"go.uber.org/zap"
)

// Application HTTP 应用（BaseApplication + HTTP 服务 + 定时汇报）
type Application struct {
	*BaseApplication

	httpServer *HTTPServer
	reporter   *StatsReporter
	routes     routeSet
}

// New 创建 HTTP 应用
// configPath: 配置目录；configPrefix: 环境变量前缀（默认 SHIELD）；flags: 命令行参数（可为 nil）
func New(configPath, configPrefix string, flags interface{}) (*Application, error) {
	baseApp, err := NewBase(configPath, configPrefix, flags)
	if err != nil {
		return nil, err
	}
	return &Application{BaseApplication: baseApp}, nil
}

// WithVersion 设置版本号（链式调用）
func (a *Application) WithVersion(version string) *Application {
	a.BaseApplication.WithVersion(version)
	return a
}

// Run 启动并阻塞直到收到关闭信号
func (a *Application) Run() error {
	if err := a.RunNonBlocking(); err != nil {
		return err
	}
	a.WaitShutdown()
	return a.gracefulShutdown()
}

// RunNonBlocking 完成全部启动逻辑但不等待信号（测试或手动控制生命周期）
func (a *Application) RunNonBlocking() error {
	if err := a.Setup(); err != nil {
		return fmt.Errorf("setup failed: %w", err)
	}

	if err := a.startHTTPServer(); err != nil {
		return err
	}

	if err := a.startReporter(); err != nil {
		return err
	}

	if err := a.ready(); err != nil {
		return err
	}

	fields := []zap.Field{
		zap.String("addr", a.httpServer.Addr()),
		zap.Duration("startup_time", a.GetStartDuration()),
	}
	if version := a.GetVersion(); version != "" {
		fields = append(fields, zap.String("version", version))
	}
	a.MustGetLogger().InfoCtx(a.ctx, "HTTP application started", fields...)
	return nil
}

// serverDeps 从 DI 取出 HTTP 服务需要的组件；未能创建的组件对应中间件不挂载
func (a *Application) serverDeps() ServerDeps {
	i := a.GetInjector()
	deps := ServerDeps{Logger: a.MustGetLogger()}

	if checker, err := do.Invoke[limiter.Checker](i); err == nil {
		deps.Limiter = checker
		if base, err := do.Invoke[*limiter.RateLimiter](i); err == nil {
			deps.LimiterCfg = base.Config()
		}
	} else {
		a.logger.WarnCtx(a.ctx, "rate limiter unavailable, requests are not limited", zap.Error(err))
	}
	if h, err := do.Invoke[*loadshed.Handler](i); err == nil {
		deps.LoadShed = h
	}
	if mgr, err := do.Invoke[*telemetry.Manager](i); err == nil {
		deps.Telemetry = mgr
	}
	if m, err := do.Invoke[*middleware.HTTPMetrics](i); err == nil {
		deps.HTTPMetrics = m
	}
	if agg, err := do.Invoke[*health.Aggregator](i); err == nil {
		deps.Health = agg
	}
	return deps
}

func (a *Application) startHTTPServer() error {
	a.httpServer = NewHTTPServer(*a.cfg, a.serverDeps())
	a.routes.register(a.httpServer.GetEngine(), a)

	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("start HTTP server: %w", err)
	}
	return nil
}

func (a *Application) startReporter() error {
	cfg := a.cfg.Reporter
	if !cfg.Enabled {
		return nil
	}
	collector, err := do.Invoke[*stats.Collector](a.GetInjector())
	if err != nil {
		a.logger.WarnCtx(a.ctx, "stats reporter disabled", zap.Error(err))
		return nil
	}

	reporter, err := NewStatsReporter(collector, cfg.Interval, logger.GetLogger("reporter"))
	if err != nil {
		return err
	}
	if err := reporter.Start(a.ctx); err != nil {
		return err
	}
	a.reporter = reporter
	return nil
}

// gracefulShutdown 先停止接收请求，再停汇报，最后关闭组件
func (a *Application) gracefulShutdown() error {
	log := a.MustGetLogger()
	timeout := a.cfg.HTTP.ShutdownTimeout

	if a.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := a.httpServer.Shutdown(ctx); err != nil {
			log.ErrorCtx(ctx, "HTTP server close failed", zap.Error(err))
		}
		cancel()
	}

	if a.reporter != nil {
		if err := a.reporter.Shutdown(timeout); err != nil {
			log.ErrorCtx(context.Background(), "stats reporter close failed", zap.Error(err))
		}
	}

	return a.BaseApplication.Shutdown(timeout)
}

// Stop 非阻塞模式下的关闭入口
func (a *Application) Stop() error {
	return a.gracefulShutdown()
}

// GetHTTPServer 获取 HTTP 服务（测试用）
func (a *Application) GetHTTPServer() *HTTPServer {
	return a.httpServer
}

// OnSetup 注册 Setup 阶段回调（链式调用）
func (a *Application) OnSetup(fn func(*Application) error) *Application {
	a.BaseApplication.OnSetup(func(*BaseApplication) error {
		return fn(a)
	})
	return a
}

// OnReady 注册启动完成回调（链式调用）
func (a *Application) OnReady(fn func(*Application) error) *Application {
	a.BaseApplication.OnReady(func(*BaseApplication) error {
		return fn(a)
	})
	return a
}

// OnShutdown 注册关闭前回调（链式调用）
func (a *Application) OnShutdown(fn func(*Application) error) *Application {
	a.BaseApplication.OnShutdown(func(context.Context) error {
		return fn(a)
	})
	return a
}

// RegisterRoutes 追加路由注册器
func (a *Application) RegisterRoutes(registrars ...Router) *Application {
	a.routes.add(registrars...)
	return a
}

// Shutdown 手动触发关闭信号（Run 模式）
func (a *Application) Shutdown() {
	a.Cancel()
}
