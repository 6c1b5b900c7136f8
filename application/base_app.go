// Package application wires the shield components into runnable programs.
// BaseApplication is the part shared by the HTTP service and the ops CLI:
// one DI container, one validated AppConfig and one lifecycle.
package application

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/KOMKZ/yogan-shield/config"
	"github.com/KOMKZ/yogan-shield/di"
	"github.com/KOMKZ/yogan-shield/logger"
	"github.com/samber/do/v2"
	"go.uber.org/zap"
)

// AppState lifecycle position of an application
type AppState int

const (
	StateInit AppState = iota
	StateSetup
	StateRunning
	StateStopping
	StateStopped
)

var stateNames = [...]string{"Init", "Setup", "Running", "Stopping", "Stopped"}

func (s AppState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

type lifecycleHooks struct {
	setup    func(*BaseApplication) error
	ready    func(*BaseApplication) error
	shutdown func(context.Context) error
}

// BaseApplication 组件由 samber/do 创建，关闭时按依赖逆序释放
type BaseApplication struct {
	injector *do.RootScope
	loader   *config.Loader
	logger   *logger.CtxZapLogger
	cfg      *AppConfig
	version  string
	hooks    lifecycleHooks

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	state     AppState
	startedAt time.Time
}

// NewBase loads configuration and the logger eagerly. Everything else is
// created lazily by Setup. On error the container is already torn down.
func NewBase(configPath, configPrefix string, flags interface{}) (*BaseApplication, error) {
	injector := di.NewContainer(di.ConfigOptions{
		ConfigPath:   configPath,
		ConfigPrefix: configPrefix,
		Flags:        flags,
	})

	app, err := bootstrap(injector)
	if err != nil {
		_ = injector.Shutdown()
		return nil, err
	}
	app.logger.DebugCtx(app.ctx, "application bootstrapped",
		zap.String("config_dir", configPath),
		zap.Strings("config_files", app.loader.GetLoadedFiles()))
	return app, nil
}

func bootstrap(injector *do.RootScope) (*BaseApplication, error) {
	loader, err := do.Invoke[*config.Loader](injector)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := do.Invoke[*logger.CtxZapLogger](injector)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	cfg, err := loadAppConfig(loader.UnmarshalKey)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &BaseApplication{
		injector: injector,
		loader:   loader,
		logger:   log,
		cfg:      cfg,
		version:  cfg.App.Version,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// WithVersion overrides app.version from the config
func (b *BaseApplication) WithVersion(version string) *BaseApplication {
	b.version = version
	return b
}

func (b *BaseApplication) GetVersion() string { return b.version }

// Setup starts the core components and then runs the OnSetup hook
func (b *BaseApplication) Setup() error {
	b.mu.Lock()
	b.startedAt = time.Now()
	b.mu.Unlock()
	b.setState(StateSetup)

	if err := di.StartCoreComponents(b.ctx, b.injector, b.logger); err != nil {
		return fmt.Errorf("start core components: %w", err)
	}
	if b.hooks.setup == nil {
		return nil
	}
	if err := b.hooks.setup(b); err != nil {
		return fmt.Errorf("onSetup failed: %w", err)
	}
	return nil
}

// ready marks the app running and fires the OnReady hook
func (b *BaseApplication) ready() error {
	b.setState(StateRunning)
	if b.hooks.ready == nil {
		return nil
	}
	if err := b.hooks.ready(b); err != nil {
		return fmt.Errorf("onReady failed: %w", err)
	}
	return nil
}

// Shutdown runs the OnShutdown hook and closes the container within timeout.
// Failures are logged; the app always ends up Stopped.
func (b *BaseApplication) Shutdown(timeout time.Duration) error {
	b.setState(StateStopping)
	defer b.setState(StateStopped)
	defer b.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if b.hooks.shutdown != nil {
		if err := b.hooks.shutdown(ctx); err != nil {
			b.logger.ErrorCtx(ctx, "shutdown hook failed", zap.Error(err))
		}
	}

	closed := make(chan error, 1)
	go func() { closed <- b.injector.Shutdown() }()

	select {
	case err := <-closed:
		if err != nil {
			b.logger.ErrorCtx(ctx, "component shutdown failed", zap.Error(err))
		}
	case <-ctx.Done():
		b.logger.WarnCtx(context.Background(), "component shutdown timed out", zap.Duration("timeout", timeout))
	}
	return nil
}

// WaitShutdown blocks until SIGINT/SIGTERM or Cancel. A second signal
// during the graceful phase exits the process.
func (b *BaseApplication) WaitShutdown() {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-b.ctx.Done():
		signal.Stop(sigs)
		b.logger.DebugCtx(context.Background(), "application cancelled")
	case sig := <-sigs:
		b.logger.InfoCtx(b.ctx, "shutdown signal received", zap.Stringer("signal", sig))
		b.cancel()
		go func() {
			defer signal.Stop(sigs)
			if sig, ok := <-sigs; ok {
				b.logger.WarnCtx(context.Background(), "forced exit", zap.Stringer("signal", sig))
				os.Exit(1)
			}
		}()
	}
}

// Cancel ends WaitShutdown without a signal
func (b *BaseApplication) Cancel() { b.cancel() }

func (b *BaseApplication) OnSetup(fn func(*BaseApplication) error) *BaseApplication {
	b.hooks.setup = fn
	return b
}

func (b *BaseApplication) OnReady(fn func(*BaseApplication) error) *BaseApplication {
	b.hooks.ready = fn
	return b
}

func (b *BaseApplication) OnShutdown(fn func(context.Context) error) *BaseApplication {
	b.hooks.shutdown = fn
	return b
}

// MustGetLogger core logger; NewBase guarantees it is set
func (b *BaseApplication) MustGetLogger() *logger.CtxZapLogger {
	if b.logger == nil {
		panic("application: logger not initialized")
	}
	return b.logger
}

func (b *BaseApplication) GetConfigLoader() *config.Loader { return b.loader }

func (b *BaseApplication) GetInjector() *do.RootScope { return b.injector }

// AppConfig validated application config
func (b *BaseApplication) AppConfig() *AppConfig { return b.cfg }

// Context is cancelled once shutdown starts
func (b *BaseApplication) Context() context.Context { return b.ctx }

func (b *BaseApplication) GetState() AppState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// GetStartDuration time since Setup began, zero before Setup
func (b *BaseApplication) GetStartDuration() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.startedAt.IsZero() {
		return 0
	}
	return time.Since(b.startedAt)
}

func (b *BaseApplication) setState(next AppState) {
	b.mu.Lock()
	prev := b.state
	b.state = next
	b.mu.Unlock()

	if prev != next {
		b.logger.DebugCtx(b.ctx, "application state", zap.Stringer("from", prev), zap.Stringer("to", next))
	}
}
