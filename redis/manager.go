// Package redis owns the connection to the coordination store shared by the
// limiter, the cache and the load probe.
package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/KOMKZ/yogan-shield/logger"
	"github.com/KOMKZ/yogan-shield/retry"
)

// Manager holds the one client every component shares
type Manager struct {
	client  redis.UniversalClient
	config  Config
	logger  *logger.CtxZapLogger
	mu      sync.Mutex
	metrics *RedisMetrics
	closed  bool
}

// NewManager creates the client and PINGs it with exponential backoff.
// When the store stays unreachable the manager is still returned, unless
// cfg.Connect.Required is set; go-redis reconnects on its own once it is back.
func NewManager(ctx context.Context, cfg Config, log *logger.CtxZapLogger) (*Manager, error) {
	if log == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid redis config: %w", err)
	}

	m := &Manager{
		client: newClient(cfg),
		config: cfg,
		logger: log,
	}

	err := m.connect(ctx)
	switch {
	case err == nil:
		log.DebugCtx(ctx, "Redis connected", zap.String("mode", cfg.Mode), zap.Strings("addrs", cfg.Addrs))
	case cfg.Connect.Required:
		_ = m.client.Close()
		return nil, fmt.Errorf("redis unreachable: %w", err)
	default:
		log.WarnCtx(ctx, "Redis unreachable at startup, continuing degraded",
			zap.Strings("addrs", cfg.Addrs), zap.Error(err))
	}
	return m, nil
}

// connect PING 到成功或次数用尽
func (m *Manager) connect(ctx context.Context) error {
	return retry.Do(ctx,
		func(ctx context.Context) error { return m.client.Ping(ctx).Err() },
		retry.MaxAttempts(m.config.Connect.Attempts),
		retry.Backoff(retry.ExponentialBackoff(m.config.Connect.Backoff)),
		retry.OnRetry(func(attempt int, err error) {
			m.logger.WarnCtx(ctx, "Redis ping failed",
				zap.Int("attempt", attempt), zap.Error(err))
		}),
	)
}

func newClient(cfg Config) redis.UniversalClient {
	opts := &redis.UniversalOptions{
		Addrs:        cfg.Addrs,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	// 按 mode 选择，不依赖地址个数
	if cfg.Mode == ModeCluster {
		return redis.NewClusterClient(opts.Cluster())
	}
	return redis.NewClient(opts.Simple())
}

func (m *Manager) Client() redis.UniversalClient { return m.client }
func (m *Manager) Config() Config                { return m.config }

// Ping checks the connection
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping %s failed: %w", m.config.Mode, err)
	}
	return nil
}

// PoolStats connection pool counters
func (m *Manager) PoolStats() PoolStats {
	s := m.client.PoolStats()
	return PoolStats{
		ActiveCount: int64(s.TotalConns - s.IdleConns),
		IdleCount:   int64(s.IdleConns),
	}
}

// Close 可重复调用
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	if m.metrics != nil {
		m.metrics.UnregisterPoolCallback(m.config.Mode)
	}
	err := m.client.Close()
	if err != nil {
		m.logger.ErrorCtx(context.Background(), "Redis close failed", zap.Error(err))
	}
	return err
}

// Shutdown implements do.Shutdowner
func (m *Manager) Shutdown() error {
	return m.Close()
}

// SetMetrics adds the command hook and the pool gauges. Idempotent.
func (m *Manager) SetMetrics(metrics *RedisMetrics) {
	if metrics == nil || !metrics.IsMetricsEnabled() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.metrics != nil {
		return
	}
	m.metrics = metrics

	m.client.AddHook(newCommandHook(metrics, m.config.Mode))
	if metrics.config.RecordPoolStats {
		metrics.RegisterPoolCallback(m.config.Mode, m.PoolStats)
	}

	m.logger.DebugCtx(context.Background(), "Redis metrics hook installed", zap.String("instance", m.config.Mode))
}
