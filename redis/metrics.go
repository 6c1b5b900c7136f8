package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/KOMKZ/yogan-shield/component"
)

// MetricsConfig redis.metrics 段
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// RecordPoolStats 额外上报连接池活跃/空闲连接数
	RecordPoolStats bool `mapstructure:"record_pool_stats"`
}

var _ component.MetricsProvider = (*RedisMetrics)(nil)

// redisInstruments 注册完成后整体替换，Record 路径无锁
type redisInstruments struct {
	commands metric.Int64Counter
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// RedisMetrics 协调存储的命令与连接池指标
type RedisMetrics struct {
	config MetricsConfig
	inst   atomic.Pointer[redisInstruments]

	poolMu sync.RWMutex
	pools  map[string]func() PoolStats
}

// PoolStats 连接池快照
type PoolStats struct {
	ActiveCount int64
	IdleCount   int64
}

// NewRedisMetrics 创建指标；RegisterMetrics 之前 Record 为空操作
func NewRedisMetrics(cfg MetricsConfig) *RedisMetrics {
	return &RedisMetrics{config: cfg, pools: make(map[string]func() PoolStats)}
}

// MetricsName implements component.MetricsProvider
func (m *RedisMetrics) MetricsName() string { return "redis" }

// IsMetricsEnabled implements component.MetricsProvider
func (m *RedisMetrics) IsMetricsEnabled() bool { return m.config.Enabled }

// IsRegistered RegisterMetrics 是否已成功
func (m *RedisMetrics) IsRegistered() bool { return m.inst.Load() != nil }

// RegisterMetrics implements component.MetricsProvider；重复调用无效果
func (m *RedisMetrics) RegisterMetrics(meter metric.Meter) error {
	if m.IsRegistered() {
		return nil
	}

	var (
		inst redisInstruments
		err  error
	)
	if inst.commands, err = meter.Int64Counter("redis_commands_total",
		metric.WithDescription("Redis commands executed"), metric.WithUnit("{command}")); err != nil {
		return err
	}
	if inst.duration, err = meter.Float64Histogram("redis_command_duration_seconds",
		metric.WithDescription("Redis command latency"), metric.WithUnit("s")); err != nil {
		return err
	}
	if inst.errors, err = meter.Int64Counter("redis_errors_total",
		metric.WithDescription("Redis commands that failed; redis.Nil is not a failure"), metric.WithUnit("{error}")); err != nil {
		return err
	}

	if m.config.RecordPoolStats {
		if err := m.registerPoolGauges(meter); err != nil {
			return err
		}
	}

	m.inst.CompareAndSwap(nil, &inst)
	return nil
}

func (m *RedisMetrics) registerPoolGauges(meter metric.Meter) error {
	active, err := meter.Int64ObservableGauge("redis_connections_active",
		metric.WithDescription("Redis connections in use"), metric.WithUnit("{connection}"))
	if err != nil {
		return err
	}
	idle, err := meter.Int64ObservableGauge("redis_connections_idle",
		metric.WithDescription("Idle Redis connections"), metric.WithUnit("{connection}"))
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		m.poolMu.RLock()
		defer m.poolMu.RUnlock()
		for instance, stats := range m.pools {
			s := stats()
			attrs := metric.WithAttributes(attribute.String("instance", instance))
			o.ObserveInt64(active, s.ActiveCount, attrs)
			o.ObserveInt64(idle, s.IdleCount, attrs)
		}
		return nil
	}, active, idle)
	return err
}

// RegisterPoolCallback 为 instance 登记连接池数据源
func (m *RedisMetrics) RegisterPoolCallback(instance string, stats func() PoolStats) {
	m.poolMu.Lock()
	m.pools[instance] = stats
	m.poolMu.Unlock()
}

// UnregisterPoolCallback 连接关闭时移除
func (m *RedisMetrics) UnregisterPoolCallback(instance string) {
	m.poolMu.Lock()
	delete(m.pools, instance)
	m.poolMu.Unlock()
}

// RecordCommand 记录一条命令
func (m *RedisMetrics) RecordCommand(ctx context.Context, instance, command string, took time.Duration, failed bool) {
	inst := m.inst.Load()
	if inst == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("instance", instance),
		attribute.String("command", command),
	)
	inst.commands.Add(ctx, 1, attrs)
	inst.duration.Record(ctx, took.Seconds(), attrs)
	if failed {
		inst.errors.Add(ctx, 1, attrs)
	}
}
