package limiter

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/KOMKZ/yogan-shield/component"
)

var _ component.MetricsProvider = (*OTelMetrics)(nil)

// MetricsConfig limiter.metrics 段
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// 决策结果标签
const (
	resultAllowed  = "allowed"
	resultRejected = "rejected"
	resultFailOpen = "fail_open"
)

type limiterInstruments struct {
	decisions metric.Int64Counter
	failOpen  metric.Int64Counter
}

// OTelMetrics 限流决策计数；fail-open 另记一份，便于单独告警
type OTelMetrics struct {
	config MetricsConfig
	inst   atomic.Pointer[limiterInstruments]
	load   atomic.Pointer[func() float64]
}

func NewOTelMetrics(cfg MetricsConfig) *OTelMetrics {
	return &OTelMetrics{config: cfg}
}

func (m *OTelMetrics) MetricsName() string    { return "limiter" }
func (m *OTelMetrics) IsMetricsEnabled() bool { return m.config.Enabled }
func (m *OTelMetrics) IsRegistered() bool     { return m.inst.Load() != nil }

func (m *OTelMetrics) RegisterMetrics(meter metric.Meter) error {
	if m.IsRegistered() {
		return nil
	}

	var (
		inst limiterInstruments
		err  error
	)
	if inst.decisions, err = meter.Int64Counter("limiter_requests_total",
		metric.WithDescription("Rate limit decisions by result"), metric.WithUnit("{request}")); err != nil {
		return err
	}
	if inst.failOpen, err = meter.Int64Counter("limiter_fail_open_total",
		metric.WithDescription("Requests admitted because the window store was unavailable"), metric.WithUnit("{request}")); err != nil {
		return err
	}
	// 仅在自适应限流注册回调后才有数据
	if _, err = meter.Float64ObservableGauge("limiter_store_load",
		metric.WithDescription("Store load ratio seen by the adaptive limiter"),
		metric.WithFloat64Callback(m.observeLoad)); err != nil {
		return err
	}

	m.inst.CompareAndSwap(nil, &inst)
	return nil
}

// RegisterLoadCallback source of limiter_store_load
func (m *OTelMetrics) RegisterLoadCallback(load func() float64) {
	m.load.Store(&load)
}

func (m *OTelMetrics) observeLoad(_ context.Context, o metric.Float64Observer) error {
	if load := m.load.Load(); load != nil {
		o.Observe((*load)())
	}
	return nil
}

func (m *OTelMetrics) RecordAllowed(ctx context.Context)  { m.recordDecision(ctx, resultAllowed) }
func (m *OTelMetrics) RecordRejected(ctx context.Context) { m.recordDecision(ctx, resultRejected) }

// RecordFailOpen a request admitted without consulting the store
func (m *OTelMetrics) RecordFailOpen(ctx context.Context) {
	if inst := m.recordDecision(ctx, resultFailOpen); inst != nil {
		inst.failOpen.Add(ctx, 1)
	}
}

func (m *OTelMetrics) recordDecision(ctx context.Context, result string) *limiterInstruments {
	inst := m.inst.Load()
	if inst != nil {
		inst.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	}
	return inst
}
