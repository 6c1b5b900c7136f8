package breaker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/KOMKZ/yogan-shield/component"
)

// MetricsConfig breaker.metrics 段
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// RecordState 额外上报 breaker_state 仪表（0 closed, 1 open, 2 half-open）
	RecordState bool `mapstructure:"record_state"`
}

// 调用结果标签
const (
	resultSuccess      = "success"
	resultFailure      = "failure"
	resultShortCircuit = "short_circuit"
)

var _ component.MetricsProvider = (*Metrics)(nil)

type breakerInstruments struct {
	calls       metric.Int64Counter
	transitions metric.Int64Counter
	latency     metric.Float64Histogram
}

// Metrics 熔断器调用、状态迁移与当前状态指标；注册前所有 Record 为空操作
type Metrics struct {
	config MetricsConfig
	inst   atomic.Pointer[breakerInstruments]

	statesMu sync.RWMutex
	states   map[string]func() int64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{config: cfg, states: map[string]func() int64{}}
}

func (m *Metrics) MetricsName() string    { return "breaker" }
func (m *Metrics) IsMetricsEnabled() bool { return m.config.Enabled }
func (m *Metrics) IsRegistered() bool     { return m.inst.Load() != nil }

// RegisterMetrics creates the instruments once; later calls are no-ops
func (m *Metrics) RegisterMetrics(meter metric.Meter) error {
	if m.IsRegistered() {
		return nil
	}

	var (
		inst breakerInstruments
		err  error
	)
	if inst.calls, err = meter.Int64Counter("breaker_requests_total",
		metric.WithDescription("Calls through a circuit breaker by result"), metric.WithUnit("{request}")); err != nil {
		return err
	}
	if inst.transitions, err = meter.Int64Counter("breaker_transitions_total",
		metric.WithDescription("Circuit breaker state changes"), metric.WithUnit("{transition}")); err != nil {
		return err
	}
	if inst.latency, err = meter.Float64Histogram("breaker_latency_seconds",
		metric.WithDescription("Latency of calls the breaker let through"), metric.WithUnit("s")); err != nil {
		return err
	}
	if m.config.RecordState {
		if _, err = meter.Int64ObservableGauge("breaker_state",
			metric.WithDescription("Circuit breaker state: 0 closed, 1 open, 2 half-open"),
			metric.WithInt64Callback(m.observeStates)); err != nil {
			return err
		}
	}

	m.inst.CompareAndSwap(nil, &inst)
	return nil
}

// RegisterStateCallback adds one breaker to the breaker_state gauge
func (m *Metrics) RegisterStateCallback(name string, state func() int64) {
	m.statesMu.Lock()
	m.states[name] = state
	m.statesMu.Unlock()
}

func (m *Metrics) observeStates(_ context.Context, o metric.Int64Observer) error {
	m.statesMu.RLock()
	defer m.statesMu.RUnlock()
	for name, state := range m.states {
		o.Observe(state(), metric.WithAttributes(attribute.String("breaker", name)))
	}
	return nil
}

func (m *Metrics) RecordSuccess(ctx context.Context, name string, d time.Duration) {
	m.recordCall(ctx, name, resultSuccess, d)
}

func (m *Metrics) RecordFailure(ctx context.Context, name string, d time.Duration) {
	m.recordCall(ctx, name, resultFailure, d)
}

// RecordRejection a call refused while OPEN; it has no latency
func (m *Metrics) RecordRejection(ctx context.Context, name string) {
	if inst := m.inst.Load(); inst != nil {
		inst.calls.Add(ctx, 1, metric.WithAttributes(
			attribute.String("breaker", name), attribute.String("result", resultShortCircuit)))
	}
}

func (m *Metrics) RecordTransition(ctx context.Context, name string, from, to State) {
	if inst := m.inst.Load(); inst != nil {
		inst.transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("breaker", name),
			attribute.String("from", from.String()),
			attribute.String("to", to.String())))
	}
}

func (m *Metrics) recordCall(ctx context.Context, name, result string, d time.Duration) {
	inst := m.inst.Load()
	if inst == nil {
		return
	}
	byName := attribute.String("breaker", name)
	inst.calls.Add(ctx, 1, metric.WithAttributes(byName, attribute.String("result", result)))
	inst.latency.Record(ctx, d.Seconds(), metric.WithAttributes(byName))
}
