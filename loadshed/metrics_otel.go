package loadshed

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/KOMKZ/yogan-shield/component"
)

var _ component.MetricsProvider = (*OTelMetrics)(nil)

// MetricsConfig loadshed.metrics 段
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// OTelMetrics 丢弃计数，以及从窗口快照读取的速率和负载等级
type OTelMetrics struct {
	config MetricsConfig
	shed   atomic.Pointer[metric.Int64Counter]
	source atomic.Pointer[func() Metrics]
}

func NewOTelMetrics(cfg MetricsConfig) *OTelMetrics {
	return &OTelMetrics{config: cfg}
}

func (m *OTelMetrics) MetricsName() string    { return "loadshed" }
func (m *OTelMetrics) IsMetricsEnabled() bool { return m.config.Enabled }
func (m *OTelMetrics) IsRegistered() bool     { return m.shed.Load() != nil }

func (m *OTelMetrics) RegisterMetrics(meter metric.Meter) error {
	if m.IsRegistered() {
		return nil
	}

	shed, err := meter.Int64Counter("loadshed_rejected_total",
		metric.WithDescription("Requests shed because of local load"), metric.WithUnit("{request}"))
	if err != nil {
		return err
	}

	if _, err = meter.Float64ObservableGauge("loadshed_requests_per_second",
		metric.WithDescription("Request rate over the monitoring window"),
		metric.WithUnit("{request}/s"),
		metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
			if snap, ok := m.snapshot(); ok {
				o.Observe(snap.RequestsPerSecond)
			}
			return nil
		})); err != nil {
		return err
	}

	// 0=normal 1=elevated 2=high 3=critical
	if _, err = meter.Int64ObservableGauge("loadshed_level",
		metric.WithDescription("Current load level"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			if snap, ok := m.snapshot(); ok {
				o.Observe(int64(snap.LoadLevel))
			}
			return nil
		})); err != nil {
		return err
	}

	m.shed.CompareAndSwap(nil, &shed)
	return nil
}

// RegisterSource gauges read the window through source
func (m *OTelMetrics) RegisterSource(source func() Metrics) {
	m.source.Store(&source)
}

func (m *OTelMetrics) snapshot() (Metrics, bool) {
	src := m.source.Load()
	if src == nil {
		return Metrics{}, false
	}
	return (*src)(), true
}

func (m *OTelMetrics) RecordShed(ctx context.Context, level Level, priority int) {
	shed := m.shed.Load()
	if shed == nil {
		return
	}
	(*shed).Add(ctx, 1, metric.WithAttributes(
		attribute.String("level", level.String()),
		attribute.Int("priority", priority),
	))
}
