package cache

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/KOMKZ/yogan-shield/component"
)

var _ component.MetricsProvider = (*OTelMetrics)(nil)

// MetricsConfig cache.metrics 段
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type cacheInstruments struct {
	hits         metric.Int64Counter
	misses       metric.Int64Counter
	earlyRefresh metric.Int64Counter
	invalidated  metric.Int64Counter
}

// OTelMetrics 与 GetStats 同口径：提前刷新也计为命中，另有单独计数
type OTelMetrics struct {
	config MetricsConfig
	inst   atomic.Pointer[cacheInstruments]
}

func NewOTelMetrics(cfg MetricsConfig) *OTelMetrics {
	return &OTelMetrics{config: cfg}
}

func (m *OTelMetrics) MetricsName() string    { return "cache" }
func (m *OTelMetrics) IsMetricsEnabled() bool { return m.config.Enabled }
func (m *OTelMetrics) IsRegistered() bool     { return m.inst.Load() != nil }

func (m *OTelMetrics) RegisterMetrics(meter metric.Meter) error {
	if m.IsRegistered() {
		return nil
	}

	counters := []struct {
		dst        *metric.Int64Counter
		name, desc string
		unit       string
	}{
		{nil, "cache_hits_total", "Cache hits, early refreshes included", "{request}"},
		{nil, "cache_misses_total", "Cache misses", "{request}"},
		{nil, "cache_early_refresh_total", "Entries handed back for recomputation before expiry", "{request}"},
		{nil, "cache_invalidated_keys_total", "Entries removed by invalidation", "{key}"},
	}
	var inst cacheInstruments
	counters[0].dst, counters[1].dst = &inst.hits, &inst.misses
	counters[2].dst, counters[3].dst = &inst.earlyRefresh, &inst.invalidated

	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return err
		}
		*c.dst = counter
	}

	m.inst.CompareAndSwap(nil, &inst)
	return nil
}

// RecordHit early marks an XFetch early refresh
func (m *OTelMetrics) RecordHit(ctx context.Context, namespace string, early bool) {
	inst := m.inst.Load()
	if inst == nil {
		return
	}
	ns := metric.WithAttributes(attribute.String("namespace", namespace))
	inst.hits.Add(ctx, 1, ns)
	if early {
		inst.earlyRefresh.Add(ctx, 1, ns)
	}
}

func (m *OTelMetrics) RecordMiss(ctx context.Context, namespace string) {
	if inst := m.inst.Load(); inst != nil {
		inst.misses.Add(ctx, 1, metric.WithAttributes(attribute.String("namespace", namespace)))
	}
}

// RecordInvalidation kind is tag, namespace, tenant or date
func (m *OTelMetrics) RecordInvalidation(ctx context.Context, kind string, removed int64) {
	if inst := m.inst.Load(); inst != nil {
		inst.invalidated.Add(ctx, removed, metric.WithAttributes(attribute.String("kind", kind)))
	}
}
