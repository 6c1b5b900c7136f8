package telemetry

import (
	"context"
	"fmt"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/KOMKZ/yogan-shield/breaker"
)

// spanExporter 主导出器，开启 export_breaker 时包一层熔断
func (m *Manager) spanExporter(ctx context.Context) (sdktrace.SpanExporter, *breaker.CircuitBreaker, error) {
	primary, err := newSpanExporter(ctx, m.config.Exporter.Type, m.config.Exporter)
	if err != nil {
		return nil, nil, err
	}

	eb := m.config.ExportBreaker
	if !eb.Enabled {
		return primary, nil, nil
	}

	fallback, err := newSpanExporter(ctx, eb.FallbackExporterType, m.config.Exporter)
	if err != nil {
		m.logger.WarnCtx(ctx, "fallback span exporter unavailable, dropping spans while open",
			zap.String("fallback", eb.FallbackExporterType), zap.Error(err))
		fallback = noopSpanExporter{}
	}

	guarded, err := newGuardedExporter(eb.Breaker, m.logger, primary, fallback)
	if err != nil {
		return nil, nil, fmt.Errorf("export breaker: %w", err)
	}
	return guarded, guarded.breaker, nil
}

func (m *Manager) tracerProvider(res *resource.Resource, exporter sdktrace.SpanExporter) *sdktrace.TracerProvider {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(m.config.Sampler)),
	}

	if b := m.config.Batch; b.Enabled {
		opts = append(opts, sdktrace.WithBatcher(exporter,
			sdktrace.WithMaxQueueSize(b.MaxQueueSize),
			sdktrace.WithMaxExportBatchSize(b.MaxExportBatchSize),
			sdktrace.WithBatchTimeout(b.ScheduleDelay),
			sdktrace.WithExportTimeout(b.ExportTimeout),
		))
	} else {
		opts = append(opts, sdktrace.WithSyncer(exporter))
	}
	return sdktrace.NewTracerProvider(opts...)
}

func (m *Manager) meterProvider(ctx context.Context, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	exporter, err := newMetricExporter(ctx, m.config.Exporter)
	if err != nil {
		return nil, err
	}

	mc := m.config.Metrics
	reader := sdkmetric.NewPeriodicReader(exporter,
		sdkmetric.WithInterval(mc.ExportInterval),
		sdkmetric.WithTimeout(mc.ExportTimeout),
	)
	return sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader)), nil
}

func sampler(cfg SamplerConfig) sdktrace.Sampler {
	switch cfg.Type {
	case SamplerAlwaysOn:
		return sdktrace.AlwaysSample()
	case SamplerAlwaysOff:
		return sdktrace.NeverSample()
	case SamplerRatio:
		return sdktrace.TraceIDRatioBased(cfg.Ratio)
	default:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
}
