// Package telemetry wires OpenTelemetry tracing and metrics for the service.
package telemetry

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/KOMKZ/yogan-shield/breaker"
	"github.com/KOMKZ/yogan-shield/component"
	"github.com/KOMKZ/yogan-shield/logger"
	"github.com/KOMKZ/yogan-shield/validator"
)

// Manager 持有 tracer/meter provider 与组件指标注册表
type Manager struct {
	config Config
	logger *logger.CtxZapLogger

	mu            sync.RWMutex
	traces        *sdktrace.TracerProvider
	metrics       *sdkmetric.MeterProvider
	meters        *meterRegistry
	exportBreaker *breaker.CircuitBreaker
}

// NewManager 创建管理器；Start 之前不导出任何数据，指标注册被忽略
func NewManager(config Config, log *logger.CtxZapLogger) *Manager {
	if log == nil {
		log = logger.GetLogger("telemetry")
	}
	return &Manager{
		config: config,
		logger: log,
		meters: newMeterRegistry(nil, "", log),
	}
}

// Start 创建 provider 并设为全局；关闭时直接返回
func (m *Manager) Start(ctx context.Context) error {
	if !m.config.Enabled {
		m.logger.DebugCtx(ctx, "telemetry disabled")
		return nil
	}
	if err := validator.ValidateRequest(m.config); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	res, err := m.resource(ctx)
	if err != nil {
		return err
	}

	exporter, cb, err := m.spanExporter(ctx)
	if err != nil {
		return err
	}
	m.traces = m.tracerProvider(res, exporter)
	m.exportBreaker = cb
	otel.SetTracerProvider(m.traces)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	if m.config.Metrics.Enabled {
		mp, err := m.meterProvider(ctx, res)
		if err != nil {
			return err
		}
		m.metrics = mp
		otel.SetMeterProvider(mp)
		m.meters = newMeterRegistry(mp, m.config.Metrics.Namespace, m.logger)
	}

	m.logger.InfoCtx(ctx, "✅ Telemetry started",
		zap.String("service_name", m.config.ServiceName),
		zap.String("exporter", m.config.Exporter.Type),
		zap.Bool("metrics", m.config.Metrics.Enabled))
	return nil
}

// RegisterMetrics 注册组件指标；单个失败不影响其余，错误合并返回
func (m *Manager) RegisterMetrics(providers ...component.MetricsProvider) error {
	m.mu.RLock()
	meters := m.meters
	m.mu.RUnlock()

	var errs []error
	for _, p := range providers {
		if err := meters.Register(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Shutdown 先刷指标再刷 trace
func (m *Manager) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.metrics != nil {
		if err := m.metrics.Shutdown(ctx); err != nil {
			m.logger.ErrorCtx(ctx, "metrics shutdown failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	if m.traces != nil {
		if err := m.traces.Shutdown(ctx); err != nil {
			m.logger.ErrorCtx(ctx, "tracer shutdown failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GetTracer 未启动时回退到全局 provider
func (m *Manager) GetTracer(name string) trace.Tracer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.traces == nil {
		return otel.GetTracerProvider().Tracer(name)
	}
	return m.traces.Tracer(name)
}

// GetExportBreaker span 导出熔断器，未启用时为 nil
func (m *Manager) GetExportBreaker() *breaker.CircuitBreaker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.exportBreaker
}

// MetricsEnabled Start 之后指标是否在导出
func (m *Manager) MetricsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics != nil
}

// IsEnabled 配置是否开启
func (m *Manager) IsEnabled() bool { return m.config.Enabled }

// GetConfig 返回配置
func (m *Manager) GetConfig() Config { return m.config }
