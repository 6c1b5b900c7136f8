package telemetry

import (
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/KOMKZ/yogan-shield/component"
	"github.com/KOMKZ/yogan-shield/logger"
)

// meterRegistry 给每个组件一个独立 Meter，名称为 {namespace}_{component}
//
// provider 为 nil 时指标整体关闭，Register 直接忽略。
type meterRegistry struct {
	provider  metric.MeterProvider
	namespace string
	log       *logger.CtxZapLogger

	mu         sync.Mutex
	registered map[string]struct{}
}

func newMeterRegistry(provider metric.MeterProvider, namespace string, log *logger.CtxZapLogger) *meterRegistry {
	return &meterRegistry{
		provider:   provider,
		namespace:  namespace,
		log:        log,
		registered: make(map[string]struct{}),
	}
}

func (r *meterRegistry) enabled() bool { return r.provider != nil }

func (r *meterRegistry) meterName(component string) string {
	if r.namespace == "" {
		return component
	}
	return r.namespace + "_" + component
}

// Register 调用 provider.RegisterMetrics；同名组件只允许一次
func (r *meterRegistry) Register(p component.MetricsProvider) error {
	if p == nil {
		return fmt.Errorf("nil metrics provider")
	}
	if !r.enabled() || !p.IsMetricsEnabled() {
		return nil
	}

	name := p.MetricsName()
	if name == "" {
		return fmt.Errorf("metrics provider %T has no name", p)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.registered[name]; dup {
		return fmt.Errorf("metrics %q already registered", name)
	}
	if err := p.RegisterMetrics(r.provider.Meter(r.meterName(name))); err != nil {
		return fmt.Errorf("register %s metrics: %w", name, err)
	}
	r.registered[name] = struct{}{}

	r.log.Debug("metrics registered", zap.String("component", name))
	return nil
}

// count 已注册的组件数
func (r *meterRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.registered)
}
