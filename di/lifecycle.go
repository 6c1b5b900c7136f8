// Package di 提供依赖注入和生命周期管理
package di

import (
	"context"
	"fmt"

	"github.com/KOMKZ/yogan-shield/analytics"
	"github.com/KOMKZ/yogan-shield/breaker"
	"github.com/KOMKZ/yogan-shield/cache"
	"github.com/KOMKZ/yogan-shield/component"
	"github.com/KOMKZ/yogan-shield/health"
	"github.com/KOMKZ/yogan-shield/limiter"
	"github.com/KOMKZ/yogan-shield/loadshed"
	"github.com/KOMKZ/yogan-shield/logger"
	"github.com/KOMKZ/yogan-shield/middleware"
	"github.com/KOMKZ/yogan-shield/redis"
	"github.com/KOMKZ/yogan-shield/telemetry"
	"github.com/samber/do/v2"
	"go.uber.org/zap"
)

// StartCoreComponents 启动 Telemetry，注册组件指标，并触发核心组件初始化
// 组件的 Init 逻辑在各自的 Provider 中实现
func StartCoreComponents(ctx context.Context, injector do.Injector, log *logger.CtxZapLogger) error {
	telemetryMgr, err := do.Invoke[*telemetry.Manager](injector)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	if err := telemetryMgr.Start(ctx); err != nil {
		return fmt.Errorf("telemetry start: %w", err)
	}

	// Redis - 触发连接（失败时按配置降级或中止）
	if _, err := do.Invoke[*redis.Manager](injector); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	log.DebugCtx(ctx, "✅ Redis 组件已就绪")

	if _, err := do.Invoke[*breaker.Registry](injector); err != nil {
		return fmt.Errorf("breaker: %w", err)
	}
	if _, err := do.Invoke[*loadshed.Handler](injector); err != nil {
		return fmt.Errorf("loadshed: %w", err)
	}
	if _, err := do.Invoke[limiter.Checker](injector); err != nil {
		return fmt.Errorf("limiter: %w", err)
	}
	if _, err := do.Invoke[*cache.Manager](injector); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if _, err := do.Invoke[*analytics.Service](injector); err != nil {
		return fmt.Errorf("analytics: %w", err)
	}
	if _, err := do.Invoke[*health.Aggregator](injector); err != nil {
		return fmt.Errorf("health: %w", err)
	}
	log.DebugCtx(ctx, "✅ 弹性组件已就绪")

	providers, err := metricsProviders(injector)
	if err != nil {
		return err
	}
	if err := telemetryMgr.RegisterMetrics(providers...); err != nil {
		// 指标注册失败不影响服务
		log.WarnCtx(ctx, "metrics registration incomplete", zap.Error(err))
	}
	return nil
}

// metricsProviders collects every component metrics provider from the container
func metricsProviders(injector do.Injector) ([]component.MetricsProvider, error) {
	var providers []component.MetricsProvider
	add := func(p component.MetricsProvider, err error) error {
		if err != nil {
			return err
		}
		providers = append(providers, p)
		return nil
	}

	invokers := []func() error{
		func() error { return add(do.Invoke[*redis.RedisMetrics](injector)) },
		func() error { return add(do.Invoke[*limiter.OTelMetrics](injector)) },
		func() error { return add(do.Invoke[*breaker.Metrics](injector)) },
		func() error { return add(do.Invoke[*loadshed.OTelMetrics](injector)) },
		func() error { return add(do.Invoke[*cache.OTelMetrics](injector)) },
		func() error { return add(do.Invoke[*middleware.HTTPMetrics](injector)) },
	}
	for _, invoke := range invokers {
		if err := invoke(); err != nil {
			return nil, fmt.Errorf("metrics provider: %w", err)
		}
	}
	return providers, nil
}
