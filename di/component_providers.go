package di

import (
	"context"
	"fmt"

	"github.com/KOMKZ/yogan-shield/analytics"
	"github.com/KOMKZ/yogan-shield/breaker"
	"github.com/KOMKZ/yogan-shield/cache"
	"github.com/KOMKZ/yogan-shield/config"
	"github.com/KOMKZ/yogan-shield/health"
	"github.com/KOMKZ/yogan-shield/limiter"
	"github.com/KOMKZ/yogan-shield/loadshed"
	"github.com/KOMKZ/yogan-shield/middleware"
	"github.com/KOMKZ/yogan-shield/redis"
	"github.com/KOMKZ/yogan-shield/stats"
	"github.com/KOMKZ/yogan-shield/telemetry"
	"github.com/samber/do/v2"
	"go.uber.org/zap"
)

// unmarshalKey decodes key over the defaults already held by v
func unmarshalKey(i do.Injector, key string, v interface{}) error {
	loader, err := do.Invoke[*config.Loader](i)
	if err != nil {
		return err
	}
	if err := loader.UnmarshalKey(key, v); err != nil {
		return fmt.Errorf("decode %s config: %w", key, err)
	}
	return nil
}

// ============================================
// Redis 组件 Provider
// 依赖：Config, Logger
// ============================================

// ProvideRedisMetrics 创建 Redis 命令指标 Provider（redis.metrics）
func ProvideRedisMetrics(i do.Injector) (*redis.RedisMetrics, error) {
	var cfg redis.Config
	if err := unmarshalKey(i, "redis", &cfg); err != nil {
		return nil, err
	}
	return redis.NewRedisMetrics(cfg.Metrics), nil
}

// ProvideRedisManager 创建 redis.Manager 的 Provider
// Connects with retry; an unreachable store is tolerated unless redis.connect.required is set.
func ProvideRedisManager(i do.Injector) (*redis.Manager, error) {
	var cfg redis.Config
	if err := unmarshalKey(i, "redis", &cfg); err != nil {
		return nil, err
	}

	mgr, err := redis.NewManager(context.Background(), cfg, moduleLogger(i, "redis"))
	if err != nil {
		return nil, err
	}

	if metrics, err := do.Invoke[*redis.RedisMetrics](i); err == nil {
		mgr.SetMetrics(metrics)
	}
	return mgr, nil
}

// ============================================
// Limiter 组件 Provider
// ============================================

// ProvideLimiterMetrics 创建限流指标 Provider（limiter.metrics）
func ProvideLimiterMetrics(i do.Injector) (*limiter.OTelMetrics, error) {
	var cfg limiter.MetricsConfig
	if err := unmarshalKey(i, "limiter.metrics", &cfg); err != nil {
		return nil, err
	}
	return limiter.NewOTelMetrics(cfg), nil
}

// ProvideRateLimiter 创建滑动窗口限流器
// store_type memory keeps windows in process; redis (default) shares them across instances.
func ProvideRateLimiter(i do.Injector) (*limiter.RateLimiter, error) {
	cfg := limiter.DefaultConfig()
	if err := unmarshalKey(i, "limiter", &cfg); err != nil {
		return nil, err
	}

	var store limiter.Store
	switch limiter.StoreType(cfg.StoreType) {
	case limiter.StoreTypeMemory:
		store = limiter.NewMemoryStore()
	case limiter.StoreTypeRedis, "":
		mgr, err := do.Invoke[*redis.Manager](i)
		if err != nil {
			return nil, fmt.Errorf("redis limiter store: %w", err)
		}
		store = limiter.NewRedisStore(mgr.Client())
	default:
		return nil, limiter.ErrInvalidConfig.WithMsgf("unknown limiter store_type %q", cfg.StoreType)
	}

	opts := []limiter.Option{limiter.WithLogger(moduleLogger(i, "limiter"))}
	if metrics, err := do.Invoke[*limiter.OTelMetrics](i); err == nil {
		opts = append(opts, limiter.WithMetrics(metrics))
	}
	return limiter.NewRateLimiter(cfg, store, opts...)
}

// ProvideRateLimitChecker 创建中间件使用的 limiter.Checker
// With limiter.adaptive.enabled the limit follows the load of the coordination store.
func ProvideRateLimitChecker(i do.Injector) (limiter.Checker, error) {
	base, err := do.Invoke[*limiter.RateLimiter](i)
	if err != nil {
		return nil, err
	}
	if !base.Config().Adaptive.Enabled {
		return base, nil
	}

	mgr, err := do.Invoke[*redis.Manager](i)
	if err != nil {
		moduleLogger(i, "limiter").WarnCtx(context.Background(),
			"adaptive limiting needs redis, using the fixed limit", zap.Error(err))
		return base, nil
	}
	return limiter.NewAdaptiveRateLimiter(base, limiter.NewRedisLoadProbe(mgr.Client()))
}

// ============================================
// Breaker 组件 Provider
// ============================================

// ProvideBreakerMetrics 创建熔断器指标 Provider（breaker.metrics）
func ProvideBreakerMetrics(i do.Injector) (*breaker.Metrics, error) {
	var cfg breaker.MetricsConfig
	if err := unmarshalKey(i, "breaker.metrics", &cfg); err != nil {
		return nil, err
	}
	return breaker.NewMetrics(cfg), nil
}

// ProvideBreakerRegistry 按依赖创建熔断器（datastore, cache, analytics + breaker.breakers）
func ProvideBreakerRegistry(i do.Injector) (*breaker.Registry, error) {
	cfg := breaker.DefaultRegistryConfig()
	if err := unmarshalKey(i, "breaker", &cfg); err != nil {
		return nil, err
	}

	var opts []breaker.Option
	if metrics, err := do.Invoke[*breaker.Metrics](i); err == nil {
		opts = append(opts, breaker.WithMetrics(metrics))
	}
	return breaker.NewRegistry(cfg, moduleLogger(i, "breaker"), opts...)
}

// ============================================
// Load shedding 组件 Provider
// ============================================

// ProvideLoadShedMetrics 创建负载指标 Provider（loadshed.metrics）
func ProvideLoadShedMetrics(i do.Injector) (*loadshed.OTelMetrics, error) {
	var cfg loadshed.MetricsConfig
	if err := unmarshalKey(i, "loadshed.metrics", &cfg); err != nil {
		return nil, err
	}
	return loadshed.NewOTelMetrics(cfg), nil
}

// ProvideLoadShedHandler 创建进程内负载处理器
func ProvideLoadShedHandler(i do.Injector) (*loadshed.Handler, error) {
	cfg := loadshed.DefaultConfig()
	if err := unmarshalKey(i, "loadshed", &cfg); err != nil {
		return nil, err
	}

	opts := []loadshed.Option{loadshed.WithLogger(moduleLogger(i, "loadshed"))}
	if metrics, err := do.Invoke[*loadshed.OTelMetrics](i); err == nil {
		opts = append(opts, loadshed.WithMetrics(metrics))
	}
	return loadshed.NewHandler(cfg, opts...)
}

// ============================================
// Cache 组件 Provider
// 依赖：Redis, Breaker
// ============================================

// ProvideCacheMetrics 创建缓存指标 Provider（cache.metrics）
func ProvideCacheMetrics(i do.Injector) (*cache.OTelMetrics, error) {
	var cfg cache.MetricsConfig
	if err := unmarshalKey(i, "cache.metrics", &cfg); err != nil {
		return nil, err
	}
	return cache.NewOTelMetrics(cfg), nil
}

// ProvideCacheManager 创建缓存管理器（Redis 存储）
func ProvideCacheManager(i do.Injector) (*cache.Manager, error) {
	cfg := cache.DefaultConfig()
	if err := unmarshalKey(i, "cache", &cfg); err != nil {
		return nil, err
	}

	mgr, err := do.Invoke[*redis.Manager](i)
	if err != nil {
		return nil, fmt.Errorf("cache store: %w", err)
	}

	// 集群下一个租户的条目和标签集合必须落在同一个 slot
	if mgr.Config().Mode == redis.ModeCluster {
		cfg.HashTagScope = true
	}

	opts := []cache.Option{cache.WithLogger(moduleLogger(i, "cache"))}
	if metrics, err := do.Invoke[*cache.OTelMetrics](i); err == nil {
		opts = append(opts, cache.WithMetrics(metrics))
	}
	registry, err := do.Invoke[*breaker.Registry](i)
	if err != nil {
		return nil, err
	}
	if cb, ok := registry.Get(breaker.NameCache); ok {
		opts = append(opts, cache.WithBreaker(cb))
	}
	return cache.NewManager(cfg, cache.NewRedisStore("main", mgr.Client()), opts...)
}

// ============================================
// Analytics 组件 Provider
// 依赖：Breaker, Cache
// ============================================

// ProvideAnalyticsService 创建汇总服务
func ProvideAnalyticsService(i do.Injector) (*analytics.Service, error) {
	cfg := analytics.DefaultConfig()
	if err := unmarshalKey(i, "analytics", &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := config.ValidateSection("analytics", cfg); err != nil {
		return nil, err
	}

	registry, err := do.Invoke[*breaker.Registry](i)
	if err != nil {
		return nil, err
	}
	cb, ok := registry.Get(cfg.Breaker)
	if !ok {
		return nil, fmt.Errorf("analytics breaker %q not configured", cfg.Breaker)
	}
	datastore, ok := registry.Get(cfg.DatastoreBreaker)
	if !ok {
		return nil, fmt.Errorf("datastore breaker %q not configured", cfg.DatastoreBreaker)
	}

	cm, err := do.Invoke[*cache.Manager](i)
	if err != nil {
		return nil, err
	}

	computer := analytics.SyntheticComputer{Latency: cfg.ComputeLatency}
	return analytics.NewService(cb, cm, computer,
		analytics.WithDatastoreBreaker(datastore),
		analytics.WithLogger(moduleLogger(i, "analytics"))), nil
}

// ProvideStatsCollector 创建 /stats 与定时汇报共用的快照采集器
func ProvideStatsCollector(i do.Injector) (*stats.Collector, error) {
	cm, err := do.Invoke[*cache.Manager](i)
	if err != nil {
		return nil, err
	}
	registry, err := do.Invoke[*breaker.Registry](i)
	if err != nil {
		return nil, err
	}
	handler, err := do.Invoke[*loadshed.Handler](i)
	if err != nil {
		return nil, err
	}

	var opts []stats.Option
	if checker, err := do.Invoke[limiter.Checker](i); err == nil {
		if adaptive, ok := checker.(*limiter.AdaptiveRateLimiter); ok {
			opts = append(opts, stats.WithLoadReporter(adaptive))
		}
	}
	return stats.NewCollector(cm, registry, handler, opts...), nil
}

// ============================================
// Telemetry 组件 Provider
// ============================================

// ProvideTelemetryManager 创建 telemetry.Manager（Start 在 StartCoreComponents 中调用）
func ProvideTelemetryManager(i do.Injector) (*telemetry.Manager, error) {
	cfg := telemetry.DefaultConfig()
	if err := unmarshalKey(i, "telemetry", &cfg); err != nil {
		return nil, err
	}
	return telemetry.NewManager(cfg, moduleLogger(i, "telemetry")), nil
}

// ProvideHTTPMetrics 创建 HTTP 指标中间件（telemetry.metrics.http）
func ProvideHTTPMetrics(i do.Injector) (*middleware.HTTPMetrics, error) {
	mgr, err := do.Invoke[*telemetry.Manager](i)
	if err != nil {
		return nil, err
	}
	httpCfg := mgr.GetConfig().Metrics.HTTP
	return middleware.NewHTTPMetrics(middleware.HTTPMetricsConfig{
		Enabled:            httpCfg.Enabled,
		RecordRequestSize:  httpCfg.RecordRequestSize,
		RecordResponseSize: httpCfg.RecordResponseSize,
	}), nil
}

// ============================================
// Health 组件 Provider
// 依赖：Redis, Breaker, LoadShed
// ============================================

// ProvideHealthAggregator 创建健康检查聚合器
// Redis failures report degraded; an open breaker or critical load reports unhealthy.
func ProvideHealthAggregator(i do.Injector) (*health.Aggregator, error) {
	cfg := health.DefaultConfig()
	if err := unmarshalKey(i, "health", &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := config.ValidateSection("health", cfg); err != nil {
		return nil, err
	}

	agg := health.NewAggregator(cfg.Timeout)

	if mgr, err := do.Invoke[*redis.Manager](i); err == nil {
		agg.Register(redis.NewHealthChecker(mgr))
	} else {
		agg.Register(redis.NewHealthChecker(nil))
	}
	if registry, err := do.Invoke[*breaker.Registry](i); err == nil {
		agg.Register(breaker.NewHealthChecker(registry))
	}
	if handler, err := do.Invoke[*loadshed.Handler](i); err == nil {
		agg.Register(loadshed.NewHealthChecker(handler))
	}
	return agg, nil
}
