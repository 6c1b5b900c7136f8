package di

import (
	"github.com/samber/do/v2"
)

// RegisterCoreProviders 注册所有核心组件的 Provider
// Providers are lazy: nothing connects until StartCoreComponents or the first Invoke.
func RegisterCoreProviders(injector do.Injector, opts ConfigOptions) {
	// 基础组件
	do.Provide(injector, ProvideConfigLoader(opts))
	do.Provide(injector, ProvideLoggerManager)
	do.Provide(injector, ProvideCtxLogger("yogan"))

	// 协调存储
	do.Provide(injector, ProvideRedisMetrics)
	do.Provide(injector, ProvideRedisManager)

	// 弹性组件
	do.Provide(injector, ProvideLimiterMetrics)
	do.Provide(injector, ProvideRateLimiter)
	do.Provide(injector, ProvideRateLimitChecker)
	do.Provide(injector, ProvideBreakerMetrics)
	do.Provide(injector, ProvideBreakerRegistry)
	do.Provide(injector, ProvideLoadShedMetrics)
	do.Provide(injector, ProvideLoadShedHandler)

	// 缓存与业务
	do.Provide(injector, ProvideCacheMetrics)
	do.Provide(injector, ProvideCacheManager)
	do.Provide(injector, ProvideAnalyticsService)
	do.Provide(injector, ProvideStatsCollector)

	// 可观测性
	do.Provide(injector, ProvideTelemetryManager)
	do.Provide(injector, ProvideHTTPMetrics)
	do.Provide(injector, ProvideHealthAggregator)
}
