// Package component holds the contracts shared between components and the
// telemetry layer. It imports nothing from this module.
package component

import "go.opentelemetry.io/otel/metric"

// MetricsProvider 组件指标
//
// telemetry 在指标导出启用后为每个组件创建名为 {namespace}_{MetricsName}
// 的 Meter 并调用一次 RegisterMetrics；之前的 Record 调用是空操作。
type MetricsProvider interface {
	// MetricsName 短小写名称，如 "limiter"、"cache"
	MetricsName() string
	RegisterMetrics(meter metric.Meter) error
	// IsMetricsEnabled 对应组件自己的 metrics.enabled 开关
	IsMetricsEnabled() bool
}
