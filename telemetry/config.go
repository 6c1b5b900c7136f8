package telemetry

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/KOMKZ/yogan-shield/breaker"
)

// 导出器与采样器取值
const (
	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
	ExporterNoop   = "noop"

	SamplerAlwaysOn    = "always_on"
	SamplerAlwaysOff   = "always_off"
	SamplerRatio       = "trace_id_ratio"
	SamplerParentBased = "parent_based_always_on"
)

const (
	defaultServiceName  = "yogan-shield"
	defaultMetricPrefix = "shield"
)

// Config telemetry 段
type Config struct {
	Enabled        bool   `mapstructure:"enabled" json:"enabled"`
	ServiceName    string `mapstructure:"service_name" json:"service_name"`
	ServiceVersion string `mapstructure:"service_version" json:"service_version"`

	Exporter ExporterConfig `mapstructure:"exporter" json:"exporter"`
	Sampler  SamplerConfig  `mapstructure:"sampler" json:"sampler"`
	Batch    BatchConfig    `mapstructure:"batch" json:"batch"`

	// ResourceAttrs 附加资源属性，支持嵌套与 ${ENV} 展开
	ResourceAttrs map[string]interface{} `mapstructure:"resource_attributes" json:"resource_attributes"`

	ExportBreaker ExportBreakerConfig `mapstructure:"export_breaker" json:"export_breaker"`
	Metrics       MetricsConfig       `mapstructure:"metrics" json:"metrics"`
}

// ExporterConfig traces 与 metrics 共用的导出目标
type ExporterConfig struct {
	Type     string            `mapstructure:"type" json:"type"`
	Endpoint string            `mapstructure:"endpoint" json:"endpoint"`
	Insecure bool              `mapstructure:"insecure" json:"insecure"`
	Timeout  time.Duration     `mapstructure:"timeout" json:"timeout"`
	Headers  map[string]string `mapstructure:"headers" json:"headers"`
}

// SamplerConfig Ratio 仅对 trace_id_ratio 生效
type SamplerConfig struct {
	Type  string  `mapstructure:"type" json:"type"`
	Ratio float64 `mapstructure:"ratio" json:"ratio"`
}

// BatchConfig Enabled=false 时同步导出（调试用）
type BatchConfig struct {
	Enabled            bool          `mapstructure:"enabled" json:"enabled"`
	MaxQueueSize       int           `mapstructure:"max_queue_size" json:"max_queue_size"`
	MaxExportBatchSize int           `mapstructure:"max_export_batch_size" json:"max_export_batch_size"`
	ScheduleDelay      time.Duration `mapstructure:"schedule_delay" json:"schedule_delay"`
	ExportTimeout      time.Duration `mapstructure:"export_timeout" json:"export_timeout"`
}

// ExportBreakerConfig collector 不可达时切到备用导出器
type ExportBreakerConfig struct {
	Enabled              bool           `mapstructure:"enabled" json:"enabled"`
	Breaker              breaker.Config `mapstructure:"breaker" json:"breaker"`
	FallbackExporterType string         `mapstructure:"fallback_exporter_type" json:"fallback_exporter_type"` // stdout 或 noop
}

// MetricsConfig 全局开关；各组件开关见 limiter.metrics、cache.metrics 等
type MetricsConfig struct {
	Enabled        bool              `mapstructure:"enabled" json:"enabled"`
	ExportInterval time.Duration     `mapstructure:"export_interval" json:"export_interval"`
	ExportTimeout  time.Duration     `mapstructure:"export_timeout" json:"export_timeout"`
	Namespace      string            `mapstructure:"namespace" json:"namespace"`
	Labels         map[string]string `mapstructure:"labels" json:"labels"`
	HTTP           HTTPMetrics       `mapstructure:"http" json:"http"`
}

// HTTPMetrics 请求级指标开关
type HTTPMetrics struct {
	Enabled            bool `mapstructure:"enabled" json:"enabled"`
	RecordRequestSize  bool `mapstructure:"record_request_size" json:"record_request_size"`
	RecordResponseSize bool `mapstructure:"record_response_size" json:"record_response_size"`
}

// DefaultConfig 默认关闭；开启后导出到本地 OTLP collector
func DefaultConfig() Config {
	return Config{
		ServiceName:    defaultServiceName,
		ServiceVersion: "1.0.0",
		Exporter: ExporterConfig{
			Type:     ExporterOTLP,
			Endpoint: "localhost:4317",
			Insecure: true,
			Timeout:  10 * time.Second,
		},
		Sampler: SamplerConfig{Type: SamplerParentBased, Ratio: 1},
		Batch: BatchConfig{
			Enabled:            true,
			MaxQueueSize:       2048,
			MaxExportBatchSize: 512,
			ScheduleDelay:      5 * time.Second,
			ExportTimeout:      30 * time.Second,
		},
		ExportBreaker: ExportBreakerConfig{
			Enabled:              true,
			Breaker:              breaker.DefaultConfig(),
			FallbackExporterType: ExporterNoop,
		},
		Metrics: MetricsConfig{
			ExportInterval: 10 * time.Second,
			ExportTimeout:  5 * time.Second,
			Namespace:      defaultMetricPrefix,
			HTTP:           HTTPMetrics{Enabled: true},
		},
	}
}

// Validate 关闭时不校验
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.ServiceName, validation.Required),
		validation.Field(&c.Exporter),
		validation.Field(&c.Sampler),
		validation.Field(&c.Batch),
		validation.Field(&c.ExportBreaker),
	)
}

// Validate implements validation.Validatable
func (e ExporterConfig) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Type, validation.Required, validation.In(ExporterOTLP, ExporterStdout)),
		validation.Field(&e.Endpoint, validation.When(e.Type == ExporterOTLP, validation.Required)),
	)
}

// Validate implements validation.Validatable
func (s SamplerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Type, validation.Required,
			validation.In(SamplerAlwaysOn, SamplerAlwaysOff, SamplerRatio, SamplerParentBased)),
		validation.Field(&s.Ratio, validation.When(s.Type == SamplerRatio, validation.Min(0.0), validation.Max(1.0))),
	)
}

// Validate implements validation.Validatable
func (b BatchConfig) Validate() error {
	if !b.Enabled {
		return nil
	}
	return validation.ValidateStruct(&b,
		validation.Field(&b.MaxQueueSize, validation.Min(1)),
		validation.Field(&b.MaxExportBatchSize, validation.Min(1)),
	)
}

// Validate implements validation.Validatable
func (e ExportBreakerConfig) Validate() error {
	if !e.Enabled {
		return nil
	}
	return validation.ValidateStruct(&e,
		validation.Field(&e.Breaker),
		validation.Field(&e.FallbackExporterType, validation.In(ExporterStdout, ExporterNoop)),
	)
}
