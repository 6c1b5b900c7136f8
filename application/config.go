package application

import (
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/KOMKZ/yogan-shield/errcode"
	"github.com/KOMKZ/yogan-shield/httpx"
	"github.com/KOMKZ/yogan-shield/middleware"
	"github.com/KOMKZ/yogan-shield/validator"
)

// ErrInvalidConfig 应用配置无效 (模块码 10, 业务码 1001)
var ErrInvalidConfig = errcode.Register(errcode.New(
	10, 1001,
	"application", "error.application.invalid_config", "应用配置无效",
	http.StatusInternalServerError,
))

// AppConfig 应用级配置（组件配置由各自的 Provider 读取）
type AppConfig struct {
	App        AppInfo                  `mapstructure:"app" json:"app"`
	HTTP       ServerConfig             `mapstructure:"http" json:"http"`
	Middleware MiddlewareConfig         `mapstructure:"middleware" json:"middleware"`
	Httpx      httpx.ErrorLoggingConfig `mapstructure:"httpx" json:"httpx"`
	Reporter   ReporterConfig           `mapstructure:"reporter" json:"reporter"`
}

// AppInfo 应用元信息
type AppInfo struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Host            string        `mapstructure:"host" json:"host"`
	Port            int           `mapstructure:"port" json:"port"`
	Mode            string        `mapstructure:"mode" json:"mode"` // debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout"`
}

// MiddlewareConfig 中间件开关
type MiddlewareConfig struct {
	CORS       CORSConfig       `mapstructure:"cors"`
	TraceID    TraceIDConfig    `mapstructure:"trace_id"`
	RequestLog RequestLogConfig `mapstructure:"request_log"`
}

// CORSConfig 跨域中间件（默认关闭）
type CORSConfig struct {
	Enable                bool `mapstructure:"enable"`
	middleware.CORSConfig `mapstructure:",squash"`
}

// TraceIDConfig TraceID 中间件（默认开启）
type TraceIDConfig struct {
	Enable               bool   `mapstructure:"enable"`
	TraceIDKey           string `mapstructure:"trace_id_key"`
	TraceIDHeader        string `mapstructure:"trace_id_header"`
	EnableResponseHeader bool   `mapstructure:"enable_response_header"`
}

// RequestLogConfig 请求日志中间件（默认开启，跳过探活路径）
type RequestLogConfig struct {
	Enable    bool     `mapstructure:"enable"`
	SkipPaths []string `mapstructure:"skip_paths"`
}

// ReporterConfig 定时统计汇报
type ReporterConfig struct {
	Enabled  bool          `mapstructure:"enabled" json:"enabled"`
	Interval time.Duration `mapstructure:"interval" json:"interval"`
}

// DefaultAppConfig 默认应用配置
func DefaultAppConfig() AppConfig {
	trace := middleware.DefaultTraceConfig()
	return AppConfig{
		App: AppInfo{Name: "yogan-shield"},
		HTTP: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Mode:            "release",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Middleware: MiddlewareConfig{
			CORS: CORSConfig{CORSConfig: middleware.DefaultCORSConfig()},
			TraceID: TraceIDConfig{
				Enable:               true,
				TraceIDKey:           trace.TraceIDKey,
				TraceIDHeader:        trace.TraceIDHeader,
				EnableResponseHeader: trace.EnableResponseHeader,
			},
			RequestLog: RequestLogConfig{
				Enable:    true,
				SkipPaths: []string{"/health/liveness", "/health/readiness"},
			},
		},
		Httpx: httpx.DefaultErrorLoggingConfig(),
		Reporter: ReporterConfig{
			Enabled:  true,
			Interval: time.Minute,
		},
	}
}

// ApplyDefaults 填充零值
func (c *AppConfig) ApplyDefaults() {
	def := DefaultAppConfig()
	if c.App.Name == "" {
		c.App.Name = def.App.Name
	}
	if c.HTTP.Mode == "" {
		c.HTTP.Mode = def.HTTP.Mode
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = def.HTTP.ShutdownTimeout
	}
	if c.Middleware.TraceID.TraceIDKey == "" {
		c.Middleware.TraceID.TraceIDKey = def.Middleware.TraceID.TraceIDKey
	}
	if c.Middleware.TraceID.TraceIDHeader == "" {
		c.Middleware.TraceID.TraceIDHeader = def.Middleware.TraceID.TraceIDHeader
	}
	if c.Reporter.Interval <= 0 {
		c.Reporter.Interval = def.Reporter.Interval
	}
}

// Validate 校验应用配置
func (c AppConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.HTTP),
		validation.Field(&c.Httpx),
		validation.Field(&c.Reporter),
	)
}

// Validate 校验 HTTP 服务配置
func (c ServerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Min(0), validation.Max(65535)),
		validation.Field(&c.Mode, validation.In("debug", "release", "test")),
		validation.Field(&c.ReadTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.WriteTimeout, validation.Min(time.Duration(0))),
	)
}

// Validate 校验汇报配置
func (c ReporterConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Interval, validation.When(c.Enabled, validation.Min(time.Second))),
	)
}

// loadAppConfig 解码并校验应用配置，校验失败转换为 LayeredError
func loadAppConfig(decode func(key string, v interface{}) error) (*AppConfig, error) {
	cfg := DefaultAppConfig()
	for key, target := range map[string]interface{}{
		"app":        &cfg.App,
		"http":       &cfg.HTTP,
		"middleware": &cfg.Middleware,
		"httpx":      &cfg.Httpx,
		"reporter":   &cfg.Reporter,
	} {
		if err := decode(key, target); err != nil {
			return nil, ErrInvalidConfig.Wrapf(err, "decode %s", key)
		}
	}
	cfg.ApplyDefaults()

	if err := validator.ValidateRequest(cfg); err != nil {
		return nil, ErrInvalidConfig.Wrap(err)
	}
	return &cfg, nil
}
