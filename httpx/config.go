package httpx

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ErrorLoggingConfig which errors HandleError logs (httpx section)
type ErrorLoggingConfig struct {
	Enable bool `mapstructure:"enable" json:"enable"`
	// IgnoreHTTPStatus 这些状态码从不记录；429 是限流的正常结果
	IgnoreHTTPStatus []int `mapstructure:"ignore_http_status" json:"ignore_http_status"`
	// FullErrorChain 同时记录被包装的 cause
	FullErrorChain bool `mapstructure:"full_error_chain" json:"full_error_chain"`
	// LogLevel error | warn | info
	LogLevel string `mapstructure:"log_level" json:"log_level"`
}

func DefaultErrorLoggingConfig() ErrorLoggingConfig {
	return ErrorLoggingConfig{
		IgnoreHTTPStatus: []int{429},
		FullErrorChain:   true,
		LogLevel:         "error",
	}
}

func (c ErrorLoggingConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.LogLevel, validation.In("error", "warn", "info")),
		validation.Field(&c.IgnoreHTTPStatus, validation.Each(validation.Min(100), validation.Max(599))),
	)
}
