package health

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config /health 检查配置
type Config struct {
	// Timeout 单次聚合检查的总超时，各检查项共享
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{Timeout: defaultTimeout}
}

// ApplyDefaults 补齐零值
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Timeout, validation.Min(10*time.Millisecond), validation.Max(time.Minute)),
	)
}
