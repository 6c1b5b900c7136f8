package analytics

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config analytics read path configuration
type Config struct {
	// ComputeLatency simulated datastore latency of the synthetic computer
	ComputeLatency time.Duration `mapstructure:"compute_latency"`

	// Breaker name of the registry breaker guarding computation (default "analytics")
	Breaker string `mapstructure:"breaker"`

	// DatastoreBreaker name of the registry breaker guarding the datastore read
	// inside one computation (default "datastore")
	DatastoreBreaker string `mapstructure:"datastore_breaker"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		ComputeLatency:   50 * time.Millisecond,
		Breaker:          "analytics",
		DatastoreBreaker: "datastore",
	}
}

// ApplyDefaults fills zero values
func (c *Config) ApplyDefaults() {
	if c.Breaker == "" {
		c.Breaker = "analytics"
	}
	if c.DatastoreBreaker == "" {
		c.DatastoreBreaker = "datastore"
	}
	if c.ComputeLatency < 0 {
		c.ComputeLatency = 0
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Breaker, validation.Required),
		validation.Field(&c.DatastoreBreaker, validation.Required),
		validation.Field(&c.ComputeLatency, validation.Max(30*time.Second)),
	)
}
