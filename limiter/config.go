package limiter

import (
	"time"
)

// Rate limiter configuration
type Config struct {
	// Enabled whether to enable rate limiting (false means direct passthrough)
	Enabled bool `mapstructure:"enabled"`

	// StoreType storage type: memory, redis
	StoreType string `mapstructure:"store_type"`

	// KeyPrefix window key prefix, keys look like {prefix}:{tenant}:{ip}
	KeyPrefix string `mapstructure:"key_prefix"`

	// Window sliding window length
	Window time.Duration `mapstructure:"window"`

	// MaxRequests admitted per identity within Window
	MaxRequests int64 `mapstructure:"max_requests"`

	// StoreTimeout bounds every store round trip
	StoreTimeout time.Duration `mapstructure:"store_timeout"`

	// SkipPaths list of paths to bypass rate limiting (for middleware)
	SkipPaths []string `mapstructure:"skip_paths"`

	// Adaptive limit scaling driven by coordination store load
	Adaptive AdaptiveConfig `mapstructure:"adaptive"`
}

// AdaptiveConfig adaptive rate limiting configuration
type AdaptiveConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	MaxOpsPerSecond float64       `mapstructure:"max_ops_per_second"` // store ops/s treated as 100% load
	ProbeInterval   time.Duration `mapstructure:"probe_interval"`     // how long a probe result is reused
}

// StoreType storage type
type StoreType string

const (
	// StoreTypeMemory Memory Storage
	StoreTypeMemory StoreType = "memory"

	// StoreTypeRedis Redis storage
	StoreTypeRedis StoreType = "redis"
)

// Return default configuration
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		StoreType:    string(StoreTypeRedis),
		KeyPrefix:    "ratelimit",
		Window:       60 * time.Second,
		MaxRequests:  100,
		StoreTimeout: 200 * time.Millisecond,
		SkipPaths:    []string{},
		Adaptive: AdaptiveConfig{
			Enabled:         false,
			MaxOpsPerSecond: 10000,
			ProbeInterval:   time.Second,
		},
	}
}

// ApplyDefaults fills zero values. Negative values are left for Validate to reject.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.StoreType == "" {
		c.StoreType = d.StoreType
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = d.KeyPrefix
	}
	if c.Window == 0 {
		c.Window = d.Window
	}
	if c.MaxRequests == 0 {
		c.MaxRequests = d.MaxRequests
	}
	if c.StoreTimeout == 0 {
		c.StoreTimeout = d.StoreTimeout
	}
	if c.Adaptive.MaxOpsPerSecond == 0 {
		c.Adaptive.MaxOpsPerSecond = d.Adaptive.MaxOpsPerSecond
	}
	if c.Adaptive.ProbeInterval == 0 {
		c.Adaptive.ProbeInterval = d.Adaptive.ProbeInterval
	}
}

// Validate configuration
func (c *Config) Validate() error {
	if c.StoreType != string(StoreTypeMemory) && c.StoreType != string(StoreTypeRedis) {
		return &ValidationError{Field: "store_type", Message: "must be 'memory' or 'redis'"}
	}
	if c.Window <= 0 {
		return &ValidationError{Field: "window", Message: "must be positive"}
	}
	if c.MaxRequests <= 0 {
		return &ValidationError{Field: "max_requests", Message: "must be positive"}
	}
	if c.StoreTimeout <= 0 {
		return &ValidationError{Field: "store_timeout", Message: "must be positive"}
	}
	if c.Adaptive.MaxOpsPerSecond <= 0 {
		return &ValidationError{Field: "adaptive.max_ops_per_second", Message: "must be positive"}
	}
	if c.Adaptive.ProbeInterval < 0 {
		return &ValidationError{Field: "adaptive.probe_interval", Message: "must not be negative"}
	}
	return nil
}
