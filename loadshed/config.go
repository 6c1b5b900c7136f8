package loadshed

import (
	"time"
)

// Config 负载感知降级配置
type Config struct {
	Enabled bool `mapstructure:"enabled"`

	// MonitoringWindow samples older than this are dropped
	MonitoringWindow time.Duration `mapstructure:"monitoring_window"`

	// Request rate (req/s over the window) at which each level starts
	ElevatedThreshold float64 `mapstructure:"elevated_threshold"`
	HighThreshold     float64 `mapstructure:"high_threshold"`
	CriticalThreshold float64 `mapstructure:"critical_threshold"`

	// MaxSamples bounds memory; the oldest samples go first
	MaxSamples int `mapstructure:"max_samples"`

	RetryAfter RetryAfterConfig `mapstructure:"retry_after"`

	// SkipPaths never shed and never recorded (health probes)
	SkipPaths []string `mapstructure:"skip_paths"`
}

// RetryAfterConfig hint returned to shed clients, per level
type RetryAfterConfig struct {
	Elevated time.Duration `mapstructure:"elevated"`
	High     time.Duration `mapstructure:"high"`
	Critical time.Duration `mapstructure:"critical"`
}

// DefaultConfig returns 100/250/500 req/s over 60s
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		MonitoringWindow:  60 * time.Second,
		ElevatedThreshold: 100,
		HighThreshold:     250,
		CriticalThreshold: 500,
		MaxSamples:        200000,
		RetryAfter: RetryAfterConfig{
			Elevated: 5 * time.Second,
			High:     30 * time.Second,
			Critical: 60 * time.Second,
		},
		SkipPaths: []string{"/health", "/health/liveness", "/health/readiness"},
	}
}

// ApplyDefaults fills zero values
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.MonitoringWindow == 0 {
		c.MonitoringWindow = d.MonitoringWindow
	}
	if c.ElevatedThreshold == 0 {
		c.ElevatedThreshold = d.ElevatedThreshold
	}
	if c.HighThreshold == 0 {
		c.HighThreshold = d.HighThreshold
	}
	if c.CriticalThreshold == 0 {
		c.CriticalThreshold = d.CriticalThreshold
	}
	if c.MaxSamples == 0 {
		c.MaxSamples = d.MaxSamples
	}
	if c.RetryAfter.Elevated == 0 {
		c.RetryAfter.Elevated = d.RetryAfter.Elevated
	}
	if c.RetryAfter.High == 0 {
		c.RetryAfter.High = d.RetryAfter.High
	}
	if c.RetryAfter.Critical == 0 {
		c.RetryAfter.Critical = d.RetryAfter.Critical
	}
	if c.SkipPaths == nil {
		c.SkipPaths = d.SkipPaths
	}
}

// Validate configuration
func (c Config) Validate() error {
	if c.MonitoringWindow <= 0 {
		return ErrInvalidConfig.WithMsgf("monitoring_window must be positive, got %s", c.MonitoringWindow)
	}
	if c.ElevatedThreshold <= 0 {
		return ErrInvalidConfig.WithMsg("elevated_threshold must be positive")
	}
	if c.HighThreshold <= c.ElevatedThreshold || c.CriticalThreshold <= c.HighThreshold {
		return ErrInvalidConfig.WithMsgf("thresholds must ascend: elevated=%v high=%v critical=%v",
			c.ElevatedThreshold, c.HighThreshold, c.CriticalThreshold)
	}
	if c.MaxSamples <= 0 {
		return ErrInvalidConfig.WithMsg("max_samples must be positive")
	}
	if c.RetryAfter.Elevated < 0 || c.RetryAfter.High < 0 || c.RetryAfter.Critical < 0 {
		return ErrInvalidConfig.WithMsg("retry_after values must not be negative")
	}
	return nil
}
