package breaker

import (
	"fmt"
	"time"
)

// Well known dependency names guarded by the registry
const (
	NameDatastore = "datastore"
	NameCache     = "cache"
	NameAnalytics = "analytics"
)

// Config per-breaker configuration
type Config struct {
	// FailureThreshold consecutive failures that open the circuit
	FailureThreshold int `mapstructure:"failure_threshold"`

	// SuccessThreshold half-open successes that close it again
	SuccessThreshold int `mapstructure:"success_threshold"`

	// Timeout time spent open before a trial call is let through
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns 5 failures, 2 successes, 60s open
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          60 * time.Second,
	}
}

// ApplyDefaults fills zero values
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.FailureThreshold == 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.SuccessThreshold == 0 {
		c.SuccessThreshold = d.SuccessThreshold
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
}

// Validate configuration
func (c Config) Validate() error {
	if c.FailureThreshold <= 0 {
		return ErrInvalidConfig.WithMsgf("failure_threshold must be positive, got %d", c.FailureThreshold)
	}
	if c.SuccessThreshold <= 0 {
		return ErrInvalidConfig.WithMsgf("success_threshold must be positive, got %d", c.SuccessThreshold)
	}
	if c.Timeout <= 0 {
		return ErrInvalidConfig.WithMsgf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

// RegistryConfig breakers keyed by dependency name
type RegistryConfig struct {
	Default  Config            `mapstructure:"default"`
	Breakers map[string]Config `mapstructure:"breakers"`
}

// DefaultRegistryConfig guards the datastore, the cache and the analytics compute
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		Default: DefaultConfig(),
		Breakers: map[string]Config{
			NameDatastore: {},
			NameCache:     {},
			NameAnalytics: {},
		},
	}
}

// resolve returns the named config with zero fields taken from Default
func (c RegistryConfig) resolve(name string) Config {
	cfg := c.Breakers[name]
	def := c.Default
	def.ApplyDefaults()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	return cfg
}

// Validate every resolved breaker config
func (c RegistryConfig) Validate() error {
	for name := range c.Breakers {
		if err := c.resolve(name).Validate(); err != nil {
			return fmt.Errorf("breaker %s: %w", name, err)
		}
	}
	return nil
}
