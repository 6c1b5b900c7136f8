package cache

import (
	"strings"
	"time"
)

// Config for the cache manager
type Config struct {
	// KeyPrefix entries live at {prefix}:{tenant|global}:{namespace}:{identifier}
	KeyPrefix string `mapstructure:"key_prefix"`

	// TagPrefix tag sets live at {tag_prefix}:{tenant|global}:{tag}; must not sit
	// under KeyPrefix
	TagPrefix string `mapstructure:"tag_prefix"`

	// HashTagScope wraps the tenant segment in {} for Redis Cluster. Set
	// automatically when redis.mode is cluster.
	HashTagScope bool `mapstructure:"hash_tag_scope"`

	// StatsKey hash holding fleet-wide hit/miss counters
	StatsKey string `mapstructure:"stats_key"`

	// Beta XFetch aggressiveness, 1.0 is the classic setting
	Beta float64 `mapstructure:"beta"`

	// TagGrace tag sets outlive their longest member by this much
	TagGrace time.Duration `mapstructure:"tag_grace"`

	// ScanCount SCAN batch size for tenant/namespace invalidation
	ScanCount int64 `mapstructure:"scan_count"`

	// StoreTimeout bounds every store round trip
	StoreTimeout time.Duration `mapstructure:"store_timeout"`

	// InvalidateWorkers concurrent tag invalidations
	InvalidateWorkers int `mapstructure:"invalidate_workers"`

	// TTL tiers
	TTL TTLPolicy `mapstructure:"ttl"`
}

// TTLPolicy picks a TTL from how old the requested data is
type TTLPolicy struct {
	Realtime       time.Duration `mapstructure:"realtime"`        // range ends within RealtimeWindow
	Recent         time.Duration `mapstructure:"recent"`          // range ends within RecentWindow
	Historical     time.Duration `mapstructure:"historical"`      // anything older
	Default        time.Duration `mapstructure:"default"`         // no date range
	RealtimeWindow time.Duration `mapstructure:"realtime_window"` // default 1h
	RecentWindow   time.Duration `mapstructure:"recent_window"`   // default 7d
}

// DefaultTTLPolicy returns 30s / 300s / 3600s with a 300s default
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		Realtime:       30 * time.Second,
		Recent:         300 * time.Second,
		Historical:     3600 * time.Second,
		Default:        300 * time.Second,
		RealtimeWindow: time.Hour,
		RecentWindow:   7 * 24 * time.Hour,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		KeyPrefix:         "cache",
		TagPrefix:         "cache-tag",
		StatsKey:          "cache:stats",
		Beta:              1.0,
		TagGrace:          300 * time.Second,
		ScanCount:         100,
		StoreTimeout:      500 * time.Millisecond,
		InvalidateWorkers: 8,
		TTL:               DefaultTTLPolicy(),
	}
}

// ApplyDefaults fills zero values
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.KeyPrefix == "" {
		c.KeyPrefix = d.KeyPrefix
	}
	if c.TagPrefix == "" {
		c.TagPrefix = d.TagPrefix
	}
	if c.StatsKey == "" {
		c.StatsKey = d.StatsKey
	}
	if c.Beta == 0 {
		c.Beta = d.Beta
	}
	if c.TagGrace == 0 {
		c.TagGrace = d.TagGrace
	}
	if c.ScanCount == 0 {
		c.ScanCount = d.ScanCount
	}
	if c.StoreTimeout == 0 {
		c.StoreTimeout = d.StoreTimeout
	}
	if c.InvalidateWorkers == 0 {
		c.InvalidateWorkers = d.InvalidateWorkers
	}
	c.TTL.applyDefaults(d.TTL)
}

func (p *TTLPolicy) applyDefaults(d TTLPolicy) {
	if p.Realtime == 0 {
		p.Realtime = d.Realtime
	}
	if p.Recent == 0 {
		p.Recent = d.Recent
	}
	if p.Historical == 0 {
		p.Historical = d.Historical
	}
	if p.Default == 0 {
		p.Default = d.Default
	}
	if p.RealtimeWindow == 0 {
		p.RealtimeWindow = d.RealtimeWindow
	}
	if p.RecentWindow == 0 {
		p.RecentWindow = d.RecentWindow
	}
}

// Validate configuration
func (c Config) Validate() error {
	if c.TagPrefix == c.KeyPrefix || strings.HasPrefix(c.TagPrefix, c.KeyPrefix+":") {
		return ErrConfigInvalid.WithMsgf("tag_prefix %q must not sit under key_prefix %q", c.TagPrefix, c.KeyPrefix)
	}
	if c.Beta <= 0 {
		return ErrConfigInvalid.WithMsgf("beta must be positive, got %v", c.Beta)
	}
	if c.TagGrace < 0 {
		return ErrConfigInvalid.WithMsg("tag_grace must not be negative")
	}
	if c.ScanCount <= 0 {
		return ErrConfigInvalid.WithMsg("scan_count must be positive")
	}
	if c.StoreTimeout <= 0 {
		return ErrConfigInvalid.WithMsg("store_timeout must be positive")
	}
	if c.InvalidateWorkers <= 0 {
		return ErrConfigInvalid.WithMsg("invalidate_workers must be positive")
	}
	p := c.TTL
	if p.Realtime <= 0 || p.Recent <= 0 || p.Historical <= 0 || p.Default <= 0 {
		return ErrConfigInvalid.WithMsg("ttl tiers must be positive")
	}
	if p.RealtimeWindow <= 0 || p.RecentWindow <= p.RealtimeWindow {
		return ErrConfigInvalid.WithMsgf("ttl windows must ascend: realtime=%s recent=%s",
			p.RealtimeWindow, p.RecentWindow)
	}
	return nil
}
