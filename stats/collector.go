// Package stats assembles the operational snapshot served on /stats, logged by
// the periodic reporter and printed by the stats command.
package stats

import (
	"context"
	"time"

	"github.com/KOMKZ/yogan-shield/breaker"
	"github.com/KOMKZ/yogan-shield/cache"
	"github.com/KOMKZ/yogan-shield/limiter"
	"github.com/KOMKZ/yogan-shield/loadshed"
)

// Snapshot cache figures are fleet wide, breaker and load figures belong to this process
type Snapshot struct {
	Cache          cache.Stats              `json:"cache"`
	CircuitBreaker map[string]breaker.Stats `json:"circuitBreaker"`
	Load           loadshed.Metrics         `json:"load"`
	RateLimit      *RateLimit               `json:"rateLimit,omitempty"`
	Timestamp      time.Time                `json:"timestamp"`
}

// RateLimit adaptive limiter state, present only when adaptive limiting is on
type RateLimit struct {
	StoreLoad  float64 `json:"storeLoad"`
	LoadFactor float64 `json:"loadFactor"`
}

// LoadReporter is the part of the adaptive limiter the snapshot reads
type LoadReporter interface {
	Load(ctx context.Context) float64
}

// Option configures a Collector
type Option func(*Collector)

// WithLoadReporter includes the adaptive limiter load in snapshots
func WithLoadReporter(r LoadReporter) Option {
	return func(c *Collector) {
		c.limiter = r
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		if now != nil {
			c.now = now
		}
	}
}

// Collector reads the components a snapshot is made of. Any of them may be nil.
type Collector struct {
	cache    *cache.Manager
	breakers *breaker.Registry
	load     *loadshed.Handler
	limiter  LoadReporter
	now      func() time.Time
}

// NewCollector creates a collector
func NewCollector(cm *cache.Manager, breakers *breaker.Registry, load *loadshed.Handler, opts ...Option) *Collector {
	c := &Collector{
		cache:    cm,
		breakers: breakers,
		load:     load,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect builds a snapshot. It never fails: unavailable figures stay zero.
func (c *Collector) Collect(ctx context.Context) Snapshot {
	s := Snapshot{
		CircuitBreaker: map[string]breaker.Stats{},
		Timestamp:      c.now().UTC(),
	}
	if c.cache != nil {
		s.Cache = c.cache.GetStats(ctx)
	}
	if c.breakers != nil {
		s.CircuitBreaker = c.breakers.Stats()
	}
	if c.load != nil {
		s.Load = c.load.Metrics()
	}
	if c.limiter != nil {
		load := c.limiter.Load(ctx)
		s.RateLimit = &RateLimit{
			StoreLoad:  load,
			LoadFactor: limiter.LoadFactor(load),
		}
	}
	return s
}
