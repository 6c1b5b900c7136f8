package limiter

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Load bands: below 50% of capacity the nominal limit applies, then the limit
// shrinks to 70%, 50% and 30%.
const (
	factorNormal   = 1.0
	factorElevated = 0.7
	factorHigh     = 0.5
	factorCritical = 0.3
)

// LoadFactor maps a store load ratio in [0,1] to the limit multiplier
func LoadFactor(load float64) float64 {
	switch {
	case load >= 0.9:
		return factorCritical
	case load >= 0.75:
		return factorHigh
	case load >= 0.5:
		return factorElevated
	default:
		return factorNormal
	}
}

// EffectiveLimit is max(1, floor(limit*factor))
func EffectiveLimit(limit int64, factor float64) int64 {
	return max(1, int64(math.Floor(float64(limit)*factor)))
}

// AdaptiveRateLimiter scales the limit down while the coordination store is busy.
// The load signal is the store's own throughput, shared by every instance, and is
// independent of the per-process request rate the load shedder watches.
type AdaptiveRateLimiter struct {
	base  *RateLimiter
	probe LoadProbe

	mu       sync.Mutex
	load     float64
	probedAt time.Time
}

// NewAdaptiveRateLimiter wraps base with a load probe
func NewAdaptiveRateLimiter(base *RateLimiter, probe LoadProbe) (*AdaptiveRateLimiter, error) {
	if base == nil || probe == nil {
		return nil, ErrInvalidConfig.WithMsg("adaptive limiter needs a base limiter and a load probe")
	}
	a := &AdaptiveRateLimiter{base: base, probe: probe}
	if base.metrics != nil {
		base.metrics.RegisterLoadCallback(func() float64 {
			a.mu.Lock()
			defer a.mu.Unlock()
			return a.load
		})
	}
	return a, nil
}

// Check applies the current load factor to the comparison limit only
func (a *AdaptiveRateLimiter) Check(ctx context.Context, id Identity) Decision {
	limit := EffectiveLimit(a.base.cfg.MaxRequests, a.LoadFactor(ctx))
	return a.base.check(ctx, id, limit)
}

// LoadFactor probes the store (memoized for ProbeInterval) and returns the multiplier
func (a *AdaptiveRateLimiter) LoadFactor(ctx context.Context) float64 {
	return LoadFactor(a.Load(ctx))
}

// Load returns clamp(ops/maxOps, 0, 1). A failed probe counts as no load.
func (a *AdaptiveRateLimiter) Load(ctx context.Context) float64 {
	now := a.base.now()

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.probedAt.IsZero() && now.Sub(a.probedAt) < a.base.cfg.Adaptive.ProbeInterval {
		return a.load
	}

	probeCtx, cancel := context.WithTimeout(ctx, a.base.cfg.StoreTimeout)
	defer cancel()

	ops, err := a.probe.OpsPerSecond(probeCtx)
	if err != nil {
		a.base.log.WarnCtx(ctx, "load probe failed, assuming no load", zap.Error(err))
		ops = 0
	}

	a.load = math.Min(1, math.Max(0, ops/a.base.cfg.Adaptive.MaxOpsPerSecond))
	a.probedAt = now
	return a.load
}

// Base returns the wrapped limiter
func (a *AdaptiveRateLimiter) Base() *RateLimiter {
	return a.base
}
