// Package limiter provides distributed sliding window rate limiting.
//
// Windows live in the coordination store so every instance shares one count per
// identity. The limiter never blocks traffic because of its own failures: when the
// store is unreachable the request is admitted and the failure is logged.
package limiter

import (
	"context"
	"math"
	"time"

	"github.com/KOMKZ/yogan-shield/logger"
	"go.uber.org/zap"
)

// DefaultTenant is used when a request carries no tenant
const DefaultTenant = "default"

// Identity of the caller a window is kept for
type Identity struct {
	ClientIP string
	TenantID string
}

// Decision is the outcome of one check
type Decision struct {
	Allowed    bool
	Limit      int64
	Current    int64
	Remaining  int64
	ResetTime  time.Time
	RetryAfter time.Duration // set when Allowed is false
	FailOpen   bool          // store failed, request admitted without counting
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds
func (d Decision) RetryAfterSeconds() int {
	return int(math.Ceil(d.RetryAfter.Seconds()))
}

// Checker is what the HTTP middleware depends on
type Checker interface {
	Check(ctx context.Context, id Identity) Decision
}

// Option configures a RateLimiter
type Option func(*RateLimiter)

// WithLogger sets the logger
func WithLogger(log *logger.CtxZapLogger) Option {
	return func(l *RateLimiter) {
		if log != nil {
			l.log = log
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(l *RateLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithMetrics attaches an OTel metrics provider
func WithMetrics(m *OTelMetrics) Option {
	return func(l *RateLimiter) {
		l.metrics = m
	}
}

// RateLimiter checks identities against a shared sliding window
type RateLimiter struct {
	cfg     Config
	store   Store
	log     *logger.CtxZapLogger
	now     func() time.Time
	metrics *OTelMetrics
}

// NewRateLimiter validates cfg and builds a limiter. Invalid configuration is fatal.
func NewRateLimiter(cfg Config, store Store, opts ...Option) (*RateLimiter, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, ErrInvalidConfig.WithMsg("limiter store is required")
	}

	l := &RateLimiter{
		cfg:   cfg,
		store: store,
		log:   logger.GetLogger("yogan"),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Config returns the effective configuration
func (l *RateLimiter) Config() Config {
	return l.cfg
}

// Key builds {prefix}:{tenant|default}:{clientIp}
func (l *RateLimiter) Key(id Identity) string {
	tenant := id.TenantID
	if tenant == "" {
		tenant = DefaultTenant
	}
	return l.cfg.KeyPrefix + ":" + tenant + ":" + id.ClientIP
}

// Check counts one request for id. It never returns an error.
func (l *RateLimiter) Check(ctx context.Context, id Identity) Decision {
	return l.check(ctx, id, l.cfg.MaxRequests)
}

// check asks the store with the nominal limit and compares against effective
func (l *RateLimiter) check(ctx context.Context, id Identity, effective int64) Decision {
	now := l.now()
	key := l.Key(id)
	resetTime := now.Add(l.cfg.Window)

	storeCtx, cancel := context.WithTimeout(ctx, l.cfg.StoreTimeout)
	defer cancel()

	current, err := l.store.AtomicSlidingWindowIncrement(storeCtx, key, now, l.cfg.Window, l.cfg.MaxRequests)
	if err != nil {
		l.log.WarnCtx(ctx, "rate limit store unavailable, failing open",
			zap.String("key", key),
			zap.Error(ErrStoreUnavailable.Wrap(err)))
		l.recordFailOpen(ctx)
		return Decision{
			Allowed:   true,
			Limit:     effective,
			Remaining: effective,
			ResetTime: resetTime,
			FailOpen:  true,
		}
	}

	d := Decision{
		Allowed:   current <= effective,
		Limit:     effective,
		Current:   current,
		Remaining: max(0, effective-current),
		ResetTime: resetTime,
	}
	if !d.Allowed {
		d.RetryAfter = resetTime.Sub(now)
		l.log.DebugCtx(ctx, "rate limit exceeded",
			zap.String("key", key),
			zap.Int64("current", current),
			zap.Int64("limit", effective))
		if l.metrics != nil {
			l.metrics.RecordRejected(ctx)
		}
	} else if l.metrics != nil {
		l.metrics.RecordAllowed(ctx)
	}
	return d
}

func (l *RateLimiter) recordFailOpen(ctx context.Context) {
	if l.metrics != nil {
		l.metrics.RecordFailOpen(ctx)
	}
}
