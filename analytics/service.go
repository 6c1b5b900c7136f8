// Package analytics serves tenant summaries through the circuit breaker and the
// cache, and exposes the invalidation hooks the write path calls.
package analytics

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/KOMKZ/yogan-shield/breaker"
	"github.com/KOMKZ/yogan-shield/cache"
	"github.com/KOMKZ/yogan-shield/logger"
)

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(log *logger.CtxZapLogger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDatastoreBreaker guards each Compute call with cb
func WithDatastoreBreaker(cb *breaker.CircuitBreaker) Option {
	return func(s *Service) {
		s.datastore = cb
	}
}

// Service summary read path
type Service struct {
	breaker   *breaker.CircuitBreaker
	datastore *breaker.CircuitBreaker
	cache     *cache.Manager
	computer  Computer
	log       *logger.CtxZapLogger
	now       func() time.Time
}

// NewService wires the breaker guarding computation, the cache and the computer
func NewService(cb *breaker.CircuitBreaker, cm *cache.Manager, computer Computer, opts ...Option) *Service {
	s := &Service{
		breaker:  cb,
		cache:    cm,
		computer: computer,
		log:      logger.GetLogger("yogan"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summary returns the cached summary or computes it under the breaker.
//
// When the breaker is open or the computation fails the caller gets an empty
// summary flagged Degraded instead of an error. Only invalid queries and a
// cancelled caller produce errors.
func (s *Service) Summary(ctx context.Context, q Query) (Summary, error) {
	if err := q.validate(); err != nil {
		return Summary{}, err
	}

	opts := s.cacheOptions(q)
	id := q.Identifier()

	return breaker.Do(ctx, s.breaker,
		func(ctx context.Context) (Summary, error) {
			return cache.Remember(ctx, s.cache, Namespace, id, opts, func(ctx context.Context) (Summary, error) {
				summary, err := s.compute(ctx, q)
				if err != nil {
					return Summary{}, ErrComputeFailed.Wrap(err)
				}
				return summary, nil
			})
		},
		func(ctx context.Context, err error) (Summary, error) {
			return s.fallback(ctx, q, err)
		},
	)
}

func (s *Service) compute(ctx context.Context, q Query) (Summary, error) {
	if s.datastore == nil {
		return s.computer.Compute(ctx, q)
	}
	return breaker.Do(ctx, s.datastore, func(ctx context.Context) (Summary, error) {
		return s.computer.Compute(ctx, q)
	}, nil)
}

func (s *Service) fallback(ctx context.Context, q Query, cause error) (Summary, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Summary{}, ErrUnavailable.Wrap(ctxErr)
	}

	reason := "compute_failed"
	if errors.Is(cause, breaker.ErrCircuitOpen) {
		reason = "circuit_open"
	}
	s.log.WarnCtx(ctx, "serving degraded summary",
		zap.String("tenant", q.TenantID),
		zap.String("metric", q.Metric),
		zap.String("reason", reason),
		zap.Error(cause))

	return Summary{
		TenantID:    q.TenantID,
		Metric:      q.Metric,
		DateRange:   q.DateRange,
		Filters:     q.Filters,
		GeneratedAt: s.now().UTC(),
		Degraded:    true,
		Reason:      reason,
	}, nil
}

func (s *Service) cacheOptions(q Query) cache.Options {
	return cache.Options{
		TenantID:  q.TenantID,
		DateRange: q.DateRange,
		Tags:      q.Tags(s.now(), s.cache.Config().TTL.RealtimeWindow),
	}
}

// InvalidateTenant drops every cached entry of the tenant
func (s *Service) InvalidateTenant(ctx context.Context, tenantID string) int64 {
	return s.cache.InvalidateByTenant(ctx, tenantID)
}

// InvalidateTags drops the tenant's entries filed under any of tags
func (s *Service) InvalidateTags(ctx context.Context, tenantID string, tags ...string) int64 {
	return s.cache.InvalidateByTags(ctx, tenantID, tags...)
}

// InvalidateNamespace drops one namespace of the tenant
func (s *Service) InvalidateNamespace(ctx context.Context, tenantID, namespace string) int64 {
	if namespace == "" {
		namespace = Namespace
	}
	return s.cache.InvalidateByNamespace(ctx, namespace, tenantID)
}

// DataChanged invalidates what a write touching day makes stale
func (s *Service) DataChanged(ctx context.Context, tenantID string, day time.Time) int64 {
	return s.cache.InvalidateByTags(ctx, tenantID, DataChangedTags(day)...)
}
