// Package cache provides a tenant aware cache over the coordination store.
//
// Entries are namespaced per tenant, tagged for targeted invalidation, given a
// lifetime from how fresh the underlying data is, and refreshed early with
// probability rising towards expiry (XFetch) so hot keys do not stampede.
// Every store failure degrades to a miss or a logged no-op.
package cache

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/KOMKZ/yogan-shield/breaker"
	"github.com/KOMKZ/yogan-shield/logger"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger
func WithLogger(log *logger.CtxZapLogger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithRandom replaces the XFetch random source, which must return values in [0,1)
func WithRandom(random func() float64) Option {
	return func(m *Manager) {
		if random != nil {
			m.random = random
		}
	}
}

// WithSerializer replaces the JSON serializer
func WithSerializer(s Serializer) Option {
	return func(m *Manager) {
		if s != nil {
			m.serializer = s
		}
	}
}

// WithMetrics attaches an OTel metrics provider
func WithMetrics(metrics *OTelMetrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithBreaker runs store calls under cb. While it is open reads miss and
// writes are skipped without touching the store.
func WithBreaker(cb *breaker.CircuitBreaker) Option {
	return func(m *Manager) {
		if cb != nil {
			m.store = newGuardedStore(m.store, cb)
		}
	}
}

// errStoreTimeout marks the manager's own per-call deadline, so a breaker can
// tell it apart from the caller going away
var errStoreTimeout = errors.New("cache store call timed out")

// Manager is the cache entry point. Build one at startup and share it.
type Manager struct {
	cfg        Config
	store      Store
	keys       keyBuilder
	serializer Serializer
	log        *logger.CtxZapLogger
	now        func() time.Time
	random     func() float64
	metrics    *OTelMetrics
	pool       *ants.Pool
	sf         singleflight.Group
	closeOnce  sync.Once
}

// NewManager validates cfg and creates the manager with its invalidation pool
func NewManager(cfg Config, store Store, opts ...Option) (*Manager, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, ErrConfigInvalid.WithMsg("cache store is required")
	}

	pool, err := ants.NewPool(cfg.InvalidateWorkers, ants.WithDisablePurge(true))
	if err != nil {
		return nil, ErrConfigInvalid.Wrap(err)
	}

	m := &Manager{
		cfg:        cfg,
		store:      store,
		keys:       keyBuilder{prefix: cfg.KeyPrefix, tagPrefix: cfg.TagPrefix, hashTag: cfg.HashTagScope},
		serializer: NewJSONSerializer(),
		log:        logger.GetLogger("yogan"),
		now:        time.Now,
		random:     rand.Float64,
		pool:       pool,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Config returns the effective configuration
func (m *Manager) Config() Config {
	return m.cfg
}

// Key returns the store key of one entry
func (m *Manager) Key(namespace, identifier, tenantID string) string {
	return m.keys.entry(tenantID, namespace, identifier)
}

// CalculateSmartTTL picks the TTL for opts at now
func (m *Manager) CalculateSmartTTL(opts Options, now time.Time) time.Duration {
	return m.cfg.TTL.Calculate(opts, now)
}

// Get reads one entry into dst.
//
// found is false on a miss, on a store error and on an XFetch early refresh; in
// every such case the caller should recompute. err is set when the tenant or
// namespace cannot form a key (ErrInvalidKey) and when the stored bytes could
// not be decoded; the entry has then been evicted.
func (m *Manager) Get(ctx context.Context, namespace, identifier string, opts Options, dst any) (bool, error) {
	if err := validateSegments(opts.TenantID, namespace); err != nil {
		return false, err
	}
	key := m.keys.entry(opts.TenantID, namespace, identifier)

	storeCtx, cancel := m.storeContext(ctx)
	data, remaining, err := m.store.GetWithTTL(storeCtx, key)
	cancel()

	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			m.logStoreError(ctx, "cache get failed, treating as miss", err, zap.String("key", key))
		}
		m.recordMiss(ctx, namespace)
		return false, nil
	}
	if remaining <= 0 {
		// 已过期或没有 TTL 的残留值，按未命中处理
		m.recordMiss(ctx, namespace)
		return false, nil
	}

	ttl := m.CalculateSmartTTL(opts, m.now())
	if m.shouldRefreshEarly(remaining, ttl) {
		m.log.DebugCtx(ctx, "cache early refresh",
			zap.String("key", key),
			zap.Duration("remaining", remaining))
		m.recordHit(ctx, namespace, true)
		return false, nil
	}

	if err := m.serializer.Deserialize(data, dst); err != nil {
		m.log.WarnCtx(ctx, "cache entry undecodable, evicting", zap.String("key", key), zap.Error(err))
		m.evict(ctx, key)
		m.recordMiss(ctx, namespace)
		return false, err
	}

	m.recordHit(ctx, namespace, false)
	return true, nil
}

// shouldRefreshEarly is the XFetch test: draw r in [0, beta*ttl), refresh when r >= remaining
func (m *Manager) shouldRefreshEarly(remaining, ttl time.Duration) bool {
	r := m.random() * m.cfg.Beta * float64(ttl)
	return r >= float64(remaining)
}

// Set stores value for namespace/identifier and returns the TTL used.
// Failures are logged and never returned.
func (m *Manager) Set(ctx context.Context, namespace, identifier string, value any, opts Options) time.Duration {
	ttl := m.CalculateSmartTTL(opts, m.now())
	if err := validateSegments(opts.TenantID, namespace); err != nil {
		m.log.WarnCtx(ctx, "cache set rejected", zap.String("namespace", namespace), zap.Error(err))
		return ttl
	}
	key := m.keys.entry(opts.TenantID, namespace, identifier)

	data, err := m.serializer.Serialize(value)
	if err != nil {
		m.log.ErrorCtx(ctx, "cache value not serializable", zap.String("key", key), zap.Error(err))
		return ttl
	}

	tagKeys := make([]string, 0, len(opts.Tags))
	for _, tag := range opts.Tags {
		if tag != "" {
			tagKeys = append(tagKeys, m.keys.tag(opts.TenantID, tag))
		}
	}

	storeCtx, cancel := m.storeContext(ctx)
	defer cancel()
	if err := m.store.SetWithTags(storeCtx, key, data, ttl, tagKeys, ttl+m.cfg.TagGrace); err != nil {
		m.logStoreError(ctx, "cache set failed", err, zap.String("key", key))
		return ttl
	}

	m.log.DebugCtx(ctx, "cache set",
		zap.String("key", key),
		zap.Duration("ttl", ttl),
		zap.Strings("tags", opts.Tags))
	return ttl
}

// Delete removes one entry
func (m *Manager) Delete(ctx context.Context, namespace, identifier, tenantID string) bool {
	if err := validateSegments(tenantID, namespace); err != nil {
		m.log.WarnCtx(ctx, "cache delete rejected", zap.String("namespace", namespace), zap.Error(err))
		return false
	}
	key := m.keys.entry(tenantID, namespace, identifier)
	return m.evict(ctx, key) > 0
}

func (m *Manager) evict(ctx context.Context, keys ...string) int64 {
	storeCtx, cancel := m.storeContext(ctx)
	defer cancel()
	n, err := m.store.Delete(storeCtx, keys...)
	if err != nil {
		m.logStoreError(ctx, "cache delete failed", err, zap.Strings("keys", keys))
		return 0
	}
	return n
}

func (m *Manager) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeoutCause(ctx, m.cfg.StoreTimeout, errStoreTimeout)
}

// logStoreError 熔断打开时的快速失败只记 Debug
func (m *Manager) logStoreError(ctx context.Context, msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if errors.Is(err, breaker.ErrCircuitOpen) {
		m.log.DebugCtx(ctx, msg, fields...)
		return
	}
	m.log.WarnCtx(ctx, msg, fields...)
}

// Close releases the invalidation pool
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		err = m.pool.ReleaseTimeout(3 * time.Second)
	})
	return err
}

// Shutdown lets the DI container close the manager
func (m *Manager) Shutdown() error {
	return m.Close()
}
