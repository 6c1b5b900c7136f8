package limiter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/KOMKZ/yogan-shield/errcode"
	"github.com/KOMKZ/yogan-shield/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func observedLogger() (*logger.CtxZapLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.New(zap.New(core), "limiter"), logs
}

func TestRateLimiter_ThreeRequestWindow(t *testing.T) {
	_, client := setupRedis(t)
	clock := newFakeClock()
	log, _ := observedLogger()

	l, err := NewRateLimiter(Config{Window: 60 * time.Second, MaxRequests: 3}, NewRedisStore(client),
		WithClock(clock.Now), WithLogger(log))
	require.NoError(t, err)

	ctx := context.Background()
	id := Identity{ClientIP: "10.0.0.1", TenantID: "acme"}

	for i, wantRemaining := range []int64{2, 1, 0} {
		d := l.Check(ctx, id)
		assert.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, int64(i+1), d.Current)
		assert.Equal(t, wantRemaining, d.Remaining)
		assert.Equal(t, int64(3), d.Limit)
		assert.Equal(t, clock.Now().Add(60*time.Second), d.ResetTime)
	}

	d := l.Check(ctx, id)
	assert.False(t, d.Allowed)
	assert.Equal(t, int64(0), d.Remaining)
	assert.Equal(t, 60, d.RetryAfterSeconds())
}

func TestRateLimiter_WindowForgetsOldEntries(t *testing.T) {
	_, client := setupRedis(t)
	clock := newFakeClock()
	l, err := NewRateLimiter(Config{Window: 10 * time.Second, MaxRequests: 2}, NewRedisStore(client),
		WithClock(clock.Now), WithLogger(logger.Nop()))
	require.NoError(t, err)

	ctx := context.Background()
	id := Identity{ClientIP: "10.0.0.2"}

	assert.True(t, l.Check(ctx, id).Allowed)
	clock.Advance(5 * time.Second)
	assert.True(t, l.Check(ctx, id).Allowed)
	assert.False(t, l.Check(ctx, id).Allowed)

	// first entry leaves the window, one slot frees up
	clock.Advance(5*time.Second + time.Millisecond)
	d := l.Check(ctx, id)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(2), d.Current)
}

func TestRateLimiter_IdentitiesAreIsolated(t *testing.T) {
	_, client := setupRedis(t)
	l, err := NewRateLimiter(Config{MaxRequests: 1}, NewRedisStore(client), WithLogger(logger.Nop()))
	require.NoError(t, err)

	ctx := context.Background()
	assert.True(t, l.Check(ctx, Identity{ClientIP: "1.1.1.1", TenantID: "a"}).Allowed)
	assert.True(t, l.Check(ctx, Identity{ClientIP: "1.1.1.1", TenantID: "b"}).Allowed)
	assert.True(t, l.Check(ctx, Identity{ClientIP: "2.2.2.2", TenantID: "a"}).Allowed)
	assert.False(t, l.Check(ctx, Identity{ClientIP: "1.1.1.1", TenantID: "a"}).Allowed)
}

func TestRateLimiter_Key(t *testing.T) {
	l, err := NewRateLimiter(Config{}, NewMemoryStore())
	require.NoError(t, err)

	assert.Equal(t, "ratelimit:default:1.2.3.4", l.Key(Identity{ClientIP: "1.2.3.4"}))
	assert.Equal(t, "ratelimit:acme:1.2.3.4", l.Key(Identity{ClientIP: "1.2.3.4", TenantID: "acme"}))
}

func TestRateLimiter_RedisKeyExpires(t *testing.T) {
	mr, client := setupRedis(t)
	l, err := NewRateLimiter(Config{Window: 30 * time.Second, MaxRequests: 5}, NewRedisStore(client))
	require.NoError(t, err)

	l.Check(context.Background(), Identity{ClientIP: "9.9.9.9"})
	key := "ratelimit:default:9.9.9.9"
	require.True(t, mr.Exists(key))
	assert.Equal(t, 30*time.Second, mr.TTL(key))

	mr.FastForward(31 * time.Second)
	assert.False(t, mr.Exists(key))
}

func TestRateLimiter_FailsOpenWhenStoreErrors(t *testing.T) {
	mr, client := setupRedis(t)
	log, logs := observedLogger()
	l, err := NewRateLimiter(Config{MaxRequests: 1}, NewRedisStore(client), WithLogger(log))
	require.NoError(t, err)

	mr.SetError("LOADING redis is loading the dataset")

	for i := 0; i < 3; i++ {
		d := l.Check(context.Background(), Identity{ClientIP: "10.0.0.3"})
		assert.True(t, d.Allowed)
		assert.True(t, d.FailOpen)
		assert.Equal(t, int64(0), d.Current)
		assert.Equal(t, int64(1), d.Remaining)
	}

	entries := logs.FilterMessage("rate limit store unavailable, failing open").All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

type errStore struct{ err error }

func (s errStore) AtomicSlidingWindowIncrement(context.Context, string, time.Time, time.Duration, int64) (int64, error) {
	return 0, s.err
}

func TestRateLimiter_FailsOpenOnTimeout(t *testing.T) {
	l, err := NewRateLimiter(Config{MaxRequests: 1}, errStore{err: context.DeadlineExceeded}, WithLogger(logger.Nop()))
	require.NoError(t, err)
	assert.True(t, l.Check(context.Background(), Identity{ClientIP: "x"}).Allowed)
}

func TestRateLimiter_MemoryStore(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	l, err := NewRateLimiter(Config{StoreType: "memory", Window: time.Second, MaxRequests: 2}, store, WithClock(clock.Now))
	require.NoError(t, err)

	ctx := context.Background()
	id := Identity{ClientIP: "127.0.0.1"}
	assert.True(t, l.Check(ctx, id).Allowed)
	assert.True(t, l.Check(ctx, id).Allowed)
	d := l.Check(ctx, id)
	assert.False(t, d.Allowed)
	assert.Equal(t, int64(3), d.Current)

	clock.Advance(1001 * time.Millisecond)
	assert.True(t, l.Check(ctx, id).Allowed)
	assert.Equal(t, 1, store.Len())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"negative window", Config{Window: -time.Second}, "window"},
		{"negative max", Config{MaxRequests: -1}, "max_requests"},
		{"negative max ops", Config{Adaptive: AdaptiveConfig{MaxOpsPerSecond: -5}}, "adaptive.max_ops_per_second"},
		{"bad store type", Config{StoreType: "etcd"}, "store_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRateLimiter(tt.cfg, NewMemoryStore())
			require.Error(t, err)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, "ratelimit", cfg.KeyPrefix)
	assert.Equal(t, 60*time.Second, cfg.Window)
	assert.Equal(t, int64(100), cfg.MaxRequests)
	assert.Equal(t, 200*time.Millisecond, cfg.StoreTimeout)
	assert.Equal(t, float64(10000), cfg.Adaptive.MaxOpsPerSecond)
	assert.NoError(t, cfg.Validate())
}

func TestNewRateLimiter_RequiresStore(t *testing.T) {
	_, err := NewRateLimiter(Config{}, nil)
	require.Error(t, err)
	le, ok := errcode.As(err)
	require.True(t, ok)
	assert.Equal(t, ErrInvalidConfig.Code(), le.Code())
}
