package analytics

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/KOMKZ/yogan-shield/breaker"
	"github.com/KOMKZ/yogan-shield/cache"
	"github.com/KOMKZ/yogan-shield/errcode"
	"github.com/KOMKZ/yogan-shield/logger"
	"github.com/KOMKZ/yogan-shield/validator"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

type countingComputer struct {
	calls int32
	err   error
}

func (c *countingComputer) Compute(ctx context.Context, q Query) (Summary, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.err != nil {
		return Summary{}, c.err
	}
	return SyntheticComputer{Now: clock}.Compute(ctx, q)
}

func (c *countingComputer) Calls() int {
	return int(atomic.LoadInt32(&c.calls))
}

type fixture struct {
	mr       *miniredis.Miniredis
	cache    *cache.Manager
	breaker  *breaker.CircuitBreaker
	computer *countingComputer
	service  *Service
	logs     *observer.ObservedLogs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	cm, err := cache.NewManager(cache.DefaultConfig(), cache.NewRedisStore("redis", client),
		cache.WithLogger(logger.Nop()),
		cache.WithClock(clock),
		cache.WithRandom(func() float64 { return 0 }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cm.Close() })

	cb, err := breaker.New(breaker.NameAnalytics,
		breaker.Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute},
		breaker.WithLogger(logger.Nop()),
		breaker.WithClock(clock))
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	computer := &countingComputer{}
	svc := NewService(cb, cm, computer,
		WithLogger(logger.New(zap.New(core), "analytics")),
		WithClock(clock))

	return &fixture{mr: mr, cache: cm, breaker: cb, computer: computer, service: svc, logs: logs}
}

func lastDays(n int) *cache.DateRange {
	end := testNow.Add(-2 * time.Hour)
	return &cache.DateRange{Start: end.AddDate(0, 0, -(n - 1)), End: end}
}

func TestService_SummaryIsCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := Query{TenantID: "acme", Metric: "page_views", DateRange: lastDays(3)}

	first, err := f.service.Summary(ctx, q)
	require.NoError(t, err)
	assert.False(t, first.Degraded)
	assert.Len(t, first.Series, 3)

	second, err := f.service.Summary(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, first.Total, second.Total)
	assert.Equal(t, 1, f.computer.Calls())

	key := f.cache.Key(Namespace, q.Identifier(), "acme")
	assert.True(t, f.mr.Exists(key))
	// range ended two hours ago: recent tier
	assert.Equal(t, 300*time.Second, f.mr.TTL(key))
	assert.True(t, f.mr.Exists("cache-tag:acme:tenant:acme"))
	assert.True(t, f.mr.Exists("cache-tag:acme:metric:page_views"))
	assert.True(t, f.mr.Exists("cache-tag:acme:date:2024-02-28"))
}

func TestService_TenantsAreIsolated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Summary(ctx, Query{TenantID: "acme", Metric: "page_views"})
	require.NoError(t, err)
	_, err = f.service.Summary(ctx, Query{TenantID: "globex", Metric: "page_views"})
	require.NoError(t, err)

	assert.Equal(t, 2, f.computer.Calls())
}

func TestService_ComputeFailureDegradesAndOpensBreaker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.computer.err = errors.New("datastore timeout")
	q := Query{TenantID: "acme", Metric: "page_views"}

	for i := 0; i < 2; i++ {
		s, err := f.service.Summary(ctx, q)
		require.NoError(t, err)
		assert.True(t, s.Degraded)
		assert.Equal(t, "compute_failed", s.Reason)
		assert.Equal(t, "acme", s.TenantID)
	}
	assert.Equal(t, breaker.StateOpen, f.breaker.State())

	s, err := f.service.Summary(ctx, q)
	require.NoError(t, err)
	assert.True(t, s.Degraded)
	assert.Equal(t, "circuit_open", s.Reason)
	assert.Equal(t, 2, f.computer.Calls(), "open breaker skips the computation")

	assert.False(t, f.mr.Exists(f.cache.Key(Namespace, q.Identifier(), "acme")), "degraded results are not cached")
	assert.Equal(t, 3, f.logs.FilterMessage("serving degraded summary").Len())
}

func TestService_CancelledCallerGetsError(t *testing.T) {
	f := newFixture(t)
	f.computer.err = context.Canceled
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.service.Summary(ctx, Query{Metric: "page_views"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestService_CancelledCallersDoNotTripBreaker(t *testing.T) {
	f := newFixture(t)
	f.computer.err = context.Canceled
	q := Query{TenantID: "acme", Metric: "page_views"}

	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.service.Summary(ctx, q)
		assert.ErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, breaker.StateClosed, f.breaker.State())

	f.computer.err = nil
	s, err := f.service.Summary(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, s.Degraded)
}

func TestService_DatastoreBreakerGuardsCompute(t *testing.T) {
	f := newFixture(t)
	ds, err := breaker.New(breaker.NameDatastore,
		breaker.Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Minute},
		breaker.WithLogger(logger.Nop()),
		breaker.WithClock(clock))
	require.NoError(t, err)
	svc := NewService(f.breaker, f.cache, f.computer,
		WithDatastoreBreaker(ds),
		WithLogger(logger.Nop()),
		WithClock(clock))

	f.computer.err = errors.New("datastore timeout")
	q := Query{TenantID: "acme", Metric: "page_views"}

	s, err := svc.Summary(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, s.Degraded)
	assert.Equal(t, breaker.StateOpen, ds.State())

	s, err = svc.Summary(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, s.Degraded)
	assert.Equal(t, 1, f.computer.Calls(), "open datastore breaker skips the read")
}

func TestService_TenantMustBeKeySafe(t *testing.T) {
	f := newFixture(t)

	for _, tenant := range []string{"acme:eu", "acme*", "a[b]", "global", "tag x"} {
		t.Run(tenant, func(t *testing.T) {
			_, err := f.service.Summary(context.Background(), Query{TenantID: tenant, Metric: "page_views"})
			assert.ErrorIs(t, err, ErrInvalidQuery)
		})
	}
	assert.Equal(t, 0, f.computer.Calls())
}

func TestService_InvalidQuery(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Summary(context.Background(), Query{TenantID: "acme", Metric: "Page Views!"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.ErrorIs(t, err, validator.ErrValidation)

	le, ok := errcode.As(err)
	require.True(t, ok)
	assert.Equal(t, 400, le.HTTPStatus())
	assert.Contains(t, le.Data()["fields"], "metric")
	assert.Equal(t, 0, f.computer.Calls())

	reversed := &cache.DateRange{Start: testNow, End: testNow.Add(-time.Hour)}
	_, err = f.service.Summary(context.Background(), Query{Metric: "page_views", DateRange: reversed})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestService_DataChangedInvalidatesCoveringSummaries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	week := Query{TenantID: "acme", Metric: "page_views", DateRange: lastDays(7)}
	old := Query{TenantID: "acme", Metric: "page_views", DateRange: &cache.DateRange{
		Start: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
	}}
	for _, q := range []Query{week, old} {
		_, err := f.service.Summary(ctx, q)
		require.NoError(t, err)
	}

	removed := f.service.DataChanged(ctx, "acme", testNow.AddDate(0, 0, -3))
	assert.Equal(t, int64(1), removed)

	_, err := f.service.Summary(ctx, old)
	require.NoError(t, err)
	assert.Equal(t, 2, f.computer.Calls(), "old summary still cached")

	_, err = f.service.Summary(ctx, week)
	require.NoError(t, err)
	assert.Equal(t, 3, f.computer.Calls())
}

func TestService_InvalidateTenantAndNamespace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Summary(ctx, Query{TenantID: "acme", Metric: "page_views"})
	require.NoError(t, err)
	_, err = f.service.Summary(ctx, Query{TenantID: "acme", Metric: "sessions"})
	require.NoError(t, err)
	_, err = f.service.Summary(ctx, Query{TenantID: "globex", Metric: "sessions"})
	require.NoError(t, err)

	assert.Equal(t, int64(2), f.service.InvalidateTenant(ctx, "acme"))
	assert.Equal(t, int64(1), f.service.InvalidateNamespace(ctx, "globex", ""))
	assert.Equal(t, int64(0), f.service.InvalidateTags(ctx, "acme", MetricTag("sessions")))
}
