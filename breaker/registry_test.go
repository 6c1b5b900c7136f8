package breaker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/KOMKZ/yogan-shield/logger"
)

func TestRegistry_DefaultsAndOverrides(t *testing.T) {
	cfg := DefaultRegistryConfig()
	cfg.Breakers[NameCache] = Config{FailureThreshold: 10, Timeout: 5 * time.Second}

	r, err := NewRegistry(cfg, logger.Nop())
	require.NoError(t, err)

	assert.Equal(t, []string{NameAnalytics, NameCache, NameDatastore}, r.Names())
	assert.Equal(t, DefaultConfig(), r.MustGet(NameDatastore).Config())
	assert.Equal(t, Config{FailureThreshold: 10, SuccessThreshold: 2, Timeout: 5 * time.Second},
		r.MustGet(NameCache).Config())

	_, ok := r.Get("missing")
	assert.False(t, ok)
	assert.Panics(t, func() { r.MustGet("missing") })
}

func TestRegistry_AnyOpenAndLogging(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := logger.New(zap.New(core), "breaker")

	clock := newFakeClock()
	r, err := NewRegistry(RegistryConfig{
		Default:  Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Second},
		Breakers: map[string]Config{NameDatastore: {}, NameAnalytics: {}},
	}, log, WithClock(clock.Now))
	require.NoError(t, err)

	assert.False(t, r.AnyOpen())

	var calls int
	_, _ = r.MustGet(NameDatastore).Execute(context.Background(), failing(&calls), nil)
	assert.True(t, r.AnyOpen())
	assert.Equal(t, []string{NameDatastore}, r.Open())

	opened := logs.FilterMessage("circuit breaker opened").All()
	require.Len(t, opened, 1)
	assert.Equal(t, zapcore.WarnLevel, opened[0].Level)
	assert.Equal(t, NameDatastore, opened[0].ContextMap()["breaker"])

	stats := r.Stats()
	assert.Equal(t, StateOpen, stats[NameDatastore].State)
	assert.Equal(t, StateClosed, stats[NameAnalytics].State)

	clock.Advance(time.Second)
	_, err = r.MustGet(NameDatastore).Execute(context.Background(), succeeding(&calls, 1), nil)
	require.NoError(t, err)
	assert.False(t, r.AnyOpen())
	assert.Equal(t, 2, logs.FilterMessage("circuit breaker state changed").Len())
}

func TestRegistry_InvalidConfig(t *testing.T) {
	_, err := NewRegistry(RegistryConfig{
		Breakers: map[string]Config{NameCache: {SuccessThreshold: -2}},
	}, logger.Nop())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
