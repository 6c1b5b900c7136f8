package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/KOMKZ/yogan-shield/breaker"
	"github.com/KOMKZ/yogan-shield/loadshed"
	"github.com/KOMKZ/yogan-shield/logger"
	"github.com/KOMKZ/yogan-shield/stats"
)

func newReporter(t *testing.T, interval time.Duration) (*StatsReporter, *observer.ObservedLogs, *breaker.Registry) {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)

	registry, err := breaker.NewRegistry(breaker.DefaultRegistryConfig(), logger.Nop())
	require.NoError(t, err)
	shed, err := loadshed.NewHandler(loadshed.DefaultConfig(), loadshed.WithLogger(logger.Nop()))
	require.NoError(t, err)

	r, err := NewStatsReporter(stats.NewCollector(nil, registry, shed), interval, logger.New(zap.New(core), "reporter"))
	require.NoError(t, err)
	return r, logs, registry
}

func TestStatsReporter_Report(t *testing.T) {
	r, logs, registry := newReporter(t, time.Minute)
	registry.MustGet(breaker.NameCache).ForceState(breaker.StateOpen)

	r.Report(context.Background())

	entries := logs.FilterMessage("stats").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(0), fields["cache_hits"])
	assert.Equal(t, loadshed.LevelNormal.String(), fields["load_level"])
	assert.NotContains(t, fields, "store_load")

	states, ok := fields["breakers"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, breaker.StateOpen.String(), states[breaker.NameCache])
	assert.Equal(t, breaker.StateClosed.String(), states[breaker.NameAnalytics])
}

func TestStatsReporter_StartRunsImmediately(t *testing.T) {
	r, logs, _ := newReporter(t, time.Hour)

	require.NoError(t, r.Start(context.Background()))
	assert.Eventually(t, func() bool {
		return logs.FilterMessage("stats").Len() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, r.Shutdown(time.Second))
	assert.Equal(t, 1, logs.FilterMessage("stats").Len())
}
