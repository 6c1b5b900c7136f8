package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed(name string, err error) Checker {
	return CheckerFunc{CheckName: name, Fn: func(context.Context) error { return err }}
}

func TestAggregator_Check(t *testing.T) {
	refused := Degraded(errors.New("connection refused"))

	tests := []struct {
		name     string
		checkers []Checker
		want     Status
	}{
		{"no checks", nil, StatusHealthy},
		{"all healthy", []Checker{fixed("breakers", nil), fixed("redis", nil)}, StatusHealthy},
		{"redis down degrades", []Checker{fixed("breakers", nil), fixed("redis", refused)}, StatusDegraded},
		{"open breaker is unhealthy", []Checker{fixed("breakers", errors.New("open: datastore")), fixed("redis", nil)}, StatusUnhealthy},
		{"unhealthy wins over degraded", []Checker{fixed("breakers", errors.New("open: datastore")), fixed("redis", refused)}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(time.Second)
			for _, c := range tt.checkers {
				agg.Register(c)
			}

			resp := agg.Check(context.Background())
			assert.Equal(t, tt.want, resp.Status)
			assert.Len(t, resp.Checks, len(tt.checkers))
		})
	}
}

func TestAggregator_ResultDetails(t *testing.T) {
	agg := NewAggregator(time.Second)
	agg.Register(fixed("redis", Degraded(errors.New("ping failed"))))
	agg.Register(fixed("load", nil))
	agg.SetMetadata("version", "1.0.0")

	resp := agg.Check(context.Background())
	require.True(t, resp.IsDegraded())
	assert.False(t, resp.IsHealthy())
	assert.Equal(t, "1.0.0", resp.Metadata["version"])

	redis := resp.Checks["redis"]
	assert.Equal(t, StatusDegraded, redis.Status)
	assert.Equal(t, "ping failed", redis.Error)
	assert.Equal(t, StatusHealthy, resp.Checks["load"].Status)
	assert.Empty(t, resp.Checks["load"].Error)
}

func TestAggregator_Timeout(t *testing.T) {
	agg := NewAggregator(20 * time.Millisecond)
	agg.Register(CheckerFunc{CheckName: "slow", Fn: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	resp := agg.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Contains(t, resp.Checks["slow"].Error, "deadline")
}

func TestDegraded(t *testing.T) {
	assert.NoError(t, Degraded(nil))

	base := errors.New("boom")
	err := Degraded(base)
	assert.True(t, IsDegraded(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsDegraded(base))
}

func TestConfig(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.NoError(t, cfg.Validate())

	cfg.Timeout = time.Millisecond
	assert.Error(t, cfg.Validate())
}
