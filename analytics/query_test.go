package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOMKZ/yogan-shield/cache"
)

func TestQuery_Identifier(t *testing.T) {
	base := Query{
		TenantID:  "acme",
		Metric:    "page_views",
		DateRange: lastDays(3),
		Filters:   map[string]string{"country": "de", "device": "mobile"},
	}

	same := base
	same.TenantID = "globex"
	same.Filters = map[string]string{"device": "mobile", "country": "de"}
	assert.Equal(t, base.Identifier(), same.Identifier(), "tenant and filter order do not matter")

	other := base
	other.Metric = "sessions"
	assert.NotEqual(t, base.Identifier(), other.Identifier())

	// a separator inside a filter value must not collide with two filters
	a := Query{Metric: "m", Filters: map[string]string{"a": "1;b=2"}}
	b := Query{Metric: "m", Filters: map[string]string{"a": "1", "b": "2"}}
	assert.NotEqual(t, a.Identifier(), b.Identifier())
}

func TestQuery_Tags(t *testing.T) {
	t.Run("no range", func(t *testing.T) {
		assert.Equal(t, []string{"tenant:global", "metric:page_views"},
			Query{Metric: "page_views"}.Tags(testNow, time.Hour))
	})

	t.Run("recent days are realtime", func(t *testing.T) {
		q := Query{TenantID: "acme", Metric: "page_views", DateRange: &cache.DateRange{
			Start: time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC),
			End:   testNow.Add(-30 * time.Minute),
		}}
		assert.Equal(t, []string{
			"tenant:acme", "metric:page_views",
			"date:2024-02-28", "date:2024-02-29", "date:2024-03-01",
			"realtime",
		}, q.Tags(testNow, time.Hour))
	})

	t.Run("long ranges are tagged by month", func(t *testing.T) {
		q := Query{TenantID: "acme", Metric: "page_views", DateRange: &cache.DateRange{
			Start: time.Date(2023, 11, 15, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		}}
		assert.Equal(t, []string{
			"tenant:acme", "metric:page_views",
			"month:2023-11", "month:2023-12", "month:2024-01",
		}, q.Tags(testNow, time.Hour))
	})
}

func TestDataChangedTags(t *testing.T) {
	assert.Equal(t, []string{"date:2024-02-29", "month:2024-02", "realtime"},
		DataChangedTags(time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC)))
}

func TestQuery_Validate(t *testing.T) {
	assert.NoError(t, Query{Metric: "page_views"}.Validate())
	assert.NoError(t, Query{Metric: "api.latency_p99", DateRange: lastDays(1)}.Validate())
	assert.Error(t, Query{}.Validate())
	assert.Error(t, Query{Metric: "9lives"}.Validate())
	assert.Error(t, Query{Metric: "m", DateRange: &cache.DateRange{End: testNow}}.Validate())
}

func TestSyntheticComputer(t *testing.T) {
	c := SyntheticComputer{Now: clock}
	q := Query{TenantID: "acme", Metric: "page_views", DateRange: lastDays(5)}

	a, err := c.Compute(context.Background(), q)
	require.NoError(t, err)
	b, err := c.Compute(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	require.Len(t, a.Series, 5)

	var total int64
	for _, p := range a.Series {
		total += p.Value
	}
	assert.Equal(t, total, a.Total)

	today, err := c.Compute(context.Background(), Query{Metric: "page_views"})
	require.NoError(t, err)
	require.Len(t, today.Series, 1)
	assert.Equal(t, "2024-03-01", today.Series[0].Date)
}

func TestSyntheticComputer_LatencyHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := SyntheticComputer{Latency: time.Hour}.Compute(ctx, Query{Metric: "m"})
	assert.ErrorIs(t, err, context.Canceled)
}
