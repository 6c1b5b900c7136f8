package analytics

import (
	"context"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/KOMKZ/yogan-shield/cache"
)

// Point one day of a summary series
type Point struct {
	Date  string `json:"date"`
	Value int64  `json:"value"`
}

// Summary the aggregate returned to callers
type Summary struct {
	TenantID    string            `json:"tenantId"`
	Metric      string            `json:"metric"`
	DateRange   *cache.DateRange  `json:"dateRange,omitempty"`
	Filters     map[string]string `json:"filters,omitempty"`
	Total       int64             `json:"total"`
	Series      []Point           `json:"series,omitempty"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Degraded    bool              `json:"degraded,omitempty"`
	Reason      string            `json:"reason,omitempty"`
}

// Computer produces a summary from the datastore
type Computer interface {
	Compute(ctx context.Context, q Query) (Summary, error)
}

// ComputeFunc adapts a function to Computer
type ComputeFunc func(ctx context.Context, q Query) (Summary, error)

// Compute calls f
func (f ComputeFunc) Compute(ctx context.Context, q Query) (Summary, error) {
	return f(ctx, q)
}

// SyntheticComputer fabricates stable figures for the demo endpoint.
// The same query always yields the same series.
type SyntheticComputer struct {
	// Latency simulated datastore latency
	Latency time.Duration
	Now     func() time.Time
}

// Compute builds one point per day of the range, or a single point for today
func (c SyntheticComputer) Compute(ctx context.Context, q Query) (Summary, error) {
	if c.Latency > 0 {
		timer := time.NewTimer(c.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Summary{}, ctx.Err()
		case <-timer.C:
		}
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}

	start, end := truncateDay(now()), truncateDay(now())
	if q.DateRange != nil {
		start, end = truncateDay(q.DateRange.Start), truncateDay(q.DateRange.End)
	}

	seed := q.TenantID + "|" + q.Identifier()
	s := Summary{
		TenantID:    q.TenantID,
		Metric:      q.Metric,
		DateRange:   q.DateRange,
		Filters:     q.Filters,
		GeneratedAt: now().UTC(),
	}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		day := d.Format(time.DateOnly)
		v := int64(xxhash.Sum64String(seed+day) % 1000)
		s.Series = append(s.Series, Point{Date: day, Value: v})
		s.Total += v
	}
	return s, nil
}
