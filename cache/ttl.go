package cache

import "time"

// DateRange the period a cached result covers
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Options scope and lifetime of one entry
type Options struct {
	TenantID  string
	TTL       time.Duration // explicit TTL, wins over tiering
	DateRange *DateRange
	Tags      []string
}

// Calculate picks the TTL for opts at now.
// Explicit TTL wins. Otherwise a range ending within RealtimeWindow gets Realtime,
// within RecentWindow gets Recent, anything older Historical. No range gets Default.
func (p TTLPolicy) Calculate(opts Options, now time.Time) time.Duration {
	if opts.TTL > 0 {
		return opts.TTL
	}
	if opts.DateRange == nil || opts.DateRange.End.IsZero() {
		return p.Default
	}

	age := now.Sub(opts.DateRange.End)
	switch {
	case age < p.RealtimeWindow:
		return p.Realtime
	case age < p.RecentWindow:
		return p.Recent
	default:
		return p.Historical
	}
}
