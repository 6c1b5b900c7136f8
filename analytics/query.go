package analytics

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/KOMKZ/yogan-shield/cache"
	"github.com/KOMKZ/yogan-shield/errcode"
	"github.com/KOMKZ/yogan-shield/validator"
)

// Namespace every summary is cached under
const Namespace = "summary"

// maxDayTags ranges longer than this are tagged per month instead of per day
const maxDayTags = 31

var metricName = regexp.MustCompile(`^[a-z][a-z0-9_.]{0,63}$`)

// Query identifies one summary
type Query struct {
	TenantID  string            `json:"tenantId"`
	Metric    string            `json:"metric"`
	DateRange *cache.DateRange  `json:"dateRange,omitempty"`
	Filters   map[string]string `json:"filters,omitempty"`
}

// Validate checks the query shape
func (q Query) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Metric, validation.Required, validation.Match(metricName)),
		validation.Field(&q.TenantID, validation.Match(cache.TenantIDPattern), validation.NotIn(cache.GlobalScope)),
		validation.Field(&q.DateRange, validation.By(validRange)),
		validation.Field(&q.Filters, validation.Length(0, 16)),
	)
}

func validRange(value any) error {
	r, _ := value.(*cache.DateRange)
	if r == nil {
		return nil
	}
	if r.Start.IsZero() || r.End.IsZero() {
		return validation.NewError("validation_range_bounds", "start and end are required")
	}
	if r.End.Before(r.Start) {
		return validation.NewError("validation_range_order", "end must not be before start")
	}
	return nil
}

func (q Query) validate() error {
	err := validator.ValidateRequest(q)
	if err == nil {
		return nil
	}
	if le, ok := errcode.As(err); ok {
		return ErrInvalidQuery.Wrap(err).WithMsg(le.Message()).WithFields(le.Data())
	}
	return ErrInvalidQuery.Wrap(err)
}

// Identifier is a stable hash of everything but the tenant, which the cache key
// already carries
func (q Query) Identifier() string {
	var b strings.Builder
	b.WriteString(q.Metric)
	b.WriteByte('|')
	if q.DateRange != nil {
		b.WriteString(q.DateRange.Start.UTC().Format(time.RFC3339))
		b.WriteByte('/')
		b.WriteString(q.DateRange.End.UTC().Format(time.RFC3339))
	}
	b.WriteByte('|')

	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(strconv.Quote(k))
		b.WriteByte('=')
		b.WriteString(strconv.Quote(q.Filters[k]))
		b.WriteByte(';')
	}

	return strconv.FormatUint(xxhash.Sum64String(b.String()), 16)
}

// Tags the summary is filed under: tenant, metric, the days (or months) it covers
// and realtime when the range reaches into the last realtimeWindow
func (q Query) Tags(now time.Time, realtimeWindow time.Duration) []string {
	tags := []string{
		TenantTag(q.TenantID),
		MetricTag(q.Metric),
	}
	if q.DateRange == nil {
		return tags
	}

	start := truncateDay(q.DateRange.Start)
	end := truncateDay(q.DateRange.End)
	days := int(end.Sub(start)/(24*time.Hour)) + 1

	if days <= maxDayTags {
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			tags = append(tags, DayTag(d))
		}
	} else {
		month := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
		for ; !month.After(end); month = month.AddDate(0, 1, 0) {
			tags = append(tags, MonthTag(month))
		}
	}

	if now.Sub(q.DateRange.End) < realtimeWindow {
		tags = append(tags, RealtimeTag)
	}
	return tags
}

// RealtimeTag marks summaries whose range touches the present
const RealtimeTag = "realtime"

// TenantTag tenant:{id}
func TenantTag(tenantID string) string {
	return "tenant:" + cache.Scope(tenantID)
}

// MetricTag metric:{name}
func MetricTag(metric string) string {
	return "metric:" + metric
}

// DayTag date:{yyyy-mm-dd}
func DayTag(day time.Time) string {
	return "date:" + day.UTC().Format(time.DateOnly)
}

// MonthTag month:{yyyy-mm}
func MonthTag(day time.Time) string {
	return "month:" + day.UTC().Format("2006-01")
}

// DataChangedTags the tags to invalidate after a write touching day
func DataChangedTags(day time.Time) []string {
	return []string{DayTag(day), MonthTag(day), RealtimeTag}
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
