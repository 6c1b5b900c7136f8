// Package types holds request fragments shared by handlers
package types

import (
	"errors"
	"time"

	"github.com/KOMKZ/yogan-shield/cache"
)

// DateFormat query dates are UTC calendar days
const DateFormat = "2006-01-02"

// lastSecond moves a day start to 23:59:59 of the same day
const lastSecond = 24*time.Hour - time.Second

var ErrPartialRange = errors.New("startDate and endDate must be given together")

// DateRange ?startDate=2024-03-01&endDate=2024-03-07, both inclusive
type DateRange struct {
	StartDate string `form:"startDate" json:"startDate"`
	EndDate   string `form:"endDate" json:"endDate"`
}

// ParseStart nil when missing or malformed
func (d *DateRange) ParseStart() *time.Time {
	return parseDay(d.StartDate, 0)
}

// ParseEnd the last second of EndDate; nil when missing or malformed
func (d *DateRange) ParseEnd() *time.Time {
	return parseDay(d.EndDate, lastSecond)
}

func parseDay(s string, offset time.Duration) *time.Time {
	if s == "" {
		return nil
	}
	day, err := time.Parse(DateFormat, s)
	if err != nil {
		return nil
	}
	day = day.Add(offset)
	return &day
}

// CacheRange nil, nil when no dates were given at all
func (d *DateRange) CacheRange() (*cache.DateRange, error) {
	switch {
	case d.StartDate == "" && d.EndDate == "":
		return nil, nil
	case d.StartDate == "" || d.EndDate == "":
		return nil, ErrPartialRange
	}

	var days [2]time.Time
	for i, s := range [2]string{d.StartDate, d.EndDate} {
		day, err := time.Parse(DateFormat, s)
		if err != nil {
			return nil, err
		}
		days[i] = day
	}
	return &cache.DateRange{Start: days[0], End: days[1].Add(lastSecond)}, nil
}
