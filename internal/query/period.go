package query

import (
	"errors"
	"time"

	"registro/internal/core"
)

// PeriodKey is a symbolic time-window name. The set of keys is closed;
// resolution of anything else is ErrInvalidPeriodKey.
type PeriodKey string

const (
	PeriodLast7Days  PeriodKey = "last_7_days"
	PeriodLast30Days PeriodKey = "last_30_days"
	PeriodLast90Days PeriodKey = "last_90_days"
	PeriodThisMonth  PeriodKey = "this_month"
	PeriodThisYear   PeriodKey = "this_year"
	PeriodAllTime    PeriodKey = "all_time"

	// DefaultPeriodKey bounds the default browsing window so an
	// all-time aggregation scan is never the default experience.
	DefaultPeriodKey = PeriodLast30Days
)

// Period is a concrete inclusive date window resolved from a PeriodKey.
// A zero Start means no lower bound (all_time only).
type Period struct {
	Key   PeriodKey
	Start core.Date
	End   core.Date
}

var ErrInvalidPeriodKey = errors.New("invalid period key")

// Resolve translates a symbolic period key into concrete bounds relative
// to now. Pure and deterministic given now; an unknown key is an error,
// never a silent fallback.
func Resolve(key PeriodKey, now time.Time) (Period, error) {
	today := core.DateOf(now)
	switch key {
	case PeriodLast7Days:
		return Period{Key: key, Start: today.AddDays(-7), End: today}, nil
	case PeriodLast30Days:
		return Period{Key: key, Start: today.AddDays(-30), End: today}, nil
	case PeriodLast90Days:
		return Period{Key: key, Start: today.AddDays(-90), End: today}, nil
	case PeriodThisMonth:
		return Period{
			Key:   key,
			Start: core.NewDate(now.Year(), int(now.Month()), 1),
			End:   today,
		}, nil
	case PeriodThisYear:
		return Period{
			Key:   key,
			Start: core.NewDate(now.Year(), 1, 1),
			End:   today,
		}, nil
	case PeriodAllTime:
		return Period{Key: key, End: today}, nil
	}
	return Period{}, ErrInvalidPeriodKey
}

// FallbackPeriod returns the hard-coded 30-day window ending today.
// Callers that must not fail substitute this when Resolve errors.
func FallbackPeriod(now time.Time) Period {
	today := core.DateOf(now)
	return Period{Key: PeriodLast30Days, Start: today.AddDays(-30), End: today}
}
