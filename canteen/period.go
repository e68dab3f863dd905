package canteen

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Closed time window used by spend aggregation and reports
// =============================================================================

// Period is the closed interval [Start, End].
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains returns true if t is within [Start, End].
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

func (p Period) String() string {
	return "[" + p.Start.Format(time.RFC3339) + ", " + p.End.Format(time.RFC3339) + "]"
}

// endOfDay is the last representable instant of the day starting at start.
// Stores keep microsecond precision, so one microsecond before the next
// midnight closes the interval.
func endOfDay(start time.Time) time.Time {
	return start.AddDate(0, 0, 1).Add(-time.Microsecond)
}

// StartOfDay returns local midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DayPeriod is the whole calendar day containing now, in loc.
func DayPeriod(now time.Time, loc *time.Location) Period {
	start := StartOfDay(now, loc)
	return Period{Start: start, End: endOfDay(start)}
}

// MonthToDate runs from local midnight of the first of now's month up to now.
func MonthToDate(now time.Time, loc *time.Location) Period {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return Period{Start: start, End: now}
}

// DateLayout is the calendar date format accepted by report filters.
const DateLayout = "2006-01-02"

// ParseDateRange turns optional YYYY-MM-DD bounds into a period covering
// whole days in loc. Missing bounds are left zero.
func ParseDateRange(from, to string, loc *time.Location) (Period, error) {
	var p Period
	if from != "" {
		d, err := time.ParseInLocation(DateLayout, from, loc)
		if err != nil {
			return p, invalid("startDate", fmt.Sprintf("Data inicial inválida: %q (use AAAA-MM-DD).", from))
		}
		p.Start = d
	}
	if to != "" {
		d, err := time.ParseInLocation(DateLayout, to, loc)
		if err != nil {
			return p, invalid("endDate", fmt.Sprintf("Data final inválida: %q (use AAAA-MM-DD).", to))
		}
		p.End = endOfDay(d)
	}
	if !p.Start.IsZero() && !p.End.IsZero() && p.End.Before(p.Start) {
		return p, invalid("endDate", "Data final anterior à data inicial.")
	}
	return p, nil
}
