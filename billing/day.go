package billing

import (
	"time"
)

// =============================================================================
// DAY - Day-granularity date (lesson dates, purchase dates, expiry dates)
// =============================================================================

// Day is a calendar day in UTC. All scheduling and billing in this system
// works at day granularity; lesson start times are kept separately as
// HH:mm strings and only matter for ordering lessons within a day.
type Day struct {
	t time.Time
}

const dayLayout = "2006-01-02"

// NewDay constructs a Day from calendar components.
func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDay parses a YYYY-MM-DD string. Malformed input yields the zero Day,
// which compares before every real date and never falls inside a window.
func ParseDay(s string) Day {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return Day{}
	}
	return Day{t: t.UTC()}
}

// DayOf truncates a time.Time to its UTC calendar day.
func DayOf(t time.Time) Day {
	return NewDay(t.UTC().Year(), t.UTC().Month(), t.UTC().Day())
}

// Today returns the current calendar day. The engines never call this
// themselves; callers pass an explicit as-of day instead.
func Today() Day {
	return DayOf(time.Now())
}

// EndOfTime is the sentinel for unbounded coverage windows.
func EndOfTime() Day {
	return NewDay(9999, time.December, 31)
}

// Comparison
func (d Day) Before(other Day) bool        { return d.t.Before(other.t) }
func (d Day) After(other Day) bool         { return d.t.After(other.t) }
func (d Day) Equal(other Day) bool         { return d.t.Equal(other.t) }
func (d Day) BeforeOrEqual(other Day) bool { return !d.After(other) }
func (d Day) AfterOrEqual(other Day) bool  { return !d.Before(other) }
func (d Day) IsZero() bool                 { return d.t.IsZero() }

// Arithmetic
func (d Day) AddDays(n int) Day   { return Day{t: d.t.AddDate(0, 0, n)} }
func (d Day) AddMonths(n int) Day { return Day{t: d.t.AddDate(0, n, 0)} }

// Properties
func (d Day) Year() int             { return d.t.Year() }
func (d Day) Month() time.Month     { return d.t.Month() }
func (d Day) DayOfMonth() int       { return d.t.Day() }
func (d Day) Weekday() time.Weekday { return d.t.Weekday() }
func (d Day) Time() time.Time       { return d.t }

func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(dayLayout)
}

// LessonOrder compares two (day, HH:mm) pairs. The HH:mm strings sort
// lexically, which matches chronological order for zero-padded times.
// This ordering is the sole basis for pass allocation and must stay stable.
func LessonOrder(aDay Day, aTime string, bDay Day, bTime string) int {
	switch {
	case aDay.Before(bDay):
		return -1
	case aDay.After(bDay):
		return 1
	case aTime < bTime:
		return -1
	case aTime > bTime:
		return 1
	default:
		return 0
	}
}
