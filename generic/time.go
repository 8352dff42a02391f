package generic

import (
	"fmt"
	"strconv"
	"time"
)

// =============================================================================
// DAY KEY - The one calendar-day abstraction
// =============================================================================

const dayLayout = "2006-01-02"

// DayKey identifies a calendar day as "YYYY-MM-DD". Keys sort
// lexicographically in chronological order, which the stores rely on.
type DayKey string

// CalendarDay returns the day t falls on in loc. Every component that groups
// by day goes through here.
func CalendarDay(t time.Time, loc *time.Location) DayKey {
	if loc == nil {
		loc = time.UTC
	}
	return DayKey(t.In(loc).Format(dayLayout))
}

func ParseDayKey(s string) (DayKey, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return "", err
	}
	return DayKey(t.Format(dayLayout)), nil
}

// ParseDate accepts either a bare date or an RFC3339 timestamp (what browser
// date pickers send) and returns its calendar day in loc.
func ParseDate(s string, loc *time.Location) (DayKey, error) {
	if d, err := ParseDayKey(s); err == nil {
		return d, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return "", fmt.Errorf("unrecognised date %q", s)
	}
	return CalendarDay(t, loc), nil
}

func NewDayKey(year int, month time.Month, day int) DayKey {
	return DayKey(time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format(dayLayout))
}

func (d DayKey) date() time.Time {
	t, _ := time.Parse(dayLayout, string(d))
	return t
}

// Start returns local midnight of the day.
func (d DayKey) Start(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t := d.date()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func (d DayKey) AddDays(n int) DayKey { return DayKey(d.date().AddDate(0, 0, n).Format(dayLayout)) }
func (d DayKey) Year() int             { return d.date().Year() }
func (d DayKey) Month() time.Month     { return d.date().Month() }
func (d DayKey) Weekday() time.Weekday { return d.date().Weekday() }
func (d DayKey) IsZero() bool          { return d == "" }
func (d DayKey) String() string        { return string(d) }

func (d DayKey) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// YearRange returns the first and last day of a calendar year.
func YearRange(year int) (DayKey, DayKey) {
	return NewDayKey(year, time.January, 1), NewDayKey(year, time.December, 31)
}

// MonthRange returns the first and last day of a month.
func MonthRange(year int, month time.Month) (DayKey, DayKey) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return DayKey(first.Format(dayLayout)), DayKey(first.AddDate(0, 1, -1).Format(dayLayout))
}

// =============================================================================
// TIME OF DAY - "HH:MM" policy thresholds
// =============================================================================

type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses exactly "HH:MM" with two-digit parts, hour 0-23,
// minute 0-59.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) != 5 || s[2] != ':' {
		return TimeOfDay{}, fmt.Errorf("time %q must be HH:MM", s)
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("time %q: bad hour", s)
	}
	m, err := strconv.Atoi(s[3:])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("time %q: bad minute", s)
	}
	if h < 0 || h > 23 {
		return TimeOfDay{}, fmt.Errorf("time %q: hour must be 00-23", s)
	}
	if m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("time %q: minute must be 00-59", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int { return t.Hour*60 + t.Minute }

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// MinutesOfDay returns minutes since local midnight of t in loc.
func MinutesOfDay(t time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	return lt.Hour()*60 + lt.Minute()
}

// =============================================================================
// CLOCK - Injectable time source
// =============================================================================

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant. Set it between calls to move
// time forward in tests.
type FixedClock struct {
	At time.Time
}

func (c *FixedClock) Now() time.Time { return c.At }

func (c *FixedClock) Set(t time.Time) { c.At = t }
