package model

import (
	"fmt"
	"time"
)

// DayLayout is the persisted form of a Day.
const DayLayout = "2006-01-02"

// Day is a facility-local calendar day ("2006-01-02"). Sequences, duplicate
// checks and the cache are all scoped to one Day.
type Day string

// DayOf returns the calendar day of t in t's own location.
func DayOf(t time.Time) Day {
	return Day(t.Format(DayLayout))
}

// ParseDay validates s as a Day.
func ParseDay(s string) (Day, error) {
	if _, err := time.Parse(DayLayout, s); err != nil {
		return "", InvalidArgument("parse day", fmt.Sprintf("invalid day %q", s))
	}
	return Day(s), nil
}

// At returns the instant hour:minute on d in loc.
func (d Day) At(hour, minute int, loc *time.Location) time.Time {
	t, err := time.ParseInLocation(DayLayout, string(d), loc)
	if err != nil {
		return time.Time{}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, loc)
}

func (d Day) String() string {
	return string(d)
}

// Clock is the source of wall time. Production code uses SystemClock;
// tests use testutil.FakeClock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time in a fixed facility location.
type SystemClock struct {
	Location *time.Location
}

// Now returns the current time in the clock's location (local time if unset).
func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// Today is a shorthand for DayOf(c.Now()).
func Today(c Clock) Day {
	return DayOf(c.Now())
}
