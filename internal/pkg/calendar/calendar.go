package calendar

import (
	"errors"
	"fmt"
	"time"
)

const dayKeyLayout = "2006-01-02"

// DefaultTimezone is the business timezone used when none is configured.
const DefaultTimezone = "Europe/London"

var ErrInvalidDayKey = errors.New("date must be in YYYY-MM-DD format")

// DayKey identifies one business calendar day as "YYYY-MM-DD".
// Lexical order equals chronological order.
type DayKey string

// ParseDayKey validates s and returns it as a DayKey.
func ParseDayKey(s string) (DayKey, error) {
	t, err := time.Parse(dayKeyLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDayKey, s)
	}
	return DayKey(t.Format(dayKeyLayout)), nil
}

// DayKeyFromTime returns the date of t as seen in loc.
func DayKeyFromTime(t time.Time, loc *time.Location) DayKey {
	return DayKey(t.In(loc).Format(dayKeyLayout))
}

// DayKeyFromStorage converts a stored date column back to a DayKey.
func DayKeyFromStorage(t time.Time) DayKey {
	return DayKey(t.UTC().Format(dayKeyLayout))
}

func (d DayKey) String() string {
	return string(d)
}

func (d DayKey) date() time.Time {
	t, err := time.Parse(dayKeyLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// StorageInstant is the canonical midnight UTC instant stored for the day.
func (d DayKey) StorageInstant() time.Time {
	return d.date()
}

// IsWeekend reports whether the day is a Saturday or Sunday.
func (d DayKey) IsWeekend() bool {
	switch d.date().Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	return false
}

func (d DayKey) AddDays(n int) DayKey {
	return DayKey(d.date().AddDate(0, 0, n).Format(dayKeyLayout))
}

func (d DayKey) Yesterday() DayKey {
	return d.AddDays(-1)
}

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock always returns the same instant. Used in tests.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time {
	return c.At
}

// Calendar maps the clock onto business days in a fixed timezone.
type Calendar struct {
	clock Clock
	loc   *time.Location
}

// New builds a Calendar for the named IANA timezone.
func New(clock Clock, timezone string) (*Calendar, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Calendar{clock: clock, loc: loc}, nil
}

// Now returns the current instant in UTC.
func (c *Calendar) Now() time.Time {
	return c.clock.Now().UTC()
}

func (c *Calendar) Today() DayKey {
	return DayKeyFromTime(c.clock.Now(), c.loc)
}

func (c *Calendar) Location() *time.Location {
	return c.loc
}
