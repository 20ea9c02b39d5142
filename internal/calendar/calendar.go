// Package calendar answers "is this today?" in the bot's configured timezone.
package calendar

import (
	"log/slog"
	"time"
)

// EAT is used when the configured zone cannot be loaded.
var EAT = time.FixedZone("EAT", 3*60*60)

type Clock struct {
	Location *time.Location
	NowFunc  func() time.Time
}

func New(loc *time.Location) Clock {
	return Clock{Location: loc, NowFunc: time.Now}
}

// Load resolves a zone name, falling back to a fixed UTC+3.
func Load(name string) *time.Location {
	if name == "" {
		return EAT
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		slog.Warn("unknown timezone, using EAT", "timezone", name, "err", err)
		return EAT
	}
	return loc
}

func (c Clock) Now() time.Time {
	now := time.Now
	if c.NowFunc != nil {
		now = c.NowFunc
	}
	return now().In(c.loc())
}

// Today returns midnight of the current day.
func (c Clock) Today() time.Time {
	return startOfDay(c.Now())
}

func (c Clock) SameDay(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	return startOfDay(t.In(c.loc())).Equal(c.Today())
}

// Before reports whether t falls on a calendar day before today.
func (c Clock) Before(t time.Time) bool {
	return startOfDay(t.In(c.loc())).Before(c.Today())
}

// EndOfDay is the last representable instant of today.
func (c Clock) EndOfDay() time.Time {
	now := c.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 999999000, c.loc())
}

func (c Clock) Date() string {
	return c.Now().Format(time.DateOnly)
}

// Zone is the clock's location, EAT when unset.
func (c Clock) Zone() *time.Location {
	return c.loc()
}

func (c Clock) loc() *time.Location {
	if c.Location == nil {
		return EAT
	}
	return c.Location
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
