// Package schedule resolves operating hours and validates booking windows
// against them.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a time of day in minutes after midnight.
type Clock int

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return Clock(h*60 + m), nil
}

// MustClock is ParseClock for literals.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// ClockOf returns the time of day of t in t's location.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

// Hours is an inclusive [Open, Close] opening range within one day.
type Hours struct {
	Open  Clock
	Close Clock
}

func (h Hours) String() string { return h.Open.String() + "-" + h.Close.String() }

// DayEntry is an explicit per-weekday configuration.
type DayEntry struct {
	Enabled bool
	Hours   Hours
}

// Built-in hours used when nothing more specific is configured.
var (
	DefaultWeekday = Hours{Open: MustClock("16:00"), Close: MustClock("22:00")}
	DefaultWeekend = Hours{Open: MustClock("14:00"), Close: MustClock("20:00")}
)

// Schedule resolves hours with precedence per-day entry, then the
// weekday/weekend pair, then the built-in defaults.
type Schedule struct {
	byDay   map[time.Weekday]DayEntry
	weekday *Hours
	weekend *Hours
}

// New builds a Schedule. Any argument may be nil.
func New(byDay map[time.Weekday]DayEntry, weekday, weekend *Hours) Schedule {
	days := make(map[time.Weekday]DayEntry, len(byDay))
	for d, e := range byDay {
		days[d] = e
	}
	return Schedule{byDay: days, weekday: weekday, weekend: weekend}
}

// Default is a Schedule with only the built-in hours.
func Default() Schedule { return Schedule{} }

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

// Resolve returns the opening hours for a weekday, or false when the day is
// explicitly disabled.
func (s Schedule) Resolve(day time.Weekday) (Hours, bool) {
	if entry, ok := s.byDay[day]; ok {
		return entry.Hours, entry.Enabled
	}
	if isWeekend(day) && s.weekend != nil {
		return *s.weekend, true
	}
	if s.weekday != nil {
		return *s.weekday, true
	}
	if isWeekend(day) {
		return DefaultWeekend, true
	}
	return DefaultWeekday, true
}

// Allows reports whether [start, start+duration] lies within the opening
// hours of start's calendar day. start must already be in venue time.
// Both bounds are inclusive, so a window ending exactly at closing time is
// accepted. Windows that cross midnight always fail.
func (s Schedule) Allows(start time.Time, duration time.Duration) bool {
	hours, enabled := s.Resolve(start.Weekday())
	if !enabled {
		return false
	}
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	from := day.Add(time.Duration(hours.Open) * time.Minute)
	to := day.Add(time.Duration(hours.Close) * time.Minute)
	end := start.Add(duration)

	within := func(t time.Time) bool { return !t.Before(from) && !t.After(to) }
	return within(start) && within(end)
}

// Describe renders the hours of a weekday for error messages.
func (s Schedule) Describe(day time.Weekday) string {
	hours, enabled := s.Resolve(day)
	if !enabled {
		return fmt.Sprintf("closed on %s", day)
	}
	return fmt.Sprintf("open %s on %s", hours, day)
}
