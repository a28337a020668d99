// Package catalog describes what can be booked and the venue settings in force
// for a single request.
package catalog

import (
	"time"

	"github.com/pitlane/service-booking/internal/domain/schedule"
)

// DefaultCapacity is the number of simulators when none is configured.
const DefaultCapacity = 6

// Experience is a bookable session format.
type Experience struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DurationMin int    `json:"duration_min"`
	BasePrice   int64  `json:"base_price"`
}

// Duration returns the session length.
func (e Experience) Duration() time.Duration {
	return time.Duration(e.DurationMin) * time.Minute
}

var experiences = []Experience{
	{ID: "GRAND_PRIX", Name: "Grand Prix", DurationMin: 60, BasePrice: 15000},
	{ID: "MINI_GRAND_PRIX", Name: "Mini Grand Prix", DurationMin: 30, BasePrice: 10000},
	{ID: "QUICK_RACE", Name: "Quick Race", DurationMin: 15, BasePrice: 8000},
}

// Experiences returns the fixed catalog.
func Experiences() []Experience {
	out := make([]Experience, len(experiences))
	copy(out, experiences)
	return out
}

// ExperienceByID looks up a catalog entry.
func ExperienceByID(id string) (Experience, bool) {
	for _, e := range experiences {
		if e.ID == id {
			return e, true
		}
	}
	return Experience{}, false
}

// Settings is an immutable snapshot of capacity, hours and price overrides.
// It is built once from configuration and passed by value into each request.
type Settings struct {
	capacity int
	location *time.Location
	schedule schedule.Schedule
	pricing  map[string]int64
}

// NewSettings builds a snapshot. A non-positive capacity falls back to
// DefaultCapacity and a nil location to UTC.
func NewSettings(capacity int, loc *time.Location, sched schedule.Schedule, pricing map[string]int64) Settings {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if loc == nil {
		loc = time.UTC
	}
	p := make(map[string]int64, len(pricing))
	for k, v := range pricing {
		if v > 0 {
			p[k] = v
		}
	}
	return Settings{capacity: capacity, location: loc, schedule: sched, pricing: p}
}

func (s Settings) Capacity() int               { return s.capacity }
func (s Settings) Location() *time.Location    { return s.location }
func (s Settings) Schedule() schedule.Schedule { return s.schedule }

// ConfiguredPrice returns the deployment-specific unit price for an experience.
func (s Settings) ConfiguredPrice(experienceID string) (int64, bool) {
	p, ok := s.pricing[experienceID]
	return p, ok
}

// UnitPrice returns the configured price or the catalog base price.
func (s Settings) UnitPrice(e Experience) int64 {
	if p, ok := s.ConfiguredPrice(e.ID); ok {
		return p
	}
	return e.BasePrice
}

// InVenueTime converts t into the venue time zone.
func (s Settings) InVenueTime(t time.Time) time.Time {
	return t.In(s.location)
}

// DayKey returns the venue-local calendar day of t, e.g. "2025-03-12".
func (s Settings) DayKey(t time.Time) string {
	return s.InVenueTime(t).Format(time.DateOnly)
}

// DayBounds returns the venue-local [start, end) of the day containing t.
func (s Settings) DayBounds(t time.Time) (time.Time, time.Time) {
	local := s.InVenueTime(t)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location)
	return start, start.AddDate(0, 0, 1)
}
