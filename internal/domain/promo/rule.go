package promo

import (
	"fmt"
	"time"

	"github.com/pitlane/service-booking/internal/domain/schedule"
)

// RuleSpec is the stored, loosely shaped form of a promotion rule. Every
// field is optional. It is parsed into a Rule before evaluation.
type RuleSpec struct {
	Days               []int            `json:"days,omitempty"`
	TimeStart          string           `json:"timeStart,omitempty"`
	TimeEnd            string           `json:"timeEnd,omitempty"`
	MinQuantity        int              `json:"min_quantity,omitempty"`
	PercentOff         float64          `json:"percentOff,omitempty"`
	PriceOverrides     map[string]int64 `json:"priceOverrides,omitempty"`
	TwoForOneWednesday bool             `json:"twoForOneWednesday,omitempty"`
	HalfOffWeekday     *int             `json:"halfOffWeekday,omitempty"`
}

// Candidate is the booking a rule is evaluated against. Weekday and Clock
// are in venue time.
type Candidate struct {
	Weekday      time.Weekday
	Clock        schedule.Clock
	Quantity     int
	ExperienceID string
}

// NewCandidate derives a Candidate from a venue-local start time.
func NewCandidate(localStart time.Time, quantity int, experienceID string) Candidate {
	return Candidate{
		Weekday:      localStart.Weekday(),
		Clock:        schedule.ClockOf(localStart),
		Quantity:     quantity,
		ExperienceID: experienceID,
	}
}

// Condition gates a whole promotion: if any condition rejects the candidate
// none of the promotion's effects apply.
type Condition interface {
	Admits(c Candidate) bool
}

// Effect contributes to the running resolution.
type Effect interface {
	Apply(acc *Result, c Candidate, p *Promotion)
}

// DaySet restricts a promotion to some weekdays.
type DaySet map[time.Weekday]struct{}

func (d DaySet) Admits(c Candidate) bool {
	_, ok := d[c.Weekday]
	return ok
}

// TimeWindow restricts a promotion to an inclusive time-of-day range.
type TimeWindow struct {
	Start schedule.Clock
	End   schedule.Clock
}

func (w TimeWindow) Admits(c Candidate) bool {
	return c.Clock >= w.Start && c.Clock <= w.End
}

// HalfOffWeekday grants 50% on one weekday ("2x1 on Wednesdays").
type HalfOffWeekday struct {
	Day time.Weekday
}

func (h HalfOffWeekday) Apply(acc *Result, c Candidate, p *Promotion) {
	if c.Weekday != h.Day {
		return
	}
	acc.Discount = max(acc.Discount, 0.5)
	acc.markApplied(p, "half_off_"+h.Day.String())
}

// PercentOff is a fractional discount, optionally requiring a minimum quantity.
// Only the largest percentage across promotions is kept.
type PercentOff struct {
	Fraction    float64
	MinQuantity int
}

func (po PercentOff) Apply(acc *Result, c Candidate, p *Promotion) {
	if po.MinQuantity > 0 && c.Quantity < po.MinQuantity {
		return
	}
	if po.Fraction > acc.Discount {
		acc.Discount = po.Fraction
		acc.markApplied(p, fmt.Sprintf("percent_%g", po.Fraction*100))
	}
}

// PriceOverride replaces the unit price of specific experiences. It resets any
// accumulated percentage discount.
type PriceOverride map[string]int64

func (po PriceOverride) Apply(acc *Result, c Candidate, p *Promotion) {
	price, ok := po[c.ExperienceID]
	if !ok {
		return
	}
	acc.PriceOverride = &price
	acc.Discount = 0
	acc.markApplied(p, "price_override")
}

// Rule is a parsed RuleSpec: conditions that gate the promotion and effects
// applied in a fixed order: half-off first, then percentage, then price override.
type Rule struct {
	spec       RuleSpec
	conditions []Condition
	effects    []Effect
}

// ParseRule validates rs and builds its conditions and effects.
func ParseRule(rs RuleSpec) (Rule, error) {
	r := Rule{spec: rs}

	if len(rs.Days) > 0 {
		days := make(DaySet, len(rs.Days))
		for _, d := range rs.Days {
			if d < 0 || d > 6 {
				return Rule{}, fmt.Errorf("invalid weekday %d", d)
			}
			days[time.Weekday(d)] = struct{}{}
		}
		r.conditions = append(r.conditions, days)
	}

	if rs.TimeStart != "" || rs.TimeEnd != "" {
		if rs.TimeStart == "" || rs.TimeEnd == "" {
			return Rule{}, fmt.Errorf("timeStart and timeEnd must be set together")
		}
		start, err := schedule.ParseClock(rs.TimeStart)
		if err != nil {
			return Rule{}, fmt.Errorf("timeStart: %w", err)
		}
		end, err := schedule.ParseClock(rs.TimeEnd)
		if err != nil {
			return Rule{}, fmt.Errorf("timeEnd: %w", err)
		}
		r.conditions = append(r.conditions, TimeWindow{Start: start, End: end})
	}

	if rs.MinQuantity < 0 {
		return Rule{}, fmt.Errorf("min_quantity must not be negative")
	}

	if rs.TwoForOneWednesday {
		r.effects = append(r.effects, HalfOffWeekday{Day: time.Wednesday})
	}
	if rs.HalfOffWeekday != nil {
		d := *rs.HalfOffWeekday
		if d < 0 || d > 6 {
			return Rule{}, fmt.Errorf("invalid halfOffWeekday %d", d)
		}
		r.effects = append(r.effects, HalfOffWeekday{Day: time.Weekday(d)})
	}

	if rs.PercentOff != 0 {
		if rs.PercentOff < 0 || rs.PercentOff > 100 {
			return Rule{}, fmt.Errorf("percentOff must be within (0, 100]")
		}
		r.effects = append(r.effects, PercentOff{Fraction: rs.PercentOff / 100, MinQuantity: rs.MinQuantity})
	}

	if len(rs.PriceOverrides) > 0 {
		prices := make(PriceOverride, len(rs.PriceOverrides))
		for exp, price := range rs.PriceOverrides {
			if price < 0 {
				return Rule{}, fmt.Errorf("price override for %s must not be negative", exp)
			}
			prices[exp] = price
		}
		r.effects = append(r.effects, prices)
	}

	return r, nil
}

// Spec returns the stored form of the rule.
func (r Rule) Spec() RuleSpec { return r.spec }

// Admits reports whether every condition accepts c.
func (r Rule) Admits(c Candidate) bool {
	for _, cond := range r.conditions {
		if !cond.Admits(c) {
			return false
		}
	}
	return true
}
