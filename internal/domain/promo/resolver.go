package promo

import "github.com/google/uuid"

// Result is the outcome of resolving promotions for one booking.
type Result struct {
	PromotionID   *uuid.UUID
	PromotionName string
	Discount      float64
	PriceOverride *int64
}

// Applied reports whether any promotion contributed.
func (r Result) Applied() bool { return r.PromotionName != "" }

func (r *Result) markApplied(p *Promotion, fallback string) {
	id := p.ID()
	r.PromotionID = &id
	r.PromotionName = p.Name()
	if r.PromotionName == "" {
		r.PromotionName = fallback
	}
}

// Resolve folds the candidate promotions in the order given. Callers pass
// promotions already filtered for activity and validity, or a single
// promotion the operator selected.
//
// When several matching promotions carry a price override for the booked
// experience, the last one evaluated wins. This depends on iteration order
// rather than on any declared priority, so callers must supply a stable order.
func Resolve(promos []*Promotion, c Candidate) Result {
	var acc Result
	for _, p := range promos {
		rule := p.Rule()
		if !rule.Admits(c) {
			continue
		}
		for _, eff := range rule.effects {
			eff.Apply(&acc, c, p)
		}
	}
	return acc
}
