// Package pricing turns a unit price, quantity and promotion outcome into the
// frozen total and deposit of a reservation.
package pricing

import (
	"math"

	"github.com/pitlane/service-booking/internal/domain/catalog"
	"github.com/pitlane/service-booking/internal/domain/promo"
)

// DepositRate is the share of the total that must be paid up front.
const DepositRate = 0.5

// Quote is a computed price in whole currency units.
type Quote struct {
	UnitPrice int64
	Quantity  int
	Discount  float64
	Total     int64
	Deposit   int64
}

// RoundHalfUp rounds to the nearest integer, halves away from zero for the
// non-negative amounts handled here.
func RoundHalfUp(x float64) int64 {
	return int64(math.Floor(x + 0.5))
}

// Calculate prices quantity units of exp. A promotion price override replaces
// the unit price and suppresses any percentage discount; otherwise the
// deployment price (or catalog base price) is discounted.
func Calculate(settings catalog.Settings, exp catalog.Experience, quantity int, res promo.Result) Quote {
	unit := settings.UnitPrice(exp)
	discount := res.Discount
	if res.PriceOverride != nil {
		unit = *res.PriceOverride
		discount = 0
	}

	total := RoundHalfUp(float64(unit) * float64(quantity) * (1 - discount))
	return Quote{
		UnitPrice: unit,
		Quantity:  quantity,
		Discount:  discount,
		Total:     total,
		Deposit:   RoundHalfUp(float64(total) * DepositRate),
	}
}
