package pricing

import (
	"testing"
	"time"

	"github.com/pitlane/service-booking/internal/domain/catalog"
	"github.com/pitlane/service-booking/internal/domain/promo"
	"github.com/pitlane/service-booking/internal/domain/schedule"
	"github.com/stretchr/testify/assert"
)

var grandPrix, _ = catalog.ExperienceByID("GRAND_PRIX")

func settings(pricing map[string]int64) catalog.Settings {
	return catalog.NewSettings(6, time.UTC, schedule.Default(), pricing)
}

func TestCalculate_BasePrice(t *testing.T) {
	q := Calculate(settings(nil), grandPrix, 3, promo.Result{})
	assert.Equal(t, int64(15000), q.UnitPrice)
	assert.Equal(t, int64(45000), q.Total)
	assert.Equal(t, int64(22500), q.Deposit)
}

func TestCalculate_ConfiguredPrice(t *testing.T) {
	q := Calculate(settings(map[string]int64{"GRAND_PRIX": 17000}), grandPrix, 1, promo.Result{})
	assert.Equal(t, int64(17000), q.Total)
	assert.Equal(t, int64(8500), q.Deposit)
}

func TestCalculate_HalfOffScenario(t *testing.T) {
	q := Calculate(settings(nil), grandPrix, 2, promo.Result{Discount: 0.5, PromotionName: "2x1"})
	assert.Equal(t, int64(15000), q.Total)
	assert.Equal(t, int64(7500), q.Deposit)
}

func TestCalculate_OverrideIgnoresDiscount(t *testing.T) {
	override := int64(9000)
	q := Calculate(settings(map[string]int64{"GRAND_PRIX": 17000}), grandPrix, 2,
		promo.Result{Discount: 0.3, PriceOverride: &override})
	assert.Equal(t, int64(9000), q.UnitPrice)
	assert.Zero(t, q.Discount)
	assert.Equal(t, int64(18000), q.Total)
}

func TestCalculate_RoundsHalfUp(t *testing.T) {
	quick, _ := catalog.ExperienceByID("QUICK_RACE")
	// 8001 * 1 * 0.85 = 6800.85 -> 6801; deposit 3400.5 -> 3401
	q := Calculate(settings(map[string]int64{"QUICK_RACE": 8001}), quick, 1, promo.Result{Discount: 0.15})
	assert.Equal(t, int64(6801), q.Total)
	assert.Equal(t, int64(3401), q.Deposit)

	assert.Equal(t, int64(3), RoundHalfUp(2.5))
	assert.Equal(t, int64(2), RoundHalfUp(2.49))
}
