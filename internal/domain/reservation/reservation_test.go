package reservation

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pitlane/service-booking/internal/platform/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, time.March, 12, 18, 0, 0, 0, time.UTC)

func seed(start time.Time, minutes, qty int, status Status) *Reservation {
	return Reconstitute(uuid.New(), "u1", "GRAND_PRIX", start, minutes, qty, status,
		15000, 7500, 0, nil, "", base.Add(-time.Hour), base.Add(-time.Hour))
}

func TestNewReservation_Validation(t *testing.T) {
	_, err := NewReservation(NewParams{UserID: "u1", ExperienceID: "GRAND_PRIX", DurationMin: 60, Quantity: 0, Now: base})
	assert.ErrorIs(t, err, domain.ErrValidation)

	r, err := NewReservation(NewParams{
		UserID: "u1", ExperienceID: "GRAND_PRIX", StartTime: base,
		DurationMin: 60, Quantity: 2, TotalPrice: 30000, DepositRequired: 15000, Now: base,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, r.Status())
	assert.Equal(t, base.Add(time.Hour), r.EndTime())
	assert.Equal(t, int64(15000), r.DepositRequired())
}

func TestReservation_Confirm(t *testing.T) {
	r := seed(base, 60, 1, StatusPending)

	changed, err := r.Confirm(7000, base)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StatusConfirmed, r.Status())
	assert.Equal(t, int64(7000), r.DepositPaid())

	changed, err = r.Confirm(9999, base)
	require.NoError(t, err)
	assert.False(t, changed, "second confirm is a no-op")
	assert.Equal(t, int64(7000), r.DepositPaid())

	cancelled := seed(base, 60, 1, StatusCancelled)
	_, err = cancelled.Confirm(7000, base)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestReservation_Cancel(t *testing.T) {
	tests := []struct {
		name    string
		status  Status
		now     time.Time
		wantErr error
	}{
		{"pending close to start", StatusPending, base.Add(-time.Minute), nil},
		{"confirmed exactly 24h ahead", StatusConfirmed, base.Add(-24 * time.Hour), nil},
		{"confirmed 23h ahead", StatusConfirmed, base.Add(-23 * time.Hour), domain.ErrBusinessRule},
		{"already cancelled", StatusCancelled, base.Add(-48 * time.Hour), domain.ErrBusinessRule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := seed(base, 60, 1, tt.status)
			err := r.Cancel(tt.now)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				assert.Equal(t, tt.status, r.Status())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusCancelled, r.Status())
		})
	}
}

func TestRemainingCapacity(t *testing.T) {
	existing := []*Reservation{
		seed(base, 60, 2, StatusConfirmed),
		seed(base.Add(30*time.Minute), 30, 1, StatusPending),
		seed(base, 60, 3, StatusCancelled),
		seed(base.Add(3*time.Hour), 60, 4, StatusPending),
	}

	assert.Equal(t, 3, RemainingCapacity(existing, base, time.Hour, 6))
	assert.Equal(t, 6, RemainingCapacity(existing, base.Add(90*time.Minute), 15*time.Minute, 6))
	assert.Equal(t, 0, RemainingCapacity(existing, base, time.Hour, 2), "never negative")
}

func TestRemainingCapacity_TouchingEndpointsOverlap(t *testing.T) {
	existing := []*Reservation{seed(base, 60, 6, StatusConfirmed)}

	assert.Equal(t, 0, RemainingCapacity(existing, base.Add(time.Hour), 15*time.Minute, 6),
		"starting exactly when another session ends counts as overlapping")
	assert.Equal(t, 0, RemainingCapacity(existing, base.Add(-15*time.Minute), 15*time.Minute, 6),
		"ending exactly when another session starts counts as overlapping")
	assert.Equal(t, 6, RemainingCapacity(existing, base.Add(61*time.Minute), 15*time.Minute, 6))
}

func TestRemainingCapacity_ScenarioA(t *testing.T) {
	var existing []*Reservation
	assert.Equal(t, 6, RemainingCapacity(existing, base, time.Hour, 6))

	existing = append(existing, seed(base, 60, 6, StatusPending))
	assert.Equal(t, 0, RemainingCapacity(existing, base.Add(30*time.Minute), 30*time.Minute, 6))
}
