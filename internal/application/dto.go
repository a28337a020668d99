package application

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pitlane/service-booking/internal/domain/payment"
	"github.com/pitlane/service-booking/internal/domain/promo"
	"github.com/pitlane/service-booking/internal/domain/reservation"
)

// CreateReservationRequest is the DTO for booking simulators.
type CreateReservationRequest struct {
	ExperienceID string     `json:"experience_id" binding:"required"`
	StartTime    time.Time  `json:"start_time" binding:"required"`
	Quantity     int        `json:"quantity" binding:"required,gt=0"`
	PromotionID  *uuid.UUID `json:"promotion_id"`
}

// CancelReservationRequest is the DTO for cancelling a reservation.
type CancelReservationRequest struct {
	Reason string `json:"reason"`
}

// ReservationDTO is the API representation of a reservation.
type ReservationDTO struct {
	ID                   uuid.UUID  `json:"id"`
	UserID               string     `json:"user_id"`
	ExperienceID         string     `json:"experience_id"`
	StartTime            time.Time  `json:"start_time"`
	EndTime              time.Time  `json:"end_time"`
	DurationMin          int        `json:"duration_min"`
	Quantity             int        `json:"quantity"`
	Status               string     `json:"status"`
	TotalPrice           int64      `json:"total_price"`
	DepositRequired      int64      `json:"deposit_required"`
	DepositPaid          int64      `json:"deposit_paid"`
	AppliedPromotionID   *uuid.UUID `json:"applied_promotion_id,omitempty"`
	AppliedPromotionName string     `json:"applied_promotion_name,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func toReservationDTO(r *reservation.Reservation) ReservationDTO {
	return ReservationDTO{
		ID:                   r.ID(),
		UserID:               r.UserID(),
		ExperienceID:         r.ExperienceID(),
		StartTime:            r.StartTime(),
		EndTime:              r.EndTime(),
		DurationMin:          r.DurationMin(),
		Quantity:             r.Quantity(),
		Status:               string(r.Status()),
		TotalPrice:           r.TotalPrice(),
		DepositRequired:      r.DepositRequired(),
		DepositPaid:          r.DepositPaid(),
		AppliedPromotionID:   r.AppliedPromotionID(),
		AppliedPromotionName: r.AppliedPromotionName(),
		CreatedAt:            r.CreatedAt(),
		UpdatedAt:            r.UpdatedAt(),
	}
}

func toReservationDTOs(rs []*reservation.Reservation) []ReservationDTO {
	out := make([]ReservationDTO, len(rs))
	for i, r := range rs {
		out[i] = toReservationDTO(r)
	}
	return out
}

// AvailabilityDTO answers whether a window can still be booked.
type AvailabilityDTO struct {
	ExperienceID   string    `json:"experience_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Available      bool      `json:"available"`
	RemainingUnits int       `json:"remaining_units"`
	Capacity       int       `json:"capacity"`
	Reason         string    `json:"reason,omitempty"`
}

// SweepResultDTO reports the reservations cancelled by one sweep.
type SweepResultDTO struct {
	CancelledCount int         `json:"cancelled_count"`
	IDs            []uuid.UUID `json:"ids"`
}

// NotificationID is a provider id that may arrive as a JSON string or number.
type NotificationID string

// UnmarshalJSON accepts "123" and 123.
func (id *NotificationID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = NotificationID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("notification id: %w", err)
	}
	*id = NotificationID(n.String())
	return nil
}

// PaymentNotification is the provider's push envelope. The topic arrives as
// either "topic" or "type"; the payment id as data.id or as the last segment
// of "resource".
type PaymentNotification struct {
	Topic    string `json:"topic"`
	Type     string `json:"type"`
	Resource string `json:"resource"`
	Data     struct {
		ID NotificationID `json:"id"`
	} `json:"data"`
}

// PaymentID extracts the payment id when the notification is about a payment.
func (n PaymentNotification) PaymentID() (string, bool) {
	topic := n.Topic
	if topic == "" {
		topic = n.Type
	}
	if topic != "payment" {
		return "", false
	}
	if id := strings.TrimSpace(string(n.Data.ID)); id != "" {
		return id, true
	}
	res := strings.TrimRight(strings.TrimSpace(n.Resource), "/")
	if res == "" {
		return "", false
	}
	id := res[strings.LastIndex(res, "/")+1:]
	return id, id != ""
}

// NotificationResult acknowledges a push notification.
type NotificationResult struct {
	Ignored   bool   `json:"ignored,omitempty"`
	Processed bool   `json:"processed,omitempty"`
	Status    string `json:"status,omitempty"`
}

// SyncResultDTO is the outcome of a pull reconciliation.
type SyncResultDTO struct {
	Found         bool   `json:"found"`
	Status        string `json:"status,omitempty"`
	PaymentID     string `json:"payment_id,omitempty"`
	ReservationID string `json:"reservation_id,omitempty"`
}

// PaymentDTO is the API response DTO for payment data.
type PaymentDTO struct {
	ID                uuid.UUID       `json:"id"`
	ReservationID     uuid.UUID       `json:"reservation_id"`
	ExternalPaymentID string          `json:"external_payment_id"`
	Status            string          `json:"status"`
	Amount            int64           `json:"amount"`
	Raw               json.RawMessage `json:"raw,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func toPaymentDTO(p *payment.Payment) PaymentDTO {
	return PaymentDTO{
		ID:                p.ID(),
		ReservationID:     p.ReservationID(),
		ExternalPaymentID: p.ExternalPaymentID(),
		Status:            string(p.Status()),
		Amount:            p.Amount(),
		Raw:               p.Raw(),
		CreatedAt:         p.CreatedAt(),
		UpdatedAt:         p.UpdatedAt(),
	}
}

// CheckoutDTO points the customer at the provider's checkout.
type CheckoutDTO struct {
	ReservationID    uuid.UUID `json:"reservation_id"`
	Amount           int64     `json:"amount"`
	PreferenceID     string    `json:"preference_id"`
	InitPoint        string    `json:"init_point"`
	SandboxInitPoint string    `json:"sandbox_init_point,omitempty"`
}

// CreatePromotionRequest holds data to create a promotion.
type CreatePromotionRequest struct {
	Name      string         `json:"name" binding:"required"`
	Rule      promo.RuleSpec `json:"rule"`
	ValidFrom *time.Time     `json:"valid_from"`
	ValidTo   *time.Time     `json:"valid_to"`
}

// SetPromotionActiveRequest toggles a promotion.
type SetPromotionActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// PromotionDTO is the API representation of a promotion.
type PromotionDTO struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Active    bool           `json:"active"`
	ValidFrom *time.Time     `json:"valid_from,omitempty"`
	ValidTo   *time.Time     `json:"valid_to,omitempty"`
	Rule      promo.RuleSpec `json:"rule"`
	CreatedAt time.Time      `json:"created_at"`
}

func toPromotionDTO(p *promo.Promotion) PromotionDTO {
	return PromotionDTO{
		ID:        p.ID(),
		Name:      p.Name(),
		Active:    p.Active(),
		ValidFrom: p.ValidFrom(),
		ValidTo:   p.ValidTo(),
		Rule:      p.Rule().Spec(),
		CreatedAt: p.CreatedAt(),
	}
}
