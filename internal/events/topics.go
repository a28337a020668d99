// Package events connects the booking service to Kafka: it publishes
// reservation lifecycle events and consumes relayed payment notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Topics.
const (
	TopicReservationEvents    = "booking.reservation.events"
	TopicPaymentNotifications = "booking.payment.notifications"
)

// PaymentNotificationReceived is the CloudEvent type of a relayed provider
// notification. Its data is the provider's original envelope.
const PaymentNotificationReceived = "booking.payment.notification.received"

// EventSource identifies this service in CloudEvents.
const EventSource = "service-booking"

// ReservationEventData is the payload of every reservation lifecycle event.
type ReservationEventData struct {
	ReservationID   uuid.UUID `json:"reservation_id"`
	UserID          string    `json:"user_id"`
	ExperienceID    string    `json:"experience_id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Quantity        int       `json:"quantity"`
	Status          string    `json:"status"`
	TotalPrice      int64     `json:"total_price"`
	DepositRequired int64     `json:"deposit_required"`
	DepositPaid     int64     `json:"deposit_paid"`
	Promotion       string    `json:"promotion,omitempty"`
	ActorID         string    `json:"actor_id,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}
