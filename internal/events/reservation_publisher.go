package events

import (
	"context"

	"github.com/pitlane/service-booking/internal/application"
	"github.com/pitlane/service-booking/internal/platform/kafka"
)

// eventProducer is the part of kafka.Producer the publisher needs.
type eventProducer interface {
	PublishEvent(ctx context.Context, topic string, ce kafka.CloudEvent) error
}

// ReservationPublisher publishes reservation lifecycle events as CloudEvents
// keyed by reservation id.
type ReservationPublisher struct {
	producer eventProducer
}

// NewReservationPublisher creates a publisher.
func NewReservationPublisher(producer eventProducer) *ReservationPublisher {
	return &ReservationPublisher{producer: producer}
}

// PublishReservationEvent implements application.EventPublisher.
func (p *ReservationPublisher) PublishReservationEvent(ctx context.Context, evt application.ReservationEvent) error {
	r := evt.Reservation
	data := ReservationEventData{
		ReservationID:   r.ID(),
		UserID:          r.UserID(),
		ExperienceID:    r.ExperienceID(),
		StartTime:       r.StartTime(),
		EndTime:         r.EndTime(),
		Quantity:        r.Quantity(),
		Status:          string(r.Status()),
		TotalPrice:      r.TotalPrice(),
		DepositRequired: r.DepositRequired(),
		DepositPaid:     r.DepositPaid(),
		Promotion:       r.AppliedPromotionName(),
		ActorID:         evt.ActorID,
		Reason:          evt.Reason,
		OccurredAt:      evt.OccurredAt.UTC(),
	}

	ce, err := kafka.NewCloudEvent(EventSource, evt.Type, data)
	if err != nil {
		return err
	}
	ce.Subject = r.ID().String()
	return p.producer.PublishEvent(ctx, TopicReservationEvents, ce)
}
