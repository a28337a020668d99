package events

import (
	"context"
	"strings"

	"github.com/pitlane/service-booking/internal/application"
	"github.com/pitlane/service-booking/internal/platform/domain"
	"github.com/pitlane/service-booking/internal/platform/kafka"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// NotificationHandler reconciles one provider notification.
type NotificationHandler interface {
	HandleNotification(ctx context.Context, n application.PaymentNotification) (*application.NotificationResult, error)
}

// PaymentNotificationConsumer feeds relayed provider notifications into the
// same reconciliation path as the HTTP webhook.
type PaymentNotificationConsumer struct {
	consumer *kafka.Consumer
	handler  NotificationHandler
	logger   *zap.Logger
}

// NewPaymentNotificationConsumer creates a consumer on TopicPaymentNotifications.
func NewPaymentNotificationConsumer(
	brokers []string,
	groupID string,
	handler NotificationHandler,
	logger *zap.Logger,
) *PaymentNotificationConsumer {
	return &PaymentNotificationConsumer{
		consumer: kafka.NewConsumer(brokers, groupID, TopicPaymentNotifications, logger),
		handler:  handler,
		logger:   logger,
	}
}

// Start begins consuming. It blocks until the context is cancelled.
func (c *PaymentNotificationConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// handleMessage decodes one notification. Gateway, persistence and conflict
// failures are retried with backoff; a payment the provider does not know is
// dropped.
func (c *PaymentNotificationConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	ce, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from payment topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return err
	}

	if !strings.EqualFold(ce.Type, PaymentNotificationReceived) {
		c.logger.Debug("ignoring unhandled payment event type", zap.String("type", ce.Type))
		return nil
	}

	var n application.PaymentNotification
	if err := ce.ParseData(&n); err != nil {
		c.logger.Error("failed to parse payment notification data", zap.Error(err))
		return err
	}

	res, err := c.handler.HandleNotification(ctx, n)
	if err != nil {
		if domain.IsRetryable(err) {
			return &kafka.RetryableError{Err: err}
		}
		return err
	}
	c.logger.Info("payment notification consumed",
		zap.String("id", ce.ID),
		zap.Bool("ignored", res.Ignored),
		zap.String("status", res.Status),
	)
	return nil
}

// Close closes the underlying Kafka consumer.
func (c *PaymentNotificationConsumer) Close() error {
	return c.consumer.Close()
}
