package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageHandler processes one message. Returning a RetryableError makes the
// consumer retry the same message with backoff; any other error is logged and
// the message is committed.
type MessageHandler func(ctx context.Context, msg kafkago.Message) error

// RetryableError marks a handler failure worth retrying.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Consumer reads a single topic as part of a consumer group.
type Consumer struct {
	reader     *kafkago.Reader
	logger     *zap.Logger
	maxBackoff time.Duration
}

// NewConsumer creates a group consumer for topic.
func NewConsumer(brokers []string, groupID, topic string, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader: kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:        brokers,
			GroupID:        groupID,
			Topic:          topic,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: 0,
			StartOffset:    kafkago.FirstOffset,
		}),
		logger:     logger.With(zap.String("topic", topic), zap.String("group", groupID)),
		maxBackoff: 30 * time.Second,
	}
}

// Consume blocks until ctx is cancelled, handing each message to handler and
// committing it once handled.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := c.handleWithRetry(ctx, handler, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("dropping message after handler error",
				zap.Int64("offset", msg.Offset),
				zap.Int("partition", msg.Partition),
				zap.Error(err),
			)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (c *Consumer) handleWithRetry(ctx context.Context, handler MessageHandler, msg kafkago.Message) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxInterval = c.maxBackoff
	policy.MaxElapsedTime = 0

	return backoff.RetryNotify(func() error {
		err := handler(ctx, msg)
		var retryable *RetryableError
		if err != nil && !errors.As(err, &retryable) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(policy, ctx), func(err error, wait time.Duration) {
		c.logger.Warn("retrying message",
			zap.Int64("offset", msg.Offset),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
}

// Close closes the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
