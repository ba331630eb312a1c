package consumer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"nsp-alarm-correlator/internal/lifecycle"
	"nsp-alarm-correlator/internal/metrics"
	"nsp-alarm-correlator/internal/normalizer"
	"nsp-alarm-correlator/internal/streams"
)

// NotificationConsumer reads raw alarm notifications from the stream, runs
// each through the decision pipeline and hands surviving records to the
// lifecycle synchronizer. One message is processed at a time; a store
// failure leaves the message un-acked so the group redelivers it.
type NotificationConsumer struct {
	redisClient  *redis.Client
	pipeline     *normalizer.Pipeline
	synchronizer *lifecycle.Synchronizer
	logger       *zap.Logger
	stream       string
	groupName    string
	consumerName string
	batchSize    int64
}

// NewNotificationConsumer creates the stream consumer.
func NewNotificationConsumer(
	redisClient *redis.Client,
	pipeline *normalizer.Pipeline,
	synchronizer *lifecycle.Synchronizer,
	logger *zap.Logger,
	stream string,
	groupName string,
	consumerName string,
	batchSize int64,
) *NotificationConsumer {
	return &NotificationConsumer{
		redisClient:  redisClient,
		pipeline:     pipeline,
		synchronizer: synchronizer,
		logger:       logger,
		stream:       stream,
		groupName:    groupName,
		consumerName: consumerName,
		batchSize:    batchSize,
	}
}

// Start consumes notifications until the context is canceled.
func (c *NotificationConsumer) Start(ctx context.Context) error {
	if err := streams.CreateConsumerGroup(ctx, c.redisClient, c.stream, c.groupName); err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.logger.Info("Notification consumer started",
		zap.String("stream", c.stream),
		zap.String("consumer_group", c.groupName),
		zap.String("consumer_name", c.consumerName),
	)

	backoffDuration := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if err := c.consumeNotifications(ctx); err != nil {
				c.logger.Error("Failed to consume notifications",
					zap.Error(err),
					zap.Duration("backoff", backoffDuration),
				)

				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoffDuration):
					backoffDuration *= 2
					if backoffDuration > maxBackoff {
						backoffDuration = maxBackoff
					}
				}
			} else {
				backoffDuration = time.Second
			}
		}
	}
}

func (c *NotificationConsumer) consumeNotifications(ctx context.Context) error {
	messages, err := streams.Read(
		ctx,
		c.redisClient,
		c.stream,
		c.groupName,
		c.consumerName,
		c.batchSize,
	)
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, msg := range messages {
		if err := c.processNotification(ctx, msg); err != nil {
			// Leave the message pending so it is redelivered; the durable
			// store rejected it, not the message shape.
			c.logger.Error("Failed to process notification",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			continue
		}

		if err := c.ackMessage(ctx, msg.ID); err != nil {
			c.logger.Warn("Failed to ack message",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}
	}

	return nil
}

// processNotification applies one raw notification end to end. A nil error
// with no record applied means the notification was dropped as noise.
func (c *NotificationConsumer) processNotification(ctx context.Context, msg streams.Message) error {
	payload, ok := msg.Values["data"].(string)
	if !ok || payload == "" {
		metrics.NotificationDropped("missing_payload")
		c.logger.Debug("Dropping message without data payload",
			zap.String("message_id", msg.ID),
		)
		return nil
	}

	record, err := c.pipeline.Normalize([]byte(payload))
	if err != nil {
		return fmt.Errorf("failed to normalize notification: %w", err)
	}
	if record == nil {
		// Malformed or suppressed as a derivative of an active root cause
		metrics.NotificationDropped("filtered")
		return nil
	}

	outcome, err := c.synchronizer.Apply(ctx, record)
	if err != nil {
		metrics.StoreFailure()
		return fmt.Errorf("failed to apply lifecycle event: %w", err)
	}

	metrics.LifecycleOutcome(outcome.String())
	metrics.NotificationProcessed(record.EventType)

	return nil
}

func (c *NotificationConsumer) ackMessage(ctx context.Context, messageID string) error {
	return c.redisClient.XAck(ctx, c.stream, c.groupName, messageID).Err()
}
