package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"mini-shop/notification-service/models"
	"mini-shop/notification-service/notifier"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

func InitConsumer(brokers []string, logger *zap.Logger) (sarama.Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true
	config.Consumer.Retry.Backoff = 1 * time.Second

	consumer, err := sarama.NewConsumer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	logger.Info("Kafka consumer initialized", zap.Strings("brokers", brokers))
	return consumer, nil
}

// OrderEventConsumer turns order_confirmed and order_cancelled events into
// customer notifications.
type OrderEventConsumer struct {
	consumer sarama.Consumer
	topic    string
	offset   int64
	notifier *notifier.Notifier
	logger   *zap.Logger
}

func NewOrderEventConsumer(consumer sarama.Consumer, topic string, offset int64, n *notifier.Notifier, logger *zap.Logger) *OrderEventConsumer {
	return &OrderEventConsumer{
		consumer: consumer,
		topic:    topic,
		offset:   offset,
		notifier: n,
		logger:   logger,
	}
}

// Run consumes every partition of the topic from the configured offset until
// ctx is cancelled.
func (c *OrderEventConsumer) Run(ctx context.Context) error {
	partitions, err := c.consumer.Partitions(c.topic)
	if err != nil {
		return fmt.Errorf("failed to list partitions: %w", err)
	}

	var wg sync.WaitGroup
	for _, partition := range partitions {
		pc, err := c.consumer.ConsumePartition(c.topic, partition, c.offset)
		if err != nil {
			return fmt.Errorf("failed to consume partition %d: %w", partition, err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer pc.Close()
			c.consumePartition(ctx, pc)
		}()
	}

	c.logger.Info("Kafka consumer started", zap.String("topic", c.topic), zap.Int("partitions", len(partitions)))
	wg.Wait()
	return nil
}

func (c *OrderEventConsumer) consumePartition(ctx context.Context, pc sarama.PartitionConsumer) {
	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-pc.Messages():
			if !ok {
				return
			}
			// Every handling error is a bad payload; redelivery cannot fix it.
			if err := c.handleMessage(message); err != nil {
				c.logger.Error("Dropping order event",
					zap.Int32("partition", message.Partition),
					zap.Int64("offset", message.Offset),
					zap.Error(err),
				)
			}
		case err, ok := <-pc.Errors():
			if !ok {
				return
			}
			c.logger.Error("Kafka consumer error", zap.Error(err))
		}
	}
}

func (c *OrderEventConsumer) handleMessage(message *sarama.ConsumerMessage) error {
	// Extract trace context from Kafka message headers
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), saramaHeaderCarrier(message.Headers))

	ctx, span := otel.Tracer("notification-service").Start(ctx, "ProcessOrderEvent")
	defer span.End()

	var event models.OrderEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed event")
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if event.EventType == "" || event.UserID == "" {
		span.SetStatus(codes.Error, "malformed event")
		return errors.New("missing event_type or user_id in event")
	}

	span.SetAttributes(
		attribute.String("event.type", event.EventType),
		attribute.Int64("order.id", event.OrderID),
		attribute.String("user.id", event.UserID),
		attribute.String("saga.id", event.SagaID),
	)

	var text string
	switch event.EventType {
	case "order_confirmed":
		text = fmt.Sprintf("Your order #%d has been confirmed. Total: $%.2f", event.OrderID, event.TotalAmount)
	case "order_cancelled":
		text = fmt.Sprintf("Your order #%d was cancelled: %s", event.OrderID, event.Reason)
	default:
		c.logger.Debug("Ignoring event", zap.String("event_type", event.EventType))
		return nil
	}

	c.notifier.Deliver(ctx, event.UserID, event.EventType, text, models.SourceEvent)
	return nil
}

// saramaHeaderCarrier implements the TextMapCarrier interface for consumed Kafka headers
type saramaHeaderCarrier []*sarama.RecordHeader

func (c saramaHeaderCarrier) Get(key string) string {
	for _, h := range c {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c saramaHeaderCarrier) Set(key, value string) {
	// Not needed for extraction
}

func (c saramaHeaderCarrier) Keys() []string {
	keys := make([]string, len(c))
	for i, h := range c {
		keys[i] = string(h.Key)
	}
	return keys
}
