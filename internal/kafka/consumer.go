package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"seller-portal/internal/logger"
	"seller-portal/internal/models"
)

// ErrPoisonMessage marks a message that can never be processed. It is
// logged and committed instead of retried.
var ErrPoisonMessage = errors.New("unprocessable message")

// Handler returns nil when the message may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

// MessageReader is the part of kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader  MessageReader
	topic   string
	logger  *logger.Logger
	backoff time.Duration
}

// NewConsumer creates a Kafka consumer for the given topic and group
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader, topic: topic, logger: log, backoff: time.Second}
}

// NewConsumerWithReader is used by tests.
func NewConsumerWithReader(reader MessageReader, topic string, log *logger.Logger) *Consumer {
	return &Consumer{reader: reader, topic: topic, logger: log, backoff: 10 * time.Millisecond}
}

// Start processes messages one at a time until ctx is cancelled. Offsets are
// committed only after the handler succeeds; a failing message is retried
// after a pause.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	c.logger.LogKafka("CONSUME", c.topic, "consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch from %s: %w", c.topic, err)
		}

		for {
			err = h(ctx, msg)
			if err == nil || errors.Is(err, ErrPoisonMessage) {
				break
			}
			c.logger.Error("KAFKA", fmt.Sprintf("Handler failed for %s@%d: %v", c.topic, msg.Offset, err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
		}
		if err != nil {
			c.logger.Warn("KAFKA", fmt.Sprintf("Skipping message %s@%d: %v", c.topic, msg.Offset, err))
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("KAFKA", fmt.Sprintf("Commit failed for %s@%d: %v", c.topic, msg.Offset, err))
		}
	}
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// IngestFunc stores one ingested order and reports whether it was new.
type IngestFunc func(ctx context.Context, order models.IngestedOrder) (bool, error)

// IngestionHandler decodes order snapshots and hands them to ingest.
func IngestionHandler(ingest IngestFunc) Handler {
	return func(ctx context.Context, m kafka.Message) error {
		order, err := DecodeIngestedOrder(m.Value)
		if err != nil {
			return err
		}
		_, err = ingest(ctx, order)
		return err
	}
}

// DecodeIngestedOrder accepts an envelope or a bare order snapshot.
func DecodeIngestedOrder(value []byte) (models.IngestedOrder, error) {
	var env models.Envelope
	if err := json.Unmarshal(value, &env); err == nil && len(env.Payload) > 0 {
		value = env.Payload
	}

	var order models.IngestedOrder
	if err := json.Unmarshal(value, &order); err != nil {
		return models.IngestedOrder{}, fmt.Errorf("%w: %v", ErrPoisonMessage, err)
	}
	if order.ShopifyOrderID == "" || order.MerchantID == "" {
		return models.IngestedOrder{}, fmt.Errorf("%w: missing shopifyOrderId or merchantId", ErrPoisonMessage)
	}
	return order, nil
}
