package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"seller-portal/internal/logger"
	"seller-portal/internal/models"
)

// ProducerName identifies this service in event envelopes.
const ProducerName = "seller-portal"

// MessageWriter is the part of kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer MessageWriter
	Topic  string
	Logger *logger.Logger
}

// NewProducer writes to topic, partitioning by message key so all events
// of one order stay ordered.
func NewProducer(brokers []string, topic string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}
	return &Producer{Writer: writer, Topic: topic, Logger: log}
}

// Publish writes one keyed message.
func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	err := p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("write to %s: %w", p.Topic, err)
	}
	return nil
}

// PublishWorkflowEvent wraps payload in an envelope keyed by order id.
func (p *Producer) PublishWorkflowEvent(ctx context.Context, eventType string, payload models.WorkflowEventPayload) error {
	env, err := models.NewEnvelope(eventType, ProducerName, payload.OrderID, time.Now(), payload)
	if err != nil {
		return fmt.Errorf("build %s envelope: %w", eventType, err)
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", eventType, err)
	}

	if err := p.Publish(ctx, payload.OrderID, value); err != nil {
		return err
	}
	p.Logger.LogKafka("PUBLISH", p.Topic, fmt.Sprintf("%s order=%s event=%s", eventType, payload.OrderID, env.EventID))
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// NopPublisher drops events. Used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishWorkflowEvent(ctx context.Context, eventType string, payload models.WorkflowEventPayload) error {
	return nil
}
