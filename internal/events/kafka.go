package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaProducer implements Producer using segmentio/kafka-go.
type KafkaProducer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaProducer creates a Kafka producer that writes lifecycle events to
// the given topic. Returns nil when brokers or topic are unset, which callers
// treat as "events disabled". Call Close when shutting down.
func NewKafkaProducer(brokers []string, topic string, logger *zap.Logger) *KafkaProducer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaProducer{writer: writer, logger: logger}
}

// Emit serializes the event as JSON and writes it, keyed by user id so one
// user's events stay ordered within a partition. A short timeout keeps slow
// Kafka from blocking request paths.
func (p *KafkaProducer) Emit(ctx context.Context, event Event) error {
	if p == nil || p.writer == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(event.UserID),
		Value: payload,
	})
	if err != nil && p.logger != nil {
		p.logger.Warn("kafka emit failed", zap.String("type", event.Type), zap.Error(err))
	}
	return err
}

// Close closes the Kafka writer. Safe to call multiple times.
func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
