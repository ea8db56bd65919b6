package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"plantshop/internal/logger"

	"github.com/segmentio/kafka-go"
)

// Publisher queues verified webhook events to Kafka, keyed by item so
// deliveries for one item land on one partition in order.
type Publisher struct {
	writer *kafka.Writer
	logger *logger.Logger
}

func NewPublisher(brokers []string, topic string, log *logger.Logger) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
		},
		logger: log,
	}
}

func (p *Publisher) Publish(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	key := e.ItemID()
	if key == "" {
		key = e.SaleID()
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value}); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	p.logger.Debug("Queued %s event for %q", e.Event, key)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
