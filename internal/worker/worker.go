package worker

import (
	"context"
	"errors"
	"time"

	"plantshop/internal/events"
	"plantshop/internal/logger"

	"github.com/segmentio/kafka-go"
)

const (
	maxAttempts  = 3
	retryBackoff = 2 * time.Second
)

// Source is the consumer side of the webhook queue.
type Source interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Dispatcher applies one webhook event.
type Dispatcher interface {
	Dispatch(ctx context.Context, e events.Event) error
}

// NewKafkaSource joins the worker consumer group on topic.
func NewKafkaSource(brokers []string, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        "plantshop-worker",
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
	})
}

// Worker drains queued webhook events into the dispatcher. Messages are
// committed once handled, including ones that could not be parsed or kept
// failing, so a single bad event cannot stall its partition.
type Worker struct {
	source     Source
	dispatcher Dispatcher
	logger     *logger.Logger
	backoff    time.Duration
}

func New(source Source, dispatcher Dispatcher, log *logger.Logger) *Worker {
	return &Worker{
		source:     source,
		dispatcher: dispatcher,
		logger:     log.WithPrefix("worker"),
		backoff:    retryBackoff,
	}
}

// Run consumes until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("Worker started, listening for events...")

	for {
		message, err := w.source.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("Failed to read message: %v", err)
			if !sleep(ctx, w.backoff) {
				return
			}
			continue
		}

		w.logger.Debug("Received message: %s", string(message.Value))
		w.handle(ctx, message)

		if err := w.source.CommitMessages(ctx, message); err != nil && ctx.Err() == nil {
			w.logger.Error("Failed to commit offset %d: %v", message.Offset, err)
		}
	}
}

func (w *Worker) handle(ctx context.Context, message kafka.Message) {
	event, err := events.Parse(message.Value)
	if err != nil {
		w.logger.Error("Failed to parse event at offset %d: %v", message.Offset, err)
		return
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = w.dispatcher.Dispatch(ctx, event)
		if err == nil {
			w.logger.Debug("Event processed successfully")
			return
		}
		w.logger.Warn("Failed to process %s (attempt %d/%d): %v", event.Event, attempt, maxAttempts, err)
		if attempt < maxAttempts && !sleep(ctx, w.backoff*time.Duration(attempt)) {
			return
		}
	}
	w.logger.Error("Giving up on %s for item %q: %v", event.Event, event.ItemID(), err)
}

func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	if err := w.source.Close(); err != nil {
		w.logger.Error("Failed to close reader: %v", err)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
