package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"residents/internal/directory/events"
	directorymetrics "residents/internal/directory/metrics"
)

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 100
)

// Store is the outbox persistence used by the relay.
type Store interface {
	FetchPending(ctx context.Context, limit int) ([]Entry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Worker relays outbox entries to Kafka in commit order. A single worker
// should run per outbox table; concurrent relays would interleave batches.
type Worker struct {
	store     Store
	producer  events.Producer
	topic     string
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *directorymetrics.Metrics
}

type Option func(*Worker)

func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithMetrics(m *directorymetrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// NewWorker creates a relay from store to topic.
func NewWorker(store Store, producer events.Producer, topic string, opts ...Option) *Worker {
	w := &Worker{
		store:     store,
		producer:  producer,
		topic:     topic,
		interval:  defaultPollInterval,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run relays until ctx is cancelled. Relay errors are logged and retried on
// the next tick.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.Drain(ctx); err != nil && ctx.Err() == nil && w.logger != nil {
			w.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Drain relays pending entries batch by batch until none remain. It stops at
// the first entry that fails to publish so later entries never overtake it;
// entries published before the failure are still acknowledged.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	relayed := 0
	for {
		entries, err := w.store.FetchPending(ctx, w.batchSize)
		if err != nil {
			return relayed, err
		}
		if len(entries) == 0 {
			return relayed, nil
		}

		published := make([]uuid.UUID, 0, len(entries))
		var produceErr error
		for _, e := range entries {
			if err := w.producer.ProduceSync(ctx, w.record(e)).FirstErr(); err != nil {
				w.metrics.IncrementOutboxFailure()
				produceErr = fmt.Errorf("relay outbox entry %s: %w", e.ID, err)
				break
			}
			published = append(published, e.ID)
			w.metrics.IncrementOutboxPublished()
		}

		if err := w.store.MarkPublished(ctx, published, time.Now()); err != nil {
			return relayed, err
		}
		relayed += len(published)
		if produceErr != nil {
			return relayed, produceErr
		}
		if len(entries) < w.batchSize {
			return relayed, nil
		}
	}
}

func (w *Worker) record(e Entry) *kgo.Record {
	return &kgo.Record{
		Topic: w.topic,
		Key:   []byte(e.AggregateID),
		Value: e.Payload,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(e.EventType)},
			{Key: "outbox_id", Value: []byte(e.ID.String())},
		},
	}
}
