// Package history rebuilds the resident directory from the PersonAdded
// stream. It is the downstream consumer of the notifications and keeps the
// same two views as the source: every event appends to the log and replaces
// the index entry for its name.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	directorymetrics "residents/internal/directory/metrics"
	"residents/internal/directory/models"
	"residents/internal/directory/store"
	"residents/internal/platform/kafka"
)

// Projector applies PersonAdded messages to a directory store. Redelivered
// events are recognised by event ID and applied once.
type Projector struct {
	store   *store.InMemory
	logger  *slog.Logger
	metrics *directorymetrics.Metrics

	mu   sync.Mutex
	seen map[uuid.UUID]struct{}
}

type Option func(*Projector)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Projector) {
		p.logger = logger
	}
}

func WithMetrics(m *directorymetrics.Metrics) Option {
	return func(p *Projector) {
		p.metrics = m
	}
}

// NewProjector projects into residents.
func NewProjector(residents *store.InMemory, opts ...Option) *Projector {
	p := &Projector{store: residents, seen: make(map[uuid.UUID]struct{})}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle implements kafka.Handler.
func (p *Projector) Handle(ctx context.Context, msg *kafka.Message) error {
	event, err := models.DecodePersonAdded(msg.Value)
	if err != nil {
		return fmt.Errorf("partition %d offset %d: %w", msg.Partition, msg.Offset, err)
	}
	return p.Apply(ctx, event)
}

// Apply records one event.
func (p *Projector) Apply(ctx context.Context, event models.PersonAdded) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, dup := p.seen[event.EventID]; dup {
		return nil
	}
	if err := p.store.Append(ctx, event.Person()); err != nil {
		return err
	}
	p.seen[event.EventID] = struct{}{}
	p.metrics.IncrementProjected()
	if p.logger != nil {
		p.logger.DebugContext(ctx, "projected person added",
			"event_id", event.EventID.String(),
			"request_id", event.RequestID,
		)
	}
	return nil
}
