package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,StoreTx,Publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	directorymetrics "residents/internal/directory/metrics"
	"residents/internal/directory/models"
	"residents/internal/directory/store"
	dErrors "residents/pkg/domain-errors"
	"residents/pkg/requestcontext"
)

const tracerName = "residents/internal/directory/service"

// Store reads both views of the directory.
type Store interface {
	FindLatest(ctx context.Context, name string) (*models.Person, error)
	List(ctx context.Context) ([]*models.Person, error)
	CountLivesHere(ctx context.Context) (int, error)
}

// StoreTx applies adds one at a time. The log append, the index write and the
// publish inside fn commit or roll back together.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, w store.Writer) error) error
}

// Publisher receives the PersonAdded notification for each add.
type Publisher interface {
	PublishPersonAdded(ctx context.Context, event models.PersonAdded) error
}

// Service orchestrates the resident directory.
type Service struct {
	residents Store
	tx        StoreTx
	publisher Publisher
	committed []Publisher
	logger    *slog.Logger
	metrics   *directorymetrics.Metrics
	tracer    trace.Tracer

	// addMu keeps after-commit delivery in the order adds committed.
	addMu sync.Mutex
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *directorymetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracer overrides the tracer taken from the global OpenTelemetry provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithAfterCommit registers a publisher that sees each PersonAdded only once
// the add is visible to readers. Its errors are logged and never undo the add.
func WithAfterCommit(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.committed = append(s.committed, p)
		}
	}
}

// New constructs a Service.
func New(residents Store, tx StoreTx, publisher Publisher, opts ...Option) (*Service, error) {
	if residents == nil {
		return nil, errors.New("residents store is required")
	}
	if tx == nil {
		return nil, errors.New("store transaction runner is required")
	}
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	s := &Service{
		residents: residents,
		tx:        tx,
		publisher: publisher,
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AddNewPerson records a new resident. Names are not unique: repeating a name
// appends another record and makes it the one status lookups see. Exactly one
// PersonAdded is published per successful add; if publishing fails the add is
// rolled back.
func (s *Service) AddNewPerson(ctx context.Context, name string, age uint, status models.ResidencyStatus) (*models.Person, error) {
	start := time.Now()
	defer s.metrics.ObserveAdd(start)

	ctx, span := s.tracer.Start(ctx, "directory.AddNewPerson", trace.WithAttributes(
		attribute.String("resident.residency_status", status.String()),
	))
	defer span.End()

	if !status.IsValid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown residency status")
	}

	if len(s.committed) > 0 {
		s.addMu.Lock()
		defer s.addMu.Unlock()
	}

	person := models.NewPerson(name, age, status)
	var event models.PersonAdded
	err := s.tx.RunInTx(ctx, func(txCtx context.Context, w store.Writer) error {
		if err := w.Append(txCtx, person); err != nil {
			return wrapStoreErr(err, "failed to add resident")
		}
		event = models.NewPersonAdded(person, requestcontext.Now(txCtx), requestcontext.RequestID(txCtx))
		if err := s.publisher.PublishPersonAdded(txCtx, event); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to publish person added")
		}
		return nil
	})
	if err != nil {
		s.metrics.IncrementAddFailure()
		span.RecordError(err)
		span.SetStatus(codes.Error, "add failed")
		s.logError(ctx, "failed to add resident", err)
		return nil, wrapStoreErr(err, "failed to add resident")
	}

	s.metrics.IncrementAdded(status.String())
	for _, p := range s.committed {
		if err := p.PublishPersonAdded(ctx, event); err != nil {
			s.logError(ctx, "after-commit delivery failed", err)
		}
	}
	return person, nil
}

// GetResidencyStatus returns the fixed message for the latest record under
// name. A name that was never added yields MessageNotFound, not an error.
func (s *Service) GetResidencyStatus(ctx context.Context, name string) (string, error) {
	start := time.Now()
	defer s.metrics.ObserveLookup(start)

	ctx, span := s.tracer.Start(ctx, "directory.GetResidencyStatus")
	defer span.End()

	person, err := s.residents.FindLatest(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		s.metrics.IncrementLookup("not_found")
		return models.MessageNotFound, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return "", wrapStoreErr(err, "failed to look up resident")
	}
	s.metrics.IncrementLookup("found")
	return person.ResidencyStatus.Message(), nil
}

// CountResidents counts log records added as LivesHere. Every add counts, so
// a name added twice as LivesHere contributes two.
func (s *Service) CountResidents(ctx context.Context) (int, error) {
	start := time.Now()
	defer s.metrics.ObserveCount(start)

	ctx, span := s.tracer.Start(ctx, "directory.CountResidents")
	defer span.End()

	count, err := s.residents.CountLivesHere(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count failed")
		return 0, wrapStoreErr(err, "failed to count residents")
	}
	span.SetAttributes(attribute.Int("residents.count", count))
	return count, nil
}

// Residents returns the append log in insertion order.
func (s *Service) Residents(ctx context.Context) ([]*models.Person, error) {
	ctx, span := s.tracer.Start(ctx, "directory.Residents")
	defer span.End()

	people, err := s.residents.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, wrapStoreErr(err, "failed to list residents")
	}
	return people, nil
}

// Resident returns the latest record for name.
func (s *Service) Resident(ctx context.Context, name string) (*models.Person, error) {
	ctx, span := s.tracer.Start(ctx, "directory.Resident")
	defer span.End()

	person, err := s.residents.FindLatest(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "resident not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return nil, wrapStoreErr(err, "failed to load resident")
	}
	return person, nil
}

// wrapStoreErr keeps coded errors and marks everything else internal.
func wrapStoreErr(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func (s *Service) logError(ctx context.Context, msg string, err error) {
	if s.logger == nil {
		return
	}
	args := []any{"error", err}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	s.logger.ErrorContext(ctx, msg, args...)
}
