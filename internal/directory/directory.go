package directory

import (
	"log/slog"

	"residents/internal/directory/events"
	"residents/internal/directory/handler"
	directorymetrics "residents/internal/directory/metrics"
	"residents/internal/directory/service"
	"residents/internal/directory/store"
)

// Service exposes the resident directory operations.
type Service = service.Service

// Handler wires HTTP endpoints to the directory service.
type Handler = handler.Handler

// NewService constructs the directory service with required dependencies.
func NewService(residents service.Store, tx service.StoreTx, publisher service.Publisher, opts ...service.Option) (*Service, error) {
	return service.New(residents, tx, publisher, opts...)
}

// NewHandler constructs the HTTP handler. events may be nil to disable the
// event stream.
func NewHandler(s *Service, events handler.Subscriber, logger *slog.Logger, m *directorymetrics.Metrics) *Handler {
	return handler.New(s, events, logger, m)
}

// NewInMemory assembles a process-local directory whose notifications go to
// publisher inside each add and to the returned broadcaster after it commits.
func NewInMemory(publisher service.Publisher, logger *slog.Logger, m *directorymetrics.Metrics) (*Service, *events.Broadcaster, error) {
	residents := store.NewInMemory()
	broadcaster := events.NewBroadcaster(events.DefaultBufferSize)
	svc, err := NewService(residents, store.NewMemoryTx(residents), publisher,
		service.WithLogger(logger),
		service.WithMetrics(m),
		service.WithAfterCommit(broadcaster),
	)
	if err != nil {
		return nil, nil, err
	}
	return svc, broadcaster, nil
}
