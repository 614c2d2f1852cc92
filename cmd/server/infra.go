package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/twmb/franz-go/pkg/kgo"

	"residents/internal/directory/events"
	directorymetrics "residents/internal/directory/metrics"
	"residents/internal/directory/outbox"
	"residents/internal/directory/service"
	"residents/internal/directory/store"
	"residents/internal/platform/config"
	"residents/internal/platform/kafka"
	"residents/internal/platform/postgres"
	redisclient "residents/internal/platform/redis"
	"residents/pkg/platform/httputil"
)

// infra holds the backend and sink selected by configuration.
type infra struct {
	residents   service.Store
	tx          service.StoreTx
	publisher   service.Publisher
	committed   events.Multi
	broadcaster *events.Broadcaster
	relay       *outbox.Worker
	db          *sql.DB

	checks  map[string]func(context.Context) error
	closers []func()
}

func openInfra(ctx context.Context, cfg config.Server, log *slog.Logger, m *directorymetrics.Metrics) (*infra, error) {
	in := &infra{checks: make(map[string]func(context.Context) error)}
	if err := in.openBackend(ctx, cfg); err != nil {
		in.Close()
		return nil, err
	}
	if err := in.openSink(ctx, cfg, log, m); err != nil {
		in.Close()
		return nil, err
	}
	return in, nil
}

func (in *infra) openBackend(ctx context.Context, cfg config.Server) error {
	switch cfg.Backend {
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		in.closers = append(in.closers, func() { _ = db.Close() })
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		in.db = db
		in.residents = store.NewPostgres(db)
		in.tx = store.NewPostgresTx(db)
		in.checks["postgres"] = db.PingContext
	case config.BackendRedis:
		client, err := redisclient.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		in.closers = append(in.closers, func() { _ = client.Close() })
		residents := store.NewRedis(client.Client, store.WithKeyPrefix(cfg.Redis.KeyPrefix))
		in.residents = residents
		in.tx = store.NewRedisTx(residents)
		in.checks["redis"] = client.Health
	default:
		residents := store.NewInMemory()
		in.residents = residents
		in.tx = store.NewMemoryTx(residents)
	}
	return nil
}

func (in *infra) openSink(ctx context.Context, cfg config.Server, log *slog.Logger, m *directorymetrics.Metrics) error {
	var sink events.Publisher
	switch cfg.EventSink {
	case config.SinkKafka:
		producer, err := in.openProducer(ctx, cfg.Kafka)
		if err != nil {
			return err
		}
		sink = events.NewCircuitPublisher(
			events.NewKafkaPublisher(producer, cfg.Kafka.Topic),
			cfg.Kafka.BreakerThreshold,
			cfg.Kafka.BreakerCooldown,
		)
	case config.SinkOutbox:
		if in.db == nil {
			return errors.New("outbox sink requires the postgres backend")
		}
		producer, err := in.openProducer(ctx, cfg.Kafka)
		if err != nil {
			return err
		}
		sink = events.NewOutboxPublisher()
		in.relay = outbox.NewWorker(outbox.NewPostgresStore(in.db), producer, cfg.Kafka.Topic,
			outbox.WithPollInterval(cfg.Outbox.PollInterval),
			outbox.WithBatchSize(cfg.Outbox.BatchSize),
			outbox.WithLogger(log),
			outbox.WithMetrics(m),
		)
	default:
		sink = events.NewLogPublisher(log)
	}

	in.publisher = sink
	// Fed after commit, so a subscriber reading back an event always finds
	// the record.
	in.broadcaster = events.NewBroadcaster(events.DefaultBufferSize)
	in.committed = events.Multi{in.broadcaster}
	if cfg.EventSink != config.SinkLog {
		in.committed = append(events.Multi{events.NewLogPublisher(log)}, in.committed...)
	}
	return nil
}

func (in *infra) openProducer(ctx context.Context, cfg config.KafkaConfig) (*kgo.Client, error) {
	producer, err := kafka.NewProducer(cfg)
	if err != nil {
		return nil, err
	}
	in.closers = append(in.closers, producer.Close)
	if err := kafka.EnsureTopic(ctx, producer, cfg); err != nil {
		return nil, err
	}
	in.checks["kafka"] = func(ctx context.Context) error { return kafka.Health(ctx, producer) }
	return producer, nil
}

func (in *infra) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{}
	healthy := true
	for name, check := range in.checks {
		if err := check(r.Context()); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, code, map[string]any{"healthy": healthy, "checks": status})
}

// Close releases resources in reverse order of opening.
func (in *infra) Close() {
	for i := len(in.closers) - 1; i >= 0; i-- {
		in.closers[i]()
	}
}
