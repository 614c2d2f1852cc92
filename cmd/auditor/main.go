package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"residents/internal/directory"
	"residents/internal/directory/events"
	directorymetrics "residents/internal/directory/metrics"
	"residents/internal/directory/service"
	"residents/internal/directory/store"
	"residents/internal/history"
	"residents/internal/platform/config"
	"residents/internal/platform/httpserver"
	"residents/internal/platform/kafka"
	"residents/internal/platform/logger"
	"residents/internal/platform/middleware"
)

// main runs the history projector: it consumes the PersonAdded topic and
// serves a read-only copy of the directory rebuilt from it.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("residents auditor stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	if err := cfg.Kafka.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	dirMetrics := directorymetrics.New(reg)

	consumer, err := kafka.NewConsumer(cfg.Kafka)
	if err != nil {
		return err
	}
	defer consumer.Close()

	residents := store.NewInMemory()
	projector := history.NewProjector(residents,
		history.WithLogger(log),
		history.WithMetrics(dirMetrics),
	)

	// Reads only: the projection is written by the consumer, never over HTTP.
	svc, err := directory.NewService(residents, store.NewMemoryTx(residents), events.NewLogPublisher(log),
		service.WithLogger(log),
	)
	if err != nil {
		return err
	}
	h := directory.NewHandler(svc, nil, log, nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Get("/residents", h.HandleListResidents)
	r.Get("/residents/count", h.HandleCountResidents)
	r.Get("/residents/status", h.HandleResidencyStatus)
	r.Get("/residents/record", h.HandleGetResident)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	g, gctx := errgroup.WithContext(ctx)

	srv := httpserver.New(cfg.AuditorAddr, r)

	g.Go(func() error {
		log.Info("starting history projector",
			"topic", cfg.Kafka.Topic,
			"from", "earliest",
		)
		err := kafka.Consume(gctx, consumer, projector, log)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		log.Info("starting auditor server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
