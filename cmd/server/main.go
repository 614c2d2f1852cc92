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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"residents/internal/directory"
	directorymetrics "residents/internal/directory/metrics"
	"residents/internal/directory/service"
	"residents/internal/platform/config"
	"residents/internal/platform/httpserver"
	"residents/internal/platform/logger"
	"residents/internal/platform/metrics"
	"residents/internal/platform/middleware"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("residents server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.New(reg)
	dirMetrics := directorymetrics.New(reg)

	infra, err := openInfra(ctx, cfg, log, dirMetrics)
	if err != nil {
		return err
	}
	defer infra.Close()

	svc, err := directory.NewService(infra.residents, infra.tx, infra.publisher,
		service.WithLogger(log),
		service.WithMetrics(dirMetrics),
		service.WithAfterCommit(infra.committed),
	)
	if err != nil {
		return err
	}
	h := directory.NewHandler(svc, infra.broadcaster, log, dirMetrics)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.LatencyMiddleware(httpMetrics))
	r.Get("/healthz", infra.healthHandler)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	h.RegisterStream(r)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		r.Use(middleware.ContentTypeJSON)
		h.Register(r)
	})

	g, gctx := errgroup.WithContext(ctx)

	srv := httpserver.New(cfg.Addr, r, httpserver.WithOnShutdown(infra.broadcaster.Close))

	g.Go(func() error {
		log.Info("starting residents server",
			"addr", cfg.Addr,
			"backend", cfg.Backend,
			"event_sink", cfg.EventSink,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down residents server")
		return srv.Shutdown(shutdownCtx)
	})
	if infra.relay != nil {
		g.Go(func() error {
			log.Info("starting outbox relay", "topic", cfg.Kafka.Topic)
			return infra.relay.Run(gctx)
		})
	}

	return g.Wait()
}
