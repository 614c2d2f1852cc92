package e2e

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/cucumber/godog"
	"github.com/go-chi/chi/v5"

	"residents/internal/directory"
	"residents/internal/directory/events"
	"residents/internal/platform/middleware"
)

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			Strict:   true,
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

// initializeScenario gives every scenario its own empty directory.
func initializeScenario(ctx *godog.ScenarioContext) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, broadcaster, err := directory.NewInMemory(events.NewLogPublisher(logger), logger, nil)
	if err != nil {
		panic(err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.ContentTypeJSON)
	directory.NewHandler(svc, broadcaster, logger, nil).Register(r)
	srv := httptest.NewServer(r)

	tc := NewTestContext(srv.URL, srv.Client())
	RegisterSteps(ctx, tc)

	ctx.After(func(ctx context.Context, _ *godog.Scenario, err error) (context.Context, error) {
		srv.Close()
		return ctx, err
	})
}
