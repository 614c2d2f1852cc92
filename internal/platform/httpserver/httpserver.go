package httpserver

import (
	"net/http"
	"time"
)

const (
	defaultReadHeaderTimeout = 5 * time.Second
	defaultIdleTimeout       = 60 * time.Second
)

// Option configures the server returned by New.
type Option func(*http.Server)

// WithOnShutdown registers fn to run when Shutdown starts. Long-lived
// responses such as event streams use it to return so the drain can finish;
// ordinary requests keep their context and complete normally.
func WithOnShutdown(fn func()) Option {
	return func(srv *http.Server) {
		if fn != nil {
			srv.RegisterOnShutdown(fn)
		}
	}
}

// New builds the HTTP server for a residents binary. Request contexts are
// derived from the connection, not the process, so a shutdown signal never
// cancels an add that is already in flight.
func New(addr string, handler http.Handler, opts ...Option) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		IdleTimeout:       defaultIdleTimeout,
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}
