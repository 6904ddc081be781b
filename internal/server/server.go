// Package server exposes the satie pipeline over HTTP.
//
// Routes:
//
//	POST   /v1/validate            validate a score, return the normalized score
//	POST   /v1/layout              validate and lay out a score
//	GET    /v1/scores              list stored score ids
//	PUT    /v1/scores/{id}         store a score
//	GET    /v1/scores/{id}         fetch a stored score
//	DELETE /v1/scores/{id}         remove a stored score
//	GET    /v1/scores/{id}/layout  lay out a stored score
//	GET    /healthz                liveness
//	GET    /metrics                prometheus exposition
//
// Layout routes accept the query parameters merge, approximate and refresh,
// which override the server's default pipeline options for one request.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jocelyn-stericker/satie-sub004/pkg/pipeline"
	"github.com/jocelyn-stericker/satie-sub004/pkg/store"
)

const (
	// DefaultMaxBodyBytes caps request bodies.
	DefaultMaxBodyBytes = 8 << 20

	shutdownTimeout = 10 * time.Second
)

// Options configures a Server.
type Options struct {
	// Pipeline holds the defaults applied to every layout request.
	Pipeline pipeline.Options

	// MaxBodyBytes caps score uploads. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// Metrics serves /metrics. Nil means promhttp.Handler().
	Metrics http.Handler
}

// Server serves the HTTP API. It is safe for concurrent use.
type Server struct {
	runner *pipeline.Runner
	store  store.Store
	logger *log.Logger
	opts   Options
}

// New creates a server backed by runner and st.
func New(runner *pipeline.Runner, st store.Store, logger *log.Logger, opts Options) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.Metrics == nil {
		opts.Metrics = promhttp.Handler()
	}
	return &Server{runner: runner, store: st, logger: logger, opts: opts}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
