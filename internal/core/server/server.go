// Package server runs the HTTP listener of the remote cache.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/poi-tile-cache/internal/core/health"
	middleware "github.com/mohammed-shakir/poi-tile-cache/internal/core/middleware"
)

// Routes are the handlers mounted on the router. Nil handlers are skipped.
type Routes struct {
	WebSocket http.Handler
	Metrics   http.Handler
	Ready     map[string]health.Pinger
}

func NewRouter(logger *slog.Logger, routes Routes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(routes.Ready))
	if routes.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", routes.Metrics)
	}
	if routes.WebSocket != nil {
		r.Method(http.MethodGet, "/ws", routes.WebSocket)
		// clients may upgrade on any path
		r.Method(http.MethodGet, "/", routes.WebSocket)
	}
	return r
}

// Run serves handler on addr until ctx is done.
func Run(ctx context.Context, addr string, logger *slog.Logger, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("http listen: %w", err)
	}
}
