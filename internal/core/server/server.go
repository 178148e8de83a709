package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shiroinekotfs/DanesfieldApp/internal/api"
	"github.com/shiroinekotfs/DanesfieldApp/internal/core/config"
	"github.com/shiroinekotfs/DanesfieldApp/internal/core/health"
	middleware "github.com/shiroinekotfs/DanesfieldApp/internal/core/middleware"
)

// Deps carries the wired pieces the router mounts.
type Deps struct {
	API     *api.Handler
	Ready   health.ReadinessReporter
	Metrics http.Handler // nil leaves /metrics unmounted
}

// NewRouter assembles the full middleware chain and route table.
func NewRouter(logger *slog.Logger, d Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(d.Ready))
	if d.Metrics != nil {
		r.Get("/metrics", d.Metrics.ServeHTTP)
	}
	r.Mount("/api", d.API.Routes())
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, d Deps) error {
	r := NewRouter(logger, d)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
