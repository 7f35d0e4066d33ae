package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/bikeshop-proximity/internal/core/config"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/core/health"
	middleware "github.com/mohammed-shakir/bikeshop-proximity/internal/core/middleware"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/core/router"
)

// Routes builds the public handler tree.
func Routes(logger *slog.Logger, s router.Searcher, store health.ShopCounter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(store))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get(router.RouteShops, router.HandleShops(logger, s))
	r.Get(router.RouteSearch, router.HandleSearch(logger, s))
	return r
}

// sets up http and serves until ctx is done
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, s router.Searcher, store health.ShopCounter) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           Routes(logger, s, store),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
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
