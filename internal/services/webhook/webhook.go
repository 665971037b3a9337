// Package webhook receives signed marketplace order webhooks, verifies them
// against the tenant's signing secret and applies them to the order ledger.
package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cornjacket/marketplace-sync/internal/shared/infra/postgres"
	"github.com/cornjacket/marketplace-sync/internal/shared/metrics"
)

// Config holds configuration for the webhook service.
type Config struct {
	Port int
	// MaxAttempts is stamped on status sync jobs enqueued by webhook transitions.
	MaxAttempts int
}

// RunningService represents a started webhook service.
type RunningService struct {
	// Shutdown stops the HTTP server gracefully.
	Shutdown func(ctx context.Context) error
}

// Start starts the webhook HTTP server.
func Start(ctx context.Context, cfg Config, pool *pgxpool.Pool, adapters AdapterRegistry, notifier OrderNotifier, m *metrics.Metrics, logger *slog.Logger, errorCh chan<- error) (*RunningService, error) {
	logger = logger.With("service", "webhook")

	integrations := postgres.NewIntegrationRepo(pool, logger)
	uow := postgres.NewUnitOfWork(pool, cfg.MaxAttempts, logger)

	svc := NewService(integrations, adapters, uow, notifier, m, logger)
	handler := NewHandler(svc, logger)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      m.InstrumentHandler("webhook", mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting webhook server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("webhook server error", "error", err)
			errorCh <- fmt.Errorf("webhook server failed: %w", err)
		}
	}()

	return &RunningService{
		Shutdown: func(shutdownCtx context.Context) error {
			logger.Info("shutting down webhook service")
			return server.Shutdown(shutdownCtx)
		},
	}, nil
}
