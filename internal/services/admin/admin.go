// Package admin serves the restaurant-scoped management API: integrations,
// menu mappings, status sync jobs, pilot reporting and the POS status hook.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cornjacket/marketplace-sync/internal/services/statussync"
	"github.com/cornjacket/marketplace-sync/internal/shared/auth"
	"github.com/cornjacket/marketplace-sync/internal/shared/infra/postgres"
	"github.com/cornjacket/marketplace-sync/internal/shared/metrics"
)

// Config holds configuration for the admin service.
type Config struct {
	Port        int
	MaxAttempts int
	JWTSecret   string
}

// RunningService represents a started admin service.
type RunningService struct {
	// Shutdown stops the HTTP server gracefully.
	Shutdown func(ctx context.Context) error
}

// Start starts the admin HTTP server. The processor and reporter are shared
// with the rest of the process; everything else is wired from pool.
func Start(
	ctx context.Context,
	cfg Config,
	pool *pgxpool.Pool,
	processor JobProcessor,
	reporter PilotReporter,
	m *metrics.Metrics,
	metricsHandler http.Handler,
	logger *slog.Logger,
	errorCh chan<- error,
) (*RunningService, error) {
	logger = logger.With("service", "admin")

	svc := NewService(Deps{
		Integrations: postgres.NewIntegrationRepo(pool, logger),
		Mappings:     postgres.NewMenuMappingRepo(pool, logger),
		Queue: statussync.NewQueue(postgres.NewStatusSyncJobRepo(pool, logger),
			statussync.QueueConfig{MaxAttempts: cfg.MaxAttempts}, logger),
		Processor: processor,
		Reporter:  reporter,
		Orders:    postgres.NewUnitOfWork(pool, cfg.MaxAttempts, logger),
	}, logger)
	handler := NewHandler(svc, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      m.InstrumentHandler("admin", handler.Routes(auth.NewValidator(cfg.JWTSecret), metricsHandler)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting admin server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin server error", "error", err)
			errorCh <- fmt.Errorf("admin server failed: %w", err)
		}
	}()

	return &RunningService{
		Shutdown: func(shutdownCtx context.Context) error {
			logger.Info("shutting down admin service")
			return server.Shutdown(shutdownCtx)
		},
	}, nil
}
