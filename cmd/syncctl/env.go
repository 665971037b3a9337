package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/cornjacket/marketplace-sync/internal/services/admin"
	"github.com/cornjacket/marketplace-sync/internal/services/pilot"
	"github.com/cornjacket/marketplace-sync/internal/services/statussync"
	"github.com/cornjacket/marketplace-sync/internal/services/statussync/worker"
	"github.com/cornjacket/marketplace-sync/internal/shared/config"
	"github.com/cornjacket/marketplace-sync/internal/shared/infra/postgres"
	"github.com/cornjacket/marketplace-sync/internal/shared/providers"
)

// env is the wiring shared by the database-backed commands.
type env struct {
	cfg     *config.Config
	pg      *postgres.Client
	service *admin.Service
	closers []func()
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if os.Getenv("MKT_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openEnv connects to the database and builds the admin service the HTTP API
// uses, so CLI and API share validation and tenant scoping. Outbound calls
// from `process` use an in-process limiter and no bus notifications.
func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := newLogger()

	pg, err := postgres.NewClient(ctx, cfg.DatabaseURL, cfg.DBConnectTimeout, logger)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, pg: pg, closers: []func(){pg.Close}}

	reportingDB, err := pilot.OpenDB(cfg.ReportingDatabaseURL)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.closers = append(e.closers, func() { _ = reportingDB.Close() })

	pool := pg.Pool()
	dispatcher := providers.NewDispatcher(
		providers.NewDefaultRegistry(cfg.Endpoints()),
		&http.Client{},
		providers.NewLocalLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		nil,
		providers.DispatcherConfig{
			Timeout:            cfg.OutboundTimeout,
			BreakerFailures:    cfg.BreakerFailures,
			BreakerOpenTimeout: cfg.BreakerOpenTimeout,
		},
		logger,
	)
	processor := worker.NewProcessor(
		postgres.NewStatusSyncJobRepo(pool, logger),
		postgres.NewIntegrationRepo(pool, logger),
		dispatcher,
		nil,
		nil,
		nil,
		worker.ProcessorConfig{
			BatchSize:     cfg.ProcessorBatchSize,
			Concurrency:   cfg.ProcessorConcurrency,
			LeaseDuration: cfg.LeaseDuration,
			Backoff:       worker.BackoffPolicy{Base: cfg.BackoffBase, Max: cfg.BackoffMax, Jitter: cfg.BackoffJitter},
		},
		logger,
	)

	e.service = admin.NewService(admin.Deps{
		Integrations: postgres.NewIntegrationRepo(pool, logger),
		Mappings:     postgres.NewMenuMappingRepo(pool, logger),
		Queue: statussync.NewQueue(postgres.NewStatusSyncJobRepo(pool, logger),
			statussync.QueueConfig{MaxAttempts: cfg.MaxAttempts}, logger),
		Processor: processor,
		Reporter: pilot.NewReporter(pilot.NewSQLStore(reportingDB), pilot.Thresholds{
			MinOrders:      cfg.PilotMinOrders,
			MinSuccessRate: cfg.PilotMinSuccessRate,
		}, logger),
		Orders: postgres.NewUnitOfWork(pool, cfg.MaxAttempts, logger),
	}, logger)
	return e, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
