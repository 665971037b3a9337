package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cornjacket/marketplace-sync/internal/client/syncevents"
	"github.com/cornjacket/marketplace-sync/internal/services/admin"
	"github.com/cornjacket/marketplace-sync/internal/services/pilot"
	"github.com/cornjacket/marketplace-sync/internal/services/statussync/worker"
	"github.com/cornjacket/marketplace-sync/internal/services/webhook"
	"github.com/cornjacket/marketplace-sync/internal/shared/config"
	"github.com/cornjacket/marketplace-sync/internal/shared/infra/postgres"
	"github.com/cornjacket/marketplace-sync/internal/shared/infra/redis"
	"github.com/cornjacket/marketplace-sync/internal/shared/infra/redpanda"
	"github.com/cornjacket/marketplace-sync/internal/shared/metrics"
	"github.com/cornjacket/marketplace-sync/internal/shared/providers"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("starting marketplace sync",
		"webhook_port", cfg.PortWebhook,
		"admin_port", cfg.PortAdmin,
		"processor_enabled", cfg.ProcessorEnabled,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := postgres.NewClient(ctx, cfg.DatabaseURL, cfg.DBConnectTimeout, logger)
	if err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer pg.Close()

	if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	reportingDB, err := pilot.OpenDB(cfg.ReportingDatabaseURL)
	if err != nil {
		slog.Error("failed to open reporting database", "error", err)
		os.Exit(1)
	}
	defer reportingDB.Close()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	// Sync notifications. Left as nil interfaces when no brokers are configured.
	var (
		orderNotifier   webhook.OrderNotifier
		outcomeNotifier worker.OutcomeNotifier
	)
	if len(cfg.RedpandaBrokers) > 0 {
		producer, err := redpanda.NewProducer(cfg.RedpandaBrokers, logger)
		if err != nil {
			slog.Error("failed to create Redpanda producer", "error", err)
			os.Exit(1)
		}
		defer producer.Close()

		events := syncevents.New(producer, logger)
		orderNotifier = events
		outcomeNotifier = events
	}

	// Outbound delivery
	var limiter providers.Limiter
	if cfg.RedisAddr != "" {
		rdb, err := redis.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			slog.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		limiter = redis.NewLimiter(rdb, cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
	} else {
		limiter = providers.NewLocalLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	adapters := providers.NewDefaultRegistry(cfg.Endpoints())
	dispatcher := providers.NewDispatcher(adapters, &http.Client{}, limiter, m, providers.DispatcherConfig{
		Timeout:            cfg.OutboundTimeout,
		BreakerFailures:    cfg.BreakerFailures,
		BreakerOpenTimeout: cfg.BreakerOpenTimeout,
	}, logger)

	// The LISTEN connection lives outside the pool for the life of the worker.
	var listenConn *pgx.Conn
	if cfg.ProcessorEnabled {
		listenConn, err = pgx.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to open LISTEN connection", "error", err)
			os.Exit(1)
		}
		defer listenConn.Close(context.Background())
	}

	processor := worker.NewProcessor(
		postgres.NewStatusSyncJobRepo(pg.Pool(), logger),
		postgres.NewIntegrationRepo(pg.Pool(), logger),
		dispatcher,
		outcomeNotifier,
		m,
		listenConn,
		worker.ProcessorConfig{
			BatchSize:     cfg.ProcessorBatchSize,
			Concurrency:   cfg.ProcessorConcurrency,
			PollInterval:  cfg.ProcessorPollInterval,
			LeaseDuration: cfg.LeaseDuration,
			Backoff: worker.BackoffPolicy{
				Base:   cfg.BackoffBase,
				Max:    cfg.BackoffMax,
				Jitter: cfg.BackoffJitter,
			},
		},
		logger,
	)

	reporter := pilot.NewReporter(pilot.NewSQLStore(reportingDB), pilot.Thresholds{
		MinOrders:      cfg.PilotMinOrders,
		MinSuccessRate: cfg.PilotMinSuccessRate,
	}, logger)

	errorCh := make(chan error, 3)

	// Start services
	if cfg.ProcessorEnabled {
		go func() {
			if err := processor.Start(ctx); err != nil {
				errorCh <- fmt.Errorf("status sync worker failed: %w", err)
			}
		}()
	}

	webhookSvc, err := webhook.Start(ctx, webhook.Config{
		Port:        cfg.PortWebhook,
		MaxAttempts: cfg.MaxAttempts,
	}, pg.Pool(), adapters, orderNotifier, m, logger, errorCh)
	if err != nil {
		slog.Error("failed to start webhook service", "error", err)
		os.Exit(1)
	}

	adminSvc, err := admin.Start(ctx, admin.Config{
		Port:        cfg.PortAdmin,
		MaxAttempts: cfg.MaxAttempts,
		JWTSecret:   cfg.JWTSecret,
	}, pg.Pool(), processor, reporter, m, metricsHandler, logger, errorCh)
	if err != nil {
		slog.Error("failed to start admin service", "error", err)
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		slog.Warn("MKT_JWT_SECRET is not set; every admin request will be rejected")
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	case err := <-errorCh:
		slog.Error("service failed", "error", err)
	case <-ctx.Done():
		slog.Info("context cancelled")
	}

	// Graceful shutdown (reverse order)
	slog.Info("shutting down services...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := adminSvc.Shutdown(shutdownCtx); err != nil {
		slog.Error("admin service shutdown error", "error", err)
	}
	if err := webhookSvc.Shutdown(shutdownCtx); err != nil {
		slog.Error("webhook service shutdown error", "error", err)
	}
	cancel()

	slog.Info("marketplace sync stopped")
}

// newLogger creates a structured logger based on configuration.
func newLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
