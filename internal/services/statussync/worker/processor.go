package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/sync/errgroup"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/clock"
	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
	"github.com/cornjacket/marketplace-sync/internal/shared/providers"
)

// NotifyChannel is the Postgres channel signalled when a job becomes due.
const NotifyChannel = "status_sync_jobs"

const maxLastErrorLen = 1000

// ProcessorConfig holds configuration for the status sync processor.
type ProcessorConfig struct {
	BatchSize     int
	Concurrency   int
	PollInterval  time.Duration
	LeaseDuration time.Duration
	Backoff       BackoffPolicy
}

// Result summarizes one ProcessDue pass.
type Result struct {
	Processed    int `json:"processed"`
	Succeeded    int `json:"succeeded"`
	Failed       int `json:"failed"`
	DeadLettered int `json:"deadLettered"`
	Requeued     int `json:"requeued"`
	Recovered    int `json:"recovered"`
}

type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeRequeued
	outcomeFailed
	outcomeDeadLettered
	outcomeErrored
)

func (o outcome) String() string {
	switch o {
	case outcomeSucceeded:
		return "succeeded"
	case outcomeRequeued:
		return "requeued"
	case outcomeFailed:
		return "failed"
	case outcomeDeadLettered:
		return "dead_lettered"
	default:
		return "error"
	}
}

func (r *Result) add(o outcome) {
	switch o {
	case outcomeSucceeded:
		r.Succeeded++
	case outcomeRequeued:
		r.Requeued++
	case outcomeFailed, outcomeErrored:
		r.Failed++
	case outcomeDeadLettered:
		r.DeadLettered++
	}
}

// Processor claims due status sync jobs and pushes them to marketplaces.
type Processor struct {
	jobs         JobClaimer
	integrations IntegrationReader
	sender       StatusSender
	notifier     OutcomeNotifier
	metrics      MetricsRecorder
	listenConn   *pgx.Conn
	config       ProcessorConfig
	logger       *slog.Logger
}

// NewProcessor creates a processor. notifier, metrics and listenConn may be
// nil; without listenConn the processor only polls.
func NewProcessor(
	jobs JobClaimer,
	integrations IntegrationReader,
	sender StatusSender,
	notifier OutcomeNotifier,
	metrics MetricsRecorder,
	listenConn *pgx.Conn,
	config ProcessorConfig,
	logger *slog.Logger,
) *Processor {
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.LeaseDuration <= 0 {
		config.LeaseDuration = time.Minute
	}
	return &Processor{
		jobs:         jobs,
		integrations: integrations,
		sender:       sender,
		notifier:     notifier,
		metrics:      metrics,
		listenConn:   listenConn,
		config:       config,
		logger:       logger.With("component", "status-sync-worker"),
	}
}

// Start runs the scheduler loop until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) error {
	p.logger.Info("starting status sync worker",
		"concurrency", p.config.Concurrency,
		"batch_size", p.config.BatchSize,
		"poll_interval", p.config.PollInterval,
		"lease", p.config.LeaseDuration,
	)

	notifyCh := make(chan *pgconn.Notification, 1)
	if p.listenConn != nil {
		if _, err := p.listenConn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
			return fmt.Errorf("failed to LISTEN on %s: %w", NotifyChannel, err)
		}
		go p.notificationListener(ctx, notifyCh)
	}

	timer := time.NewTimer(p.config.PollInterval)
	defer timer.Stop()

	p.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("status sync worker stopped")
			return nil

		case n := <-notifyCh:
			p.logger.Debug("received NOTIFY", "payload", n.Payload)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			p.drain(ctx)
			timer.Reset(p.config.PollInterval)

		case <-timer.C:
			p.logger.Debug("watchdog timer fired, polling jobs")
			p.drain(ctx)
			timer.Reset(p.config.PollInterval)
		}
	}
}

// drain keeps processing while batches come back full.
func (p *Processor) drain(ctx context.Context) {
	for ctx.Err() == nil {
		res, err := p.ProcessDue(ctx, p.config.BatchSize, "")
		if err != nil {
			p.logger.Error("status sync pass failed", "error", err)
			return
		}
		if res.Processed < p.config.BatchSize {
			return
		}
	}
}

// notificationListener forwards NOTIFY payloads to notifyCh.
func (p *Processor) notificationListener(ctx context.Context, notifyCh chan<- *pgconn.Notification) {
	for {
		n, err := p.listenConn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("error waiting for notification", "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		select {
		case notifyCh <- n:
		default:
			// A pass is already pending; it will pick this job up.
		}
	}
}

// ProcessDue recovers expired leases, claims up to limit due jobs and
// delivers them concurrently. A failing job never aborts the batch.
func (p *Processor) ProcessDue(ctx context.Context, limit int, restaurantID string) (Result, error) {
	var result Result
	if limit <= 0 {
		limit = p.config.BatchSize
	}
	now := clock.Now()

	recovery, err := p.jobs.RecoverExpired(ctx, now)
	if err != nil {
		p.logger.Error("failed to recover expired leases", "error", err)
	} else if recovery.Requeued+recovery.DeadLettered > 0 {
		result.Recovered = recovery.Requeued + recovery.DeadLettered
		p.logger.Warn("recovered jobs with expired leases",
			"requeued", recovery.Requeued,
			"dead_lettered", recovery.DeadLettered,
		)
	}

	jobs, err := p.jobs.ClaimDue(ctx, ClaimRequest{
		Now:          now,
		Limit:        limit,
		Lease:        p.config.LeaseDuration,
		RestaurantID: restaurantID,
	})
	if err != nil {
		return result, fmt.Errorf("failed to claim due jobs: %w", err)
	}
	if len(jobs) == 0 {
		return result, nil
	}
	p.logger.Debug("claimed status sync jobs", "count", len(jobs))

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(p.config.Concurrency)
	for i := range jobs {
		job := jobs[i]
		g.Go(func() error {
			o := p.runJob(ctx, job)
			mu.Lock()
			result.add(o)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	result.Processed = len(jobs)
	p.logger.Info("status sync pass complete",
		"processed", result.Processed,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"dead_lettered", result.DeadLettered,
		"requeued", result.Requeued,
	)
	return result, nil
}

// runJob isolates one job so a panic is recorded as a failed attempt.
func (p *Processor) runJob(ctx context.Context, job marketplace.StatusSyncJob) (o outcome) {
	logger := p.logger.With(
		"job_id", job.ID,
		"order_id", job.OrderID,
		"provider", job.Provider,
		"target_status", job.TargetStatus,
		"attempt", job.AttemptCount+1,
	)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while processing job", "panic", r)
			o = p.fail(ctx, logger, &job, fmt.Errorf("panic: %v", r))
		}
		if p.metrics != nil {
			p.metrics.RecordSyncJob(job.Provider, o.String())
		}
	}()
	return p.processJob(ctx, logger, &job)
}

func (p *Processor) processJob(ctx context.Context, logger *slog.Logger, job *marketplace.StatusSyncJob) outcome {
	superseded, err := p.jobs.HasNewerSuccess(ctx, job)
	if err != nil {
		return p.fail(ctx, logger, job, fmt.Errorf("superseded check: %w", err))
	}
	if superseded {
		logger.Info("newer status already delivered, skipping push")
		return p.complete(ctx, logger, job)
	}

	integration, err := p.integrations.Get(ctx, job.RestaurantID, job.Provider)
	switch {
	case errors.Is(err, marketplace.ErrNotFound):
		return p.fail(ctx, logger, job, marketplace.ErrIntegrationDisabled)
	case err != nil:
		return p.fail(ctx, logger, job, fmt.Errorf("integration lookup: %w", err))
	case !integration.Enabled:
		return p.fail(ctx, logger, job, marketplace.ErrIntegrationDisabled)
	}

	storeID := job.ExternalStoreID
	if storeID == "" {
		storeID = integration.ExternalStoreID
	}
	err = p.sender.Send(ctx, job.Provider, providers.StatusUpdate{
		JobID:           job.ID.String(),
		ExternalOrderID: job.ExternalOrderID,
		ExternalStoreID: storeID,
		Status:          job.TargetStatus,
	})
	if err != nil {
		return p.fail(ctx, logger, job, err)
	}
	return p.complete(ctx, logger, job)
}

func (p *Processor) complete(ctx context.Context, logger *slog.Logger, job *marketplace.StatusSyncJob) outcome {
	now := clock.Now()
	if err := p.jobs.Complete(ctx, job.ID, now); err != nil {
		// The lease will expire and the push is repeated; marketplaces dedupe on Idempotency-Key.
		logger.Error("failed to mark job succeeded", "error", err)
		return outcomeErrored
	}
	job.Status = marketplace.JobSuccess
	job.UpdatedAt = now
	logger.Info("status pushed to marketplace")
	p.notify(ctx, logger, job)
	return outcomeSucceeded
}

// fail records a failed attempt: permanent errors fail the job, transient
// errors requeue it with backoff until attempts run out.
func (p *Processor) fail(ctx context.Context, logger *slog.Logger, job *marketplace.StatusSyncJob, cause error) outcome {
	now := clock.Now()
	attempts := job.AttemptCount + 1
	f := Failure{
		AttemptCount:  attempts,
		LastError:     truncate(cause.Error(), maxLastErrorLen),
		NextAttemptAt: now,
		Now:           now,
	}

	var o outcome
	switch {
	case !marketplace.IsRetryable(cause):
		f.Status = marketplace.JobFailed
		o = outcomeFailed
	case job.Exhausted(attempts):
		f.Status = marketplace.JobDeadLetter
		o = outcomeDeadLettered
	default:
		f.Status = marketplace.JobQueued
		f.NextAttemptAt = now.Add(p.config.Backoff.Delay(attempts))
		o = outcomeRequeued
	}

	if err := p.jobs.Fail(ctx, job.ID, f); err != nil {
		logger.Error("failed to record job failure", "cause", cause, "error", err)
		return outcomeErrored
	}

	job.Status = f.Status
	job.AttemptCount = attempts
	job.LastError = f.LastError
	job.NextAttemptAt = f.NextAttemptAt
	job.UpdatedAt = now

	switch o {
	case outcomeRequeued:
		logger.Warn("status push failed, requeued",
			"error", cause,
			"next_attempt_at", f.NextAttemptAt,
		)
	case outcomeDeadLettered:
		logger.Error("status push dead-lettered", "error", cause, "attempts", attempts)
		p.notify(ctx, logger, job)
	case outcomeFailed:
		logger.Error("status push failed permanently", "error", cause)
		p.notify(ctx, logger, job)
	}
	return o
}

func (p *Processor) notify(ctx context.Context, logger *slog.Logger, job *marketplace.StatusSyncJob) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.JobFinished(ctx, job); err != nil {
		logger.Warn("failed to publish job outcome", "error", err)
	}
}

// truncate returns valid UTF-8 of at most n bytes. Marketplace error
// bodies may be in any encoding and last_error is a TEXT column.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
