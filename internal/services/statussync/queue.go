// Package statussync owns the durable queue of outbound status pushes:
// enqueueing on order transitions, listing for operators and manual retry.
// Claiming and delivery live in the worker subpackage.
package statussync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofrs/uuid/v5"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/clock"
	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// QueueConfig holds queue defaults.
type QueueConfig struct {
	MaxAttempts int
}

// Queue enqueues and manages status sync jobs.
type Queue struct {
	store  JobStore
	config QueueConfig
	logger *slog.Logger
}

// NewQueue creates a queue over store.
func NewQueue(store JobStore, config QueueConfig, logger *slog.Logger) *Queue {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 8
	}
	return &Queue{
		store:  store,
		config: config,
		logger: logger.With("component", "status-sync-queue"),
	}
}

// EnqueueRequest describes one status change to push to one marketplace.
type EnqueueRequest struct {
	RestaurantID    string
	OrderID         string
	Provider        marketplace.Provider
	ExternalOrderID string
	ExternalStoreID string
	TargetStatus    marketplace.OrderStatus
	TransitionKey   string
}

// Enqueue inserts a QUEUED job due now. Re-enqueueing the same transition for
// the same provider is a no-op and returns (nil, nil).
func (q *Queue) Enqueue(ctx context.Context, req EnqueueRequest) (*marketplace.StatusSyncJob, error) {
	job, err := marketplace.NewStatusSyncJob(marketplace.NewJobParams{
		RestaurantID:    req.RestaurantID,
		OrderID:         req.OrderID,
		Provider:        req.Provider,
		ExternalOrderID: req.ExternalOrderID,
		ExternalStoreID: req.ExternalStoreID,
		TargetStatus:    req.TargetStatus,
		TransitionKey:   req.TransitionKey,
		MaxAttempts:     q.config.MaxAttempts,
	}, clock.Now())
	if err != nil {
		return nil, fmt.Errorf("invalid status sync job: %w", err)
	}

	inserted, err := q.store.Insert(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue status sync job: %w", err)
	}
	if !inserted {
		q.logger.Debug("status sync job already enqueued",
			"order_id", req.OrderID,
			"provider", req.Provider,
			"transition_key", job.TransitionKey,
		)
		return nil, nil
	}

	q.logger.Info("status sync job enqueued",
		"job_id", job.ID,
		"order_id", job.OrderID,
		"provider", job.Provider,
		"target_status", job.TargetStatus,
	)
	return job, nil
}

// List returns a restaurant's jobs, newest first.
func (q *Queue) List(ctx context.Context, filter JobFilter) ([]marketplace.StatusSyncJob, error) {
	if filter.RestaurantID == "" {
		return nil, fmt.Errorf("restaurant id is required")
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultListLimit
	case filter.Limit > maxListLimit:
		filter.Limit = maxListLimit
	}
	return q.store.List(ctx, filter)
}

// Retry puts a DEAD_LETTER or FAILED job back in the queue, due now, with
// its attempt count unchanged.
func (q *Queue) Retry(ctx context.Context, restaurantID string, jobID uuid.UUID) (*marketplace.StatusSyncJob, error) {
	job, err := q.store.Requeue(ctx, restaurantID, jobID, clock.Now())
	if err != nil {
		if !errors.Is(err, marketplace.ErrNotFound) && !errors.Is(err, marketplace.ErrJobNotRetryable) {
			q.logger.Error("failed to retry job", "job_id", jobID, "error", err)
		}
		return nil, err
	}

	q.logger.Info("status sync job manually retried",
		"job_id", job.ID,
		"order_id", job.OrderID,
		"provider", job.Provider,
		"attempt_count", job.AttemptCount,
	)
	return job, nil
}
