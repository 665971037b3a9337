package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/cornjacket/marketplace-sync/internal/services/statussync"
	"github.com/cornjacket/marketplace-sync/internal/services/statussync/worker"
	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// StatusSyncJobRepo stores status sync jobs. It serves both the queue
// (statussync.JobStore) and the processor (worker.JobClaimer).
type StatusSyncJobRepo struct {
	db     Querier
	logger *slog.Logger
}

var (
	_ statussync.JobStore = (*StatusSyncJobRepo)(nil)
	_ worker.JobClaimer   = (*StatusSyncJobRepo)(nil)
)

// NewStatusSyncJobRepo creates a new StatusSyncJobRepo.
func NewStatusSyncJobRepo(db Querier, logger *slog.Logger) *StatusSyncJobRepo {
	return &StatusSyncJobRepo{
		db:     db,
		logger: logger.With("repository", "status_sync_jobs"),
	}
}

const jobColumns = `id, restaurant_id, order_id, provider, external_order_id, external_store_id,
	target_status, transition_key, status, attempt_count, max_attempts, next_attempt_at,
	lease_expires_at, last_error, created_at, updated_at`

func scanJob(row pgx.Row) (*marketplace.StatusSyncJob, error) {
	var j marketplace.StatusSyncJob
	err := row.Scan(&j.ID, &j.RestaurantID, &j.OrderID, &j.Provider, &j.ExternalOrderID, &j.ExternalStoreID,
		&j.TargetStatus, &j.TransitionKey, &j.Status, &j.AttemptCount, &j.MaxAttempts, &j.NextAttemptAt,
		&j.LeaseExpiresAt, &j.LastError, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func collectJobs(rows pgx.Rows) ([]marketplace.StatusSyncJob, error) {
	defer rows.Close()
	var out []marketplace.StatusSyncJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		out = append(out, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}
	return out, nil
}

// Insert stores job; an existing (provider, order, transition key) is left untouched.
func (r *StatusSyncJobRepo) Insert(ctx context.Context, job *marketplace.StatusSyncJob) (bool, error) {
	query := `
		INSERT INTO status_sync_jobs (
			id, restaurant_id, order_id, provider, external_order_id, external_store_id,
			target_status, transition_key, status, attempt_count, max_attempts, next_attempt_at,
			last_error, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (provider, order_id, transition_key) DO NOTHING`

	tag, err := r.db.Exec(ctx, query,
		job.ID, job.RestaurantID, job.OrderID, job.Provider, job.ExternalOrderID, job.ExternalStoreID,
		job.TargetStatus, job.TransitionKey, job.Status, job.AttemptCount, job.MaxAttempts, job.NextAttemptAt,
		job.LastError, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert status sync job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// List returns a restaurant's jobs newest first.
func (r *StatusSyncJobRepo) List(ctx context.Context, filter statussync.JobFilter) ([]marketplace.StatusSyncJob, error) {
	query := `SELECT ` + jobColumns + `
		FROM status_sync_jobs
		WHERE restaurant_id = $1
		  AND ($2 = '' OR status = $2)
		  AND ($3 = '' OR order_id = $3)
		ORDER BY seq DESC
		LIMIT $4`

	rows, err := r.db.Query(ctx, query, filter.RestaurantID, string(filter.Status), filter.OrderID, filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return collectJobs(rows)
}

// Get returns one job owned by restaurantID.
func (r *StatusSyncJobRepo) Get(ctx context.Context, restaurantID string, jobID uuid.UUID) (*marketplace.StatusSyncJob, error) {
	query := `SELECT ` + jobColumns + ` FROM status_sync_jobs WHERE restaurant_id = $1 AND id = $2`
	j, err := scanJob(r.db.QueryRow(ctx, query, restaurantID, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, marketplace.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

// Requeue moves a FAILED or DEAD_LETTER job back to QUEUED, due at now,
// keeping its attempt count.
func (r *StatusSyncJobRepo) Requeue(ctx context.Context, restaurantID string, jobID uuid.UUID, now time.Time) (*marketplace.StatusSyncJob, error) {
	query := `
		UPDATE status_sync_jobs
		SET status = 'QUEUED', next_attempt_at = $3, lease_expires_at = NULL, updated_at = $3,
		    max_attempts = GREATEST(max_attempts, attempt_count + 1)
		WHERE restaurant_id = $1 AND id = $2 AND status IN ('FAILED', 'DEAD_LETTER')
		RETURNING ` + jobColumns

	j, err := scanJob(r.db.QueryRow(ctx, query, restaurantID, jobID, now))
	if err == nil {
		return j, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to requeue job: %w", err)
	}

	if _, err := r.Get(ctx, restaurantID, jobID); err != nil {
		return nil, err
	}
	return nil, marketplace.ErrJobNotRetryable
}

// RecoverExpired treats an expired claim lease as a failed attempt.
func (r *StatusSyncJobRepo) RecoverExpired(ctx context.Context, now time.Time) (worker.Recovery, error) {
	query := `
		UPDATE status_sync_jobs
		SET attempt_count = attempt_count + 1,
		    status = CASE WHEN attempt_count + 1 >= max_attempts THEN 'DEAD_LETTER' ELSE 'QUEUED' END,
		    next_attempt_at = $1,
		    lease_expires_at = NULL,
		    last_error = 'claim lease expired before completion',
		    updated_at = $1
		WHERE status = 'IN_PROGRESS' AND lease_expires_at < $1
		RETURNING status`

	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return worker.Recovery{}, fmt.Errorf("failed to recover expired leases: %w", err)
	}
	defer rows.Close()

	var rec worker.Recovery
	for rows.Next() {
		var status marketplace.JobStatus
		if err := rows.Scan(&status); err != nil {
			return rec, fmt.Errorf("failed to scan recovered job: %w", err)
		}
		if status == marketplace.JobDeadLetter {
			rec.DeadLettered++
		} else {
			rec.Requeued++
		}
	}
	return rec, rows.Err()
}

// ClaimDue moves up to req.Limit due jobs to IN_PROGRESS under a lease.
// SKIP LOCKED lets concurrent processors claim disjoint sets; the NOT EXISTS
// guard keeps one order's jobs strictly sequential, and DISTINCT ON picks at
// most one job per order per pass.
func (r *StatusSyncJobRepo) ClaimDue(ctx context.Context, req worker.ClaimRequest) ([]marketplace.StatusSyncJob, error) {
	query := `
		WITH candidates AS (
			SELECT j.id, j.order_id, j.seq
			FROM status_sync_jobs j
			WHERE j.status = 'QUEUED'
			  AND j.next_attempt_at <= $1
			  AND ($3 = '' OR j.restaurant_id = $3)
			  AND NOT EXISTS (
				SELECT 1 FROM status_sync_jobs e
				WHERE e.order_id = j.order_id
				  AND e.seq < j.seq
				  AND e.status IN ('QUEUED', 'IN_PROGRESS')
			  )
			ORDER BY j.next_attempt_at, j.seq
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		), claimable AS (
			SELECT DISTINCT ON (order_id) id FROM candidates ORDER BY order_id, seq
		)
		UPDATE status_sync_jobs s
		SET status = 'IN_PROGRESS', lease_expires_at = $1 + $4::interval, updated_at = $1
		FROM claimable c
		WHERE s.id = c.id AND s.status = 'QUEUED'
		RETURNING s.id, s.restaurant_id, s.order_id, s.provider, s.external_order_id, s.external_store_id,
			s.target_status, s.transition_key, s.status, s.attempt_count, s.max_attempts, s.next_attempt_at,
			s.lease_expires_at, s.last_error, s.created_at, s.updated_at`

	rows, err := r.db.Query(ctx, query, req.Now, req.Limit, req.RestaurantID, req.Lease)
	if err != nil {
		return nil, fmt.Errorf("failed to claim jobs: %w", err)
	}
	return collectJobs(rows)
}

// Complete marks a claimed job SUCCESS.
func (r *StatusSyncJobRepo) Complete(ctx context.Context, jobID uuid.UUID, now time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE status_sync_jobs
		SET status = 'SUCCESS', lease_expires_at = NULL, last_error = '', updated_at = $2
		WHERE id = $1 AND status = 'IN_PROGRESS'`, jobID, now)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s is no longer claimed", jobID)
	}
	return nil
}

// Fail records a failed attempt on a claimed job.
func (r *StatusSyncJobRepo) Fail(ctx context.Context, jobID uuid.UUID, f worker.Failure) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE status_sync_jobs
		SET status = $2, attempt_count = $3, next_attempt_at = $4, last_error = $5,
		    lease_expires_at = NULL, updated_at = $6
		WHERE id = $1 AND status = 'IN_PROGRESS'`,
		jobID, f.Status, f.AttemptCount, f.NextAttemptAt, f.LastError, f.Now)
	if err != nil {
		return fmt.Errorf("failed to record job failure: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s is no longer claimed", jobID)
	}
	return nil
}

// HasNewerSuccess reports whether a later job for the same order and
// provider already reached SUCCESS.
func (r *StatusSyncJobRepo) HasNewerSuccess(ctx context.Context, job *marketplace.StatusSyncJob) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM status_sync_jobs n
			WHERE n.order_id = $1 AND n.provider = $2 AND n.status = 'SUCCESS'
			  AND n.seq > (SELECT seq FROM status_sync_jobs WHERE id = $3)
		)`, job.OrderID, job.Provider, job.ID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for newer success: %w", err)
	}
	return exists, nil
}
