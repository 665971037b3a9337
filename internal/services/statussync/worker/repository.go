package worker

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
	"github.com/cornjacket/marketplace-sync/internal/shared/providers"
)

// ClaimRequest selects due jobs for one processing pass.
type ClaimRequest struct {
	Now   time.Time
	Limit int
	Lease time.Duration
	// RestaurantID limits the claim to one tenant; empty claims across tenants.
	RestaurantID string
}

// Failure is the state written back after a failed attempt.
type Failure struct {
	Status        marketplace.JobStatus
	AttemptCount  int
	NextAttemptAt time.Time
	LastError     string
	Now           time.Time
}

// Recovery counts jobs whose claim lease expired.
type Recovery struct {
	Requeued     int
	DeadLettered int
}

// JobClaimer is the processor's view of the job table.
type JobClaimer interface {
	// RecoverExpired counts an expired lease as a failed attempt.
	RecoverExpired(ctx context.Context, now time.Time) (Recovery, error)
	// ClaimDue atomically moves due jobs to IN_PROGRESS. At most one job per
	// order is claimed, and only when no earlier job of that order is pending.
	ClaimDue(ctx context.Context, req ClaimRequest) ([]marketplace.StatusSyncJob, error)
	Complete(ctx context.Context, jobID uuid.UUID, now time.Time) error
	Fail(ctx context.Context, jobID uuid.UUID, f Failure) error
	// HasNewerSuccess reports whether a later job for the same order and
	// provider already succeeded.
	HasNewerSuccess(ctx context.Context, job *marketplace.StatusSyncJob) (bool, error)
}

// IntegrationReader looks up the tenant's marketplace integration.
type IntegrationReader interface {
	Get(ctx context.Context, restaurantID string, provider marketplace.Provider) (*marketplace.IntegrationConfig, error)
}

// StatusSender pushes one status update to a marketplace.
type StatusSender interface {
	Send(ctx context.Context, provider marketplace.Provider, update providers.StatusUpdate) error
}

// OutcomeNotifier publishes terminal job outcomes.
type OutcomeNotifier interface {
	JobFinished(ctx context.Context, job *marketplace.StatusSyncJob) error
}

// MetricsRecorder counts job outcomes.
type MetricsRecorder interface {
	RecordSyncJob(provider marketplace.Provider, outcome string)
}
