package statussync

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// JobFilter narrows a job listing.
type JobFilter struct {
	RestaurantID string
	Status       marketplace.JobStatus
	OrderID      string
	Limit        int
}

// JobStore persists status sync jobs.
type JobStore interface {
	// Insert stores job unless the (provider, order, transition key) already
	// exists; it reports whether a row was written.
	Insert(ctx context.Context, job *marketplace.StatusSyncJob) (bool, error)
	List(ctx context.Context, filter JobFilter) ([]marketplace.StatusSyncJob, error)
	// Requeue moves a FAILED or DEAD_LETTER job to QUEUED due at now.
	// Returns marketplace.ErrNotFound or marketplace.ErrJobNotRetryable.
	Requeue(ctx context.Context, restaurantID string, jobID uuid.UUID, now time.Time) (*marketplace.StatusSyncJob, error)
}
