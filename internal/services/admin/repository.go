package admin

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/cornjacket/marketplace-sync/internal/services/pilot"
	"github.com/cornjacket/marketplace-sync/internal/services/statussync"
	"github.com/cornjacket/marketplace-sync/internal/services/statussync/worker"
	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// IntegrationStore persists marketplace integrations.
type IntegrationStore interface {
	List(ctx context.Context, restaurantID string) ([]marketplace.IntegrationConfig, error)
	Upsert(ctx context.Context, c *marketplace.IntegrationConfig) (*marketplace.IntegrationConfig, error)
	ClearSecret(ctx context.Context, restaurantID string, provider marketplace.Provider) error
}

// MappingStore persists menu item mappings.
type MappingStore interface {
	List(ctx context.Context, restaurantID string, provider marketplace.Provider) ([]marketplace.MenuItemMapping, error)
	Upsert(ctx context.Context, m *marketplace.MenuItemMapping) (*marketplace.MenuItemMapping, error)
	Delete(ctx context.Context, restaurantID string, id uuid.UUID) error
}

// JobQueue lists and retries status sync jobs.
type JobQueue interface {
	List(ctx context.Context, filter statussync.JobFilter) ([]marketplace.StatusSyncJob, error)
	Retry(ctx context.Context, restaurantID string, jobID uuid.UUID) (*marketplace.StatusSyncJob, error)
}

// JobProcessor runs one pass over due jobs.
type JobProcessor interface {
	ProcessDue(ctx context.Context, limit int, restaurantID string) (worker.Result, error)
}

// PilotReporter summarizes a rollout window.
type PilotReporter interface {
	Summary(ctx context.Context, restaurantID string, provider marketplace.Provider, windowHours int) (*pilot.Summary, error)
}

// OrderTransitioner applies a POS-originated status change to the order ledger.
type OrderTransitioner interface {
	TransitionOrder(ctx context.Context, restaurantID, orderID string, to marketplace.OrderStatus) (*marketplace.Transition, error)
}
