package translator

import (
	"context"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// EventLedger is the webhook idempotency ledger.
type EventLedger interface {
	// RecordIfNew inserts (provider, eventID) and reports whether it was new.
	RecordIfNew(ctx context.Context, provider marketplace.Provider, eventID, restaurantID string) (bool, error)
}

// LinkStore maps marketplace orders to internal orders.
type LinkStore interface {
	Find(ctx context.Context, provider marketplace.Provider, externalOrderID string) (*marketplace.OrderLink, error)
	InsertIfAbsent(ctx context.Context, link *marketplace.OrderLink) (bool, error)
}

// MappingResolver resolves marketplace item ids to internal menu items.
type MappingResolver interface {
	Resolve(ctx context.Context, restaurantID string, provider marketplace.Provider, externalItemIDs []string) (map[string]marketplace.MenuItemMapping, error)
}

// OrderLedger is the narrow view of the POS order ledger.
type OrderLedger interface {
	Create(ctx context.Context, draft *marketplace.OrderDraft) error
	// Lock reads the order and holds it until the unit of work ends.
	Lock(ctx context.Context, orderID string) (*marketplace.OrderSnapshot, error)
	// Transition changes the status and enqueues pushes to other marketplaces.
	Transition(ctx context.Context, orderID string, to marketplace.OrderStatus, origin marketplace.Origin) ([]*marketplace.StatusSyncJob, error)
}

// Repositories are the stores bound to one unit of work.
type Repositories struct {
	Events   EventLedger
	Links    LinkStore
	Mappings MappingResolver
	Orders   OrderLedger
}

// UnitOfWork runs fn in a single database transaction. An error from fn
// rolls back every write made through repos.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
