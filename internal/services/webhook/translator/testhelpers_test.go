package translator

import (
	"context"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// mockEventLedger implements EventLedger for testing.
type mockEventLedger struct {
	RecordIfNewFn func(ctx context.Context, provider marketplace.Provider, eventID, restaurantID string) (bool, error)
}

func (m *mockEventLedger) RecordIfNew(ctx context.Context, provider marketplace.Provider, eventID, restaurantID string) (bool, error) {
	return m.RecordIfNewFn(ctx, provider, eventID, restaurantID)
}

// mockLinkStore implements LinkStore for testing.
type mockLinkStore struct {
	FindFn           func(ctx context.Context, provider marketplace.Provider, externalOrderID string) (*marketplace.OrderLink, error)
	InsertIfAbsentFn func(ctx context.Context, link *marketplace.OrderLink) (bool, error)
}

func (m *mockLinkStore) Find(ctx context.Context, provider marketplace.Provider, externalOrderID string) (*marketplace.OrderLink, error) {
	return m.FindFn(ctx, provider, externalOrderID)
}

func (m *mockLinkStore) InsertIfAbsent(ctx context.Context, link *marketplace.OrderLink) (bool, error) {
	return m.InsertIfAbsentFn(ctx, link)
}

// mockMappingResolver implements MappingResolver for testing.
type mockMappingResolver struct {
	ResolveFn func(ctx context.Context, restaurantID string, provider marketplace.Provider, ids []string) (map[string]marketplace.MenuItemMapping, error)
}

func (m *mockMappingResolver) Resolve(ctx context.Context, restaurantID string, provider marketplace.Provider, ids []string) (map[string]marketplace.MenuItemMapping, error) {
	return m.ResolveFn(ctx, restaurantID, provider, ids)
}

// mockOrderLedger implements OrderLedger for testing.
type mockOrderLedger struct {
	CreateFn     func(ctx context.Context, draft *marketplace.OrderDraft) error
	LockFn       func(ctx context.Context, orderID string) (*marketplace.OrderSnapshot, error)
	TransitionFn func(ctx context.Context, orderID string, to marketplace.OrderStatus, origin marketplace.Origin) ([]*marketplace.StatusSyncJob, error)
}

func (m *mockOrderLedger) Create(ctx context.Context, draft *marketplace.OrderDraft) error {
	return m.CreateFn(ctx, draft)
}

func (m *mockOrderLedger) Lock(ctx context.Context, orderID string) (*marketplace.OrderSnapshot, error) {
	return m.LockFn(ctx, orderID)
}

func (m *mockOrderLedger) Transition(ctx context.Context, orderID string, to marketplace.OrderStatus, origin marketplace.Origin) ([]*marketplace.StatusSyncJob, error) {
	return m.TransitionFn(ctx, orderID, to, origin)
}

var (
	_ EventLedger     = (*mockEventLedger)(nil)
	_ LinkStore       = (*mockLinkStore)(nil)
	_ MappingResolver = (*mockMappingResolver)(nil)
	_ OrderLedger     = (*mockOrderLedger)(nil)
)

func newEvent() *marketplace.CanonicalEvent {
	return &marketplace.CanonicalEvent{
		Provider:        marketplace.ProviderDoorDash,
		EventID:         "evt-1",
		ExternalOrderID: "dd-order-1",
		ExternalStoreID: "dd-store-1",
		Status:          marketplace.StatusConfirmed,
		Customer:        marketplace.Customer{FirstName: "Ada", LastName: "Lovelace"},
		Items: []marketplace.LineItem{
			{ExternalItemID: "burger", Name: "Burger", Quantity: 2, UnitPrice: 1099},
			{ExternalItemID: "fries", Name: "Fries", Quantity: 1, UnitPrice: 399},
		},
		Totals: marketplace.Totals{Subtotal: 2597, Tax: 208, DeliveryFee: 299, Total: 3104},
	}
}

func newIntegration() *marketplace.IntegrationConfig {
	return &marketplace.IntegrationConfig{
		RestaurantID:         "rest-1",
		Provider:             marketplace.ProviderDoorDash,
		Enabled:              true,
		ExternalStoreID:      "dd-store-1",
		WebhookSigningSecret: "secret",
	}
}
