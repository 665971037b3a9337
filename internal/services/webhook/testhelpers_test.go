package webhook

import (
	"context"
	"sync"

	"github.com/cornjacket/marketplace-sync/internal/services/webhook/translator"
	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// mockIntegrationLookup implements IntegrationLookup for testing.
type mockIntegrationLookup struct {
	ListEnabledFn func(ctx context.Context, provider marketplace.Provider) ([]marketplace.IntegrationConfig, error)
}

func (m *mockIntegrationLookup) ListEnabled(ctx context.Context, provider marketplace.Provider) ([]marketplace.IntegrationConfig, error) {
	return m.ListEnabledFn(ctx, provider)
}

// mockNotifier implements OrderNotifier for testing.
type mockNotifier struct {
	OrderReceivedFn func(ctx context.Context, draft *marketplace.OrderDraft) error
}

func (m *mockNotifier) OrderReceived(ctx context.Context, draft *marketplace.OrderDraft) error {
	return m.OrderReceivedFn(ctx, draft)
}

// mockMetrics implements MetricsRecorder for testing.
type mockMetrics struct {
	mu       sync.Mutex
	outcomes []string
	unmapped int
}

func (m *mockMetrics) RecordWebhook(provider marketplace.Provider, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *mockMetrics) RecordUnmapped(provider marketplace.Provider, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unmapped += n
}

// memStore is an in-memory stand-in for the transactional repositories.
type memStore struct {
	mu       sync.Mutex
	events   map[string]bool
	links    map[string]marketplace.OrderLink
	mappings map[string]marketplace.MenuItemMapping
	orders   map[string]*marketplace.OrderDraft
	// failDo makes the unit of work fail before fn runs.
	failDo error
}

func newMemStore() *memStore {
	return &memStore{
		events:   make(map[string]bool),
		links:    make(map[string]marketplace.OrderLink),
		mappings: make(map[string]marketplace.MenuItemMapping),
		orders:   make(map[string]*marketplace.OrderDraft),
	}
}

func (s *memStore) Do(ctx context.Context, fn func(ctx context.Context, repos translator.Repositories) error) error {
	if s.failDo != nil {
		return s.failDo
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, translator.Repositories{Events: s, Links: s, Mappings: s, Orders: s})
}

func (s *memStore) RecordIfNew(ctx context.Context, provider marketplace.Provider, eventID, restaurantID string) (bool, error) {
	key := string(provider) + "/" + eventID
	if s.events[key] {
		return false, nil
	}
	s.events[key] = true
	return true, nil
}

func (s *memStore) Find(ctx context.Context, provider marketplace.Provider, externalOrderID string) (*marketplace.OrderLink, error) {
	l, ok := s.links[string(provider)+"/"+externalOrderID]
	if !ok {
		return nil, marketplace.ErrNotFound
	}
	return &l, nil
}

func (s *memStore) InsertIfAbsent(ctx context.Context, link *marketplace.OrderLink) (bool, error) {
	key := string(link.Provider) + "/" + link.ExternalOrderID
	if _, ok := s.links[key]; ok {
		return false, nil
	}
	s.links[key] = *link
	return true, nil
}

func (s *memStore) Resolve(ctx context.Context, restaurantID string, provider marketplace.Provider, ids []string) (map[string]marketplace.MenuItemMapping, error) {
	out := make(map[string]marketplace.MenuItemMapping)
	for _, id := range ids {
		if m, ok := s.mappings[id]; ok && m.RestaurantID == restaurantID && m.Provider == provider {
			out[id] = m
		}
	}
	return out, nil
}

func (s *memStore) Create(ctx context.Context, draft *marketplace.OrderDraft) error {
	s.orders[draft.ID] = draft
	return nil
}

func (s *memStore) Lock(ctx context.Context, orderID string) (*marketplace.OrderSnapshot, error) {
	o, ok := s.orders[orderID]
	if !ok {
		return nil, marketplace.ErrNotFound
	}
	return &marketplace.OrderSnapshot{ID: o.ID, RestaurantID: o.RestaurantID, Source: string(o.Source), Status: o.Status, NeedsReview: o.NeedsReview}, nil
}

func (s *memStore) Transition(ctx context.Context, orderID string, to marketplace.OrderStatus, origin marketplace.Origin) ([]*marketplace.StatusSyncJob, error) {
	o, ok := s.orders[orderID]
	if !ok {
		return nil, marketplace.ErrNotFound
	}
	o.Status = to
	return nil, nil
}

func (s *memStore) order(id string) *marketplace.OrderDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id]
}

var (
	_ IntegrationLookup     = (*mockIntegrationLookup)(nil)
	_ OrderNotifier         = (*mockNotifier)(nil)
	_ MetricsRecorder       = (*mockMetrics)(nil)
	_ translator.UnitOfWork = (*memStore)(nil)
)
