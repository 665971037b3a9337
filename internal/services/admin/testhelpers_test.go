package admin

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/cornjacket/marketplace-sync/internal/services/pilot"
	"github.com/cornjacket/marketplace-sync/internal/services/statussync"
	"github.com/cornjacket/marketplace-sync/internal/services/statussync/worker"
	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// mockIntegrationStore implements IntegrationStore for testing.
type mockIntegrationStore struct {
	ListFn        func(ctx context.Context, restaurantID string) ([]marketplace.IntegrationConfig, error)
	UpsertFn      func(ctx context.Context, c *marketplace.IntegrationConfig) (*marketplace.IntegrationConfig, error)
	ClearSecretFn func(ctx context.Context, restaurantID string, provider marketplace.Provider) error
}

func (m *mockIntegrationStore) List(ctx context.Context, restaurantID string) ([]marketplace.IntegrationConfig, error) {
	return m.ListFn(ctx, restaurantID)
}

func (m *mockIntegrationStore) Upsert(ctx context.Context, c *marketplace.IntegrationConfig) (*marketplace.IntegrationConfig, error) {
	return m.UpsertFn(ctx, c)
}

func (m *mockIntegrationStore) ClearSecret(ctx context.Context, restaurantID string, provider marketplace.Provider) error {
	return m.ClearSecretFn(ctx, restaurantID, provider)
}

// mockMappingStore implements MappingStore for testing.
type mockMappingStore struct {
	ListFn   func(ctx context.Context, restaurantID string, provider marketplace.Provider) ([]marketplace.MenuItemMapping, error)
	UpsertFn func(ctx context.Context, m *marketplace.MenuItemMapping) (*marketplace.MenuItemMapping, error)
	DeleteFn func(ctx context.Context, restaurantID string, id uuid.UUID) error
}

func (m *mockMappingStore) List(ctx context.Context, restaurantID string, provider marketplace.Provider) ([]marketplace.MenuItemMapping, error) {
	return m.ListFn(ctx, restaurantID, provider)
}

func (m *mockMappingStore) Upsert(ctx context.Context, mm *marketplace.MenuItemMapping) (*marketplace.MenuItemMapping, error) {
	return m.UpsertFn(ctx, mm)
}

func (m *mockMappingStore) Delete(ctx context.Context, restaurantID string, id uuid.UUID) error {
	return m.DeleteFn(ctx, restaurantID, id)
}

// mockJobQueue implements JobQueue for testing.
type mockJobQueue struct {
	ListFn  func(ctx context.Context, filter statussync.JobFilter) ([]marketplace.StatusSyncJob, error)
	RetryFn func(ctx context.Context, restaurantID string, jobID uuid.UUID) (*marketplace.StatusSyncJob, error)
}

func (m *mockJobQueue) List(ctx context.Context, filter statussync.JobFilter) ([]marketplace.StatusSyncJob, error) {
	return m.ListFn(ctx, filter)
}

func (m *mockJobQueue) Retry(ctx context.Context, restaurantID string, jobID uuid.UUID) (*marketplace.StatusSyncJob, error) {
	return m.RetryFn(ctx, restaurantID, jobID)
}

// mockProcessor implements JobProcessor for testing.
type mockProcessor struct {
	ProcessDueFn func(ctx context.Context, limit int, restaurantID string) (worker.Result, error)
}

func (m *mockProcessor) ProcessDue(ctx context.Context, limit int, restaurantID string) (worker.Result, error) {
	return m.ProcessDueFn(ctx, limit, restaurantID)
}

// mockReporter implements PilotReporter for testing.
type mockReporter struct {
	SummaryFn func(ctx context.Context, restaurantID string, provider marketplace.Provider, windowHours int) (*pilot.Summary, error)
}

func (m *mockReporter) Summary(ctx context.Context, restaurantID string, provider marketplace.Provider, windowHours int) (*pilot.Summary, error) {
	return m.SummaryFn(ctx, restaurantID, provider, windowHours)
}

// mockTransitioner implements OrderTransitioner for testing.
type mockTransitioner struct {
	TransitionOrderFn func(ctx context.Context, restaurantID, orderID string, to marketplace.OrderStatus) (*marketplace.Transition, error)
}

func (m *mockTransitioner) TransitionOrder(ctx context.Context, restaurantID, orderID string, to marketplace.OrderStatus) (*marketplace.Transition, error) {
	return m.TransitionOrderFn(ctx, restaurantID, orderID, to)
}

var (
	_ IntegrationStore  = (*mockIntegrationStore)(nil)
	_ MappingStore      = (*mockMappingStore)(nil)
	_ JobQueue          = (*mockJobQueue)(nil)
	_ JobProcessor      = (*mockProcessor)(nil)
	_ PilotReporter     = (*mockReporter)(nil)
	_ OrderTransitioner = (*mockTransitioner)(nil)
)
