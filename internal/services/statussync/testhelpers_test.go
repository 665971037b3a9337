package statussync

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// mockJobStore implements JobStore for testing.
type mockJobStore struct {
	InsertFn  func(ctx context.Context, job *marketplace.StatusSyncJob) (bool, error)
	ListFn    func(ctx context.Context, filter JobFilter) ([]marketplace.StatusSyncJob, error)
	RequeueFn func(ctx context.Context, restaurantID string, jobID uuid.UUID, now time.Time) (*marketplace.StatusSyncJob, error)
}

var _ JobStore = (*mockJobStore)(nil)

func (m *mockJobStore) Insert(ctx context.Context, job *marketplace.StatusSyncJob) (bool, error) {
	return m.InsertFn(ctx, job)
}

func (m *mockJobStore) List(ctx context.Context, filter JobFilter) ([]marketplace.StatusSyncJob, error) {
	return m.ListFn(ctx, filter)
}

func (m *mockJobStore) Requeue(ctx context.Context, restaurantID string, jobID uuid.UUID, now time.Time) (*marketplace.StatusSyncJob, error) {
	return m.RequeueFn(ctx, restaurantID, jobID, now)
}
