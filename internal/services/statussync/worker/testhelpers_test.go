package worker

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
	"github.com/cornjacket/marketplace-sync/internal/shared/providers"
)

// mockJobClaimer implements JobClaimer for testing.
type mockJobClaimer struct {
	RecoverExpiredFn  func(ctx context.Context, now time.Time) (Recovery, error)
	ClaimDueFn        func(ctx context.Context, req ClaimRequest) ([]marketplace.StatusSyncJob, error)
	CompleteFn        func(ctx context.Context, jobID uuid.UUID, now time.Time) error
	FailFn            func(ctx context.Context, jobID uuid.UUID, f Failure) error
	HasNewerSuccessFn func(ctx context.Context, job *marketplace.StatusSyncJob) (bool, error)
}

var _ JobClaimer = (*mockJobClaimer)(nil)

func (m *mockJobClaimer) RecoverExpired(ctx context.Context, now time.Time) (Recovery, error) {
	if m.RecoverExpiredFn == nil {
		return Recovery{}, nil
	}
	return m.RecoverExpiredFn(ctx, now)
}

func (m *mockJobClaimer) ClaimDue(ctx context.Context, req ClaimRequest) ([]marketplace.StatusSyncJob, error) {
	return m.ClaimDueFn(ctx, req)
}

func (m *mockJobClaimer) Complete(ctx context.Context, jobID uuid.UUID, now time.Time) error {
	return m.CompleteFn(ctx, jobID, now)
}

func (m *mockJobClaimer) Fail(ctx context.Context, jobID uuid.UUID, f Failure) error {
	return m.FailFn(ctx, jobID, f)
}

func (m *mockJobClaimer) HasNewerSuccess(ctx context.Context, job *marketplace.StatusSyncJob) (bool, error) {
	if m.HasNewerSuccessFn == nil {
		return false, nil
	}
	return m.HasNewerSuccessFn(ctx, job)
}

// mockIntegrationReader implements IntegrationReader for testing.
type mockIntegrationReader struct {
	GetFn func(ctx context.Context, restaurantID string, provider marketplace.Provider) (*marketplace.IntegrationConfig, error)
}

var _ IntegrationReader = (*mockIntegrationReader)(nil)

func (m *mockIntegrationReader) Get(ctx context.Context, restaurantID string, provider marketplace.Provider) (*marketplace.IntegrationConfig, error) {
	return m.GetFn(ctx, restaurantID, provider)
}

func enabledIntegrations() *mockIntegrationReader {
	return &mockIntegrationReader{
		GetFn: func(ctx context.Context, restaurantID string, provider marketplace.Provider) (*marketplace.IntegrationConfig, error) {
			return &marketplace.IntegrationConfig{
				RestaurantID:    restaurantID,
				Provider:        provider,
				Enabled:         true,
				ExternalStoreID: "store-" + string(provider),
			}, nil
		},
	}
}

// mockStatusSender implements StatusSender for testing.
type mockStatusSender struct {
	SendFn func(ctx context.Context, provider marketplace.Provider, update providers.StatusUpdate) error
}

var _ StatusSender = (*mockStatusSender)(nil)

func (m *mockStatusSender) Send(ctx context.Context, provider marketplace.Provider, update providers.StatusUpdate) error {
	return m.SendFn(ctx, provider, update)
}

// recordingNotifier captures published outcomes.
type recordingNotifier struct {
	mu   sync.Mutex
	jobs []marketplace.StatusSyncJob
}

func (n *recordingNotifier) JobFinished(ctx context.Context, job *marketplace.StatusSyncJob) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobs = append(n.jobs, *job)
	return nil
}

// recordingMetrics captures outcome counts.
type recordingMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (r *recordingMetrics) RecordSyncJob(provider marketplace.Provider, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = make(map[string]int)
	}
	r.outcomes[outcome]++
}

func newJob(orderID string, provider marketplace.Provider, attempts, maxAttempts int) marketplace.StatusSyncJob {
	return marketplace.StatusSyncJob{
		ID:              uuid.Must(uuid.NewV7()),
		RestaurantID:    "r-1",
		OrderID:         orderID,
		Provider:        provider,
		ExternalOrderID: "ext-" + orderID,
		TargetStatus:    marketplace.StatusReady,
		Status:          marketplace.JobInProgress,
		AttemptCount:    attempts,
		MaxAttempts:     maxAttempts,
	}
}
