//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/cornjacket/marketplace-sync/internal/services/statussync"
	"github.com/cornjacket/marketplace-sync/internal/services/statussync/worker"
	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

func claim(t *testing.T, repo *StatusSyncJobRepo, now time.Time, restaurantID string) []marketplace.StatusSyncJob {
	t.Helper()
	jobs, err := repo.ClaimDue(context.Background(), worker.ClaimRequest{
		Now: now, Limit: 10, Lease: time.Minute, RestaurantID: restaurantID,
	})
	require.NoError(t, err)
	return jobs
}

func TestClaimDue_OneJobPerOrderInSequence(t *testing.T) {
	resetTables(t)
	repo := NewStatusSyncJobRepo(testPool, testLogger())
	now := time.Now().UTC().Truncate(time.Microsecond)

	first := seedJob(t, "rest-1", "order-1", marketplace.ProviderDoorDash, marketplace.StatusPreparing, now.Add(-time.Minute))
	second := seedJob(t, "rest-1", "order-1", marketplace.ProviderDoorDash, marketplace.StatusReady, now.Add(-time.Minute))
	other := seedJob(t, "rest-1", "order-2", marketplace.ProviderGrubhub, marketplace.StatusReady, now.Add(-time.Minute))

	claimed := claim(t, repo, now, "")
	ids := []uuid.UUID{}
	for _, j := range claimed {
		ids = append(ids, j.ID)
		assert.Equal(t, marketplace.JobInProgress, j.Status)
		require.NotNil(t, j.LeaseExpiresAt)
	}
	assert.ElementsMatch(t, []uuid.UUID{first.ID, other.ID}, ids)

	assert.Empty(t, claim(t, repo, now, ""), "second job waits for the first")

	require.NoError(t, repo.Complete(context.Background(), first.ID, now))
	next := claim(t, repo, now, "")
	require.Len(t, next, 1)
	assert.Equal(t, second.ID, next[0].ID)
}

func TestClaimDue_ConcurrentProcessorsGetDisjointJobs(t *testing.T) {
	resetTables(t)
	repo := NewStatusSyncJobRepo(testPool, testLogger())
	now := time.Now().UTC().Truncate(time.Microsecond)

	const total = 30
	seeded := make(map[uuid.UUID]bool, total)
	for i := 0; i < total; i++ {
		job := seedJob(t, "rest-1", fmt.Sprintf("order-%d", i), marketplace.ProviderDoorDash, marketplace.StatusReady, now)
		seeded[job.ID] = true
	}

	const processors = 2
	claimed := make([][]uuid.UUID, processors)
	start := make(chan struct{})
	g, ctx := errgroup.WithContext(context.Background())
	for p := 0; p < processors; p++ {
		p := p
		g.Go(func() error {
			<-start
			for {
				jobs, err := repo.ClaimDue(ctx, worker.ClaimRequest{Now: now, Limit: 4, Lease: time.Minute})
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					return nil
				}
				for _, j := range jobs {
					claimed[p] = append(claimed[p], j.ID)
				}
			}
		})
	}
	close(start)
	require.NoError(t, g.Wait())

	seen := make(map[uuid.UUID]int, total)
	for _, ids := range claimed {
		for _, id := range ids {
			seen[id]++
		}
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "job %s claimed by more than one processor", id)
		assert.True(t, seeded[id])
	}
	assert.Len(t, seen, total)
	assert.Empty(t, claim(t, repo, now, ""))
}

func TestClaimDue_NotDueAndTenantScope(t *testing.T) {
	resetTables(t)
	repo := NewStatusSyncJobRepo(testPool, testLogger())
	now := time.Now().UTC().Truncate(time.Microsecond)

	seedJob(t, "rest-1", "order-1", marketplace.ProviderDoorDash, marketplace.StatusReady, now.Add(time.Hour))
	mine := seedJob(t, "rest-1", "order-2", marketplace.ProviderDoorDash, marketplace.StatusReady, now)
	seedJob(t, "rest-2", "order-3", marketplace.ProviderDoorDash, marketplace.StatusReady, now)

	claimed := claim(t, repo, now, "rest-1")
	require.Len(t, claimed, 1)
	assert.Equal(t, mine.ID, claimed[0].ID)
}

func TestFailAndRequeue(t *testing.T) {
	resetTables(t)
	repo := NewStatusSyncJobRepo(testPool, testLogger())
	queue := statussync.NewQueue(repo, statussync.QueueConfig{MaxAttempts: 3}, testLogger())
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	job := seedJob(t, "rest-1", "order-1", marketplace.ProviderUberEats, marketplace.StatusReady, now)

	_, err := queue.Retry(ctx, "rest-1", job.ID)
	assert.ErrorIs(t, err, marketplace.ErrJobNotRetryable, "queued jobs cannot be retried")

	require.Len(t, claim(t, repo, now, ""), 1)
	require.NoError(t, repo.Fail(ctx, job.ID, worker.Failure{
		Status:        marketplace.JobDeadLetter,
		AttemptCount:  3,
		NextAttemptAt: now,
		LastError:     "503 from provider",
		Now:           now,
	}))

	retried, err := queue.Retry(ctx, "rest-1", job.ID)
	require.NoError(t, err)
	assert.Equal(t, marketplace.JobQueued, retried.Status)
	assert.Equal(t, 3, retried.AttemptCount, "attempt count is kept")
	assert.Equal(t, 4, retried.MaxAttempts, "one more attempt is allowed")

	_, err = queue.Retry(ctx, "rest-2", job.ID)
	assert.ErrorIs(t, err, marketplace.ErrNotFound)
	_, err = queue.Retry(ctx, "rest-1", uuid.Must(uuid.NewV7()))
	assert.ErrorIs(t, err, marketplace.ErrNotFound)

	listed, err := queue.List(ctx, statussync.JobFilter{RestaurantID: "rest-1", Status: marketplace.JobQueued})
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

func TestRecoverExpired(t *testing.T) {
	resetTables(t)
	repo := NewStatusSyncJobRepo(testPool, testLogger())
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	job := seedJob(t, "rest-1", "order-1", marketplace.ProviderGrubhub, marketplace.StatusReady, now)
	require.Len(t, claim(t, repo, now, ""), 1)

	rec, err := repo.RecoverExpired(ctx, now.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, worker.Recovery{}, rec, "lease still valid")

	rec, err = repo.RecoverExpired(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Requeued)

	got, err := repo.Get(ctx, "rest-1", job.ID)
	require.NoError(t, err)
	assert.Equal(t, marketplace.JobQueued, got.Status)
	assert.Equal(t, 1, got.AttemptCount)
}

func TestHasNewerSuccess(t *testing.T) {
	resetTables(t)
	repo := NewStatusSyncJobRepo(testPool, testLogger())
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	older := seedJob(t, "rest-1", "order-1", marketplace.ProviderDoorDash, marketplace.StatusPreparing, now)
	newer := seedJob(t, "rest-1", "order-1", marketplace.ProviderDoorDash, marketplace.StatusReady, now)

	has, err := repo.HasNewerSuccess(ctx, older)
	require.NoError(t, err)
	assert.False(t, has)

	_, err = testPool.Exec(ctx, `UPDATE status_sync_jobs SET status = 'SUCCESS' WHERE id = $1`, newer.ID)
	require.NoError(t, err)

	has, err = repo.HasNewerSuccess(ctx, older)
	require.NoError(t, err)
	assert.True(t, has)
}
