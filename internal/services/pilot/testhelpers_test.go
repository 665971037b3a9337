package pilot

import (
	"context"
	"time"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// mockStatsReader implements StatsReader for testing.
type mockStatsReader struct {
	StatsFn func(ctx context.Context, restaurantID string, provider marketplace.Provider, since time.Time) (Stats, error)
}

func (m *mockStatsReader) Stats(ctx context.Context, restaurantID string, provider marketplace.Provider, since time.Time) (Stats, error) {
	return m.StatsFn(ctx, restaurantID, provider, since)
}

var _ StatsReader = (*mockStatsReader)(nil)

func fixedStats(st Stats) *mockStatsReader {
	return &mockStatsReader{
		StatsFn: func(ctx context.Context, restaurantID string, provider marketplace.Provider, since time.Time) (Stats, error) {
			return st, nil
		},
	}
}
