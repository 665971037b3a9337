package pilot

import (
	"context"
	"time"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// Stats are the raw counts behind a Summary.
type Stats struct {
	TotalOrders   int
	TotalJobs     int
	Succeeded     int
	Failed        int
	DeadLettered  int
	Pending       int
	AvgAttempts   float64
	LastFailureAt *time.Time
}

// StatsReader reads pilot statistics. An empty provider covers all marketplaces.
type StatsReader interface {
	Stats(ctx context.Context, restaurantID string, provider marketplace.Provider, since time.Time) (Stats, error)
}
