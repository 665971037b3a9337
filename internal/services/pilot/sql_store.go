package pilot

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// OpenDB opens the reporting connection through the pgx database/sql driver.
// It may point at a read replica.
func OpenDB(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open reporting database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// SQLStore reads pilot statistics with plain SQL.
type SQLStore struct {
	db *sql.DB
}

var _ StatsReader = (*SQLStore)(nil)

// NewSQLStore creates a new SQLStore.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const ordersQuery = `SELECT COUNT(*) FROM marketplace_order_links
	WHERE restaurant_id = $1 AND ($2 = '' OR provider = $2) AND created_at >= $3`

const jobsQuery = `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE status = 'SUCCESS'),
		COUNT(*) FILTER (WHERE status = 'FAILED'),
		COUNT(*) FILTER (WHERE status = 'DEAD_LETTER'),
		COUNT(*) FILTER (WHERE status IN ('QUEUED', 'IN_PROGRESS')),
		COALESCE(AVG(attempt_count), 0),
		MAX(updated_at) FILTER (WHERE status IN ('FAILED', 'DEAD_LETTER'))
	FROM status_sync_jobs
	WHERE restaurant_id = $1 AND ($2 = '' OR provider = $2) AND created_at >= $3`

// Stats counts linked orders and status sync jobs created since.
func (s *SQLStore) Stats(ctx context.Context, restaurantID string, provider marketplace.Provider, since time.Time) (Stats, error) {
	var st Stats

	if err := s.db.QueryRowContext(ctx, ordersQuery, restaurantID, string(provider), since).Scan(&st.TotalOrders); err != nil {
		return Stats{}, fmt.Errorf("failed to count orders: %w", err)
	}

	var lastFailure sql.NullTime
	err := s.db.QueryRowContext(ctx, jobsQuery, restaurantID, string(provider), since).Scan(
		&st.TotalJobs, &st.Succeeded, &st.Failed, &st.DeadLettered, &st.Pending, &st.AvgAttempts, &lastFailure)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to aggregate jobs: %w", err)
	}
	if lastFailure.Valid {
		t := lastFailure.Time
		st.LastFailureAt = &t
	}
	return st, nil
}
