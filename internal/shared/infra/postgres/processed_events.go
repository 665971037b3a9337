package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/clock"
	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// ProcessedEventRepo is the webhook idempotency ledger.
type ProcessedEventRepo struct {
	db     Querier
	logger *slog.Logger
}

// NewProcessedEventRepo creates a new ProcessedEventRepo.
func NewProcessedEventRepo(db Querier, logger *slog.Logger) *ProcessedEventRepo {
	return &ProcessedEventRepo{
		db:     db,
		logger: logger.With("repository", "processed_events"),
	}
}

// RecordIfNew inserts (provider, eventID) and reports whether this call
// created the row. A concurrent insert of the same key waits on the unique
// index until the other transaction finishes, so exactly one caller sees true.
func (r *ProcessedEventRepo) RecordIfNew(ctx context.Context, provider marketplace.Provider, eventID, restaurantID string) (bool, error) {
	query := `
		INSERT INTO processed_events (provider, event_id, restaurant_id, received_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider, event_id) DO NOTHING`

	tag, err := r.db.Exec(ctx, query, provider, eventID, restaurantID, clock.Now())
	if err != nil {
		return false, fmt.Errorf("failed to record processed event: %w", err)
	}

	isNew := tag.RowsAffected() == 1
	if !isNew {
		r.logger.Debug("duplicate webhook event", "provider", provider, "event_id", eventID)
	}
	return isNew, nil
}
