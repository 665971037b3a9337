package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/cornjacket/marketplace-sync/internal/services/statussync"
	"github.com/cornjacket/marketplace-sync/internal/shared/domain/clock"
	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// OrderLedger is a minimal order store standing in for the POS order ledger.
// Its status-transition hook enqueues one status sync job per linked
// marketplace on the same Querier, so the job commits with the transition.
type OrderLedger struct {
	db     Querier
	links  *OrderLinkRepo
	queue  *statussync.Queue
	logger *slog.Logger
}

// NewOrderLedger binds the ledger and its transition hook to db.
func NewOrderLedger(db Querier, maxAttempts int, logger *slog.Logger) *OrderLedger {
	return &OrderLedger{
		db:     db,
		links:  NewOrderLinkRepo(db, logger),
		queue:  statussync.NewQueue(NewStatusSyncJobRepo(db, logger), statussync.QueueConfig{MaxAttempts: maxAttempts}, logger),
		logger: logger.With("repository", "orders"),
	}
}

// Create inserts a new order from a marketplace draft.
func (l *OrderLedger) Create(ctx context.Context, d *marketplace.OrderDraft) error {
	query := `
		INSERT INTO orders (
			id, restaurant_id, source, external_order_id, status, customer, delivery_address, lines,
			subtotal, tax, delivery_fee, total, needs_review, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)`

	lines := d.Lines
	if lines == nil {
		lines = []marketplace.OrderLine{}
	}
	_, err := l.db.Exec(ctx, query,
		d.ID, d.RestaurantID, d.Source, d.ExternalOrderID, d.Status, d.Customer, d.DeliveryAddress, lines,
		d.Totals.Subtotal, d.Totals.Tax, d.Totals.DeliveryFee, d.Totals.Total, d.NeedsReview, clock.Now())
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	l.logger.Info("order created",
		"order_id", d.ID,
		"restaurant_id", d.RestaurantID,
		"source", d.Source,
		"needs_review", d.NeedsReview,
	)
	return nil
}

// Lock reads an order and holds its row lock until the transaction ends.
func (l *OrderLedger) Lock(ctx context.Context, orderID string) (*marketplace.OrderSnapshot, error) {
	var o marketplace.OrderSnapshot
	err := l.db.QueryRow(ctx, `
		SELECT id, restaurant_id, source, status, needs_review
		FROM orders WHERE id = $1
		FOR UPDATE`, orderID).Scan(&o.ID, &o.RestaurantID, &o.Source, &o.Status, &o.NeedsReview)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, marketplace.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read order: %w", err)
	}
	return &o, nil
}

// Transition sets the order status and enqueues one push per linked
// marketplace, all sharing one transition key. A POS-originated change
// reaches every link. A change reported by a marketplace webhook skips that
// marketplace's own link, since it already holds the new status, so it yields
// one job fewer than the link count.
func (l *OrderLedger) Transition(ctx context.Context, orderID string, to marketplace.OrderStatus, origin marketplace.Origin) ([]*marketplace.StatusSyncJob, error) {
	var restaurantID string
	err := l.db.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING restaurant_id`, orderID, to, clock.Now()).Scan(&restaurantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, marketplace.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	links, err := l.links.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	key, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate transition key: %w", err)
	}
	originProvider, fromMarketplace := origin.Provider()

	var jobs []*marketplace.StatusSyncJob
	for _, link := range links {
		if fromMarketplace && link.Provider == originProvider {
			continue
		}
		job, err := l.queue.Enqueue(ctx, statussync.EnqueueRequest{
			RestaurantID:    restaurantID,
			OrderID:         orderID,
			Provider:        link.Provider,
			ExternalOrderID: link.ExternalOrderID,
			ExternalStoreID: link.ExternalStoreID,
			TargetStatus:    to,
			TransitionKey:   key.String(),
		})
		if err != nil {
			return nil, err
		}
		if job != nil {
			jobs = append(jobs, job)
		}
	}

	l.logger.Info("order status changed",
		"order_id", orderID,
		"status", to,
		"origin", origin,
		"jobs_enqueued", len(jobs),
	)
	return jobs, nil
}
