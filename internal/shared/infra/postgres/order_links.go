package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// OrderLinkRepo maps marketplace orders to internal orders.
type OrderLinkRepo struct {
	db     Querier
	logger *slog.Logger
}

// NewOrderLinkRepo creates a new OrderLinkRepo.
func NewOrderLinkRepo(db Querier, logger *slog.Logger) *OrderLinkRepo {
	return &OrderLinkRepo{
		db:     db,
		logger: logger.With("repository", "order_links"),
	}
}

const linkColumns = `order_id, restaurant_id, provider, external_order_id, external_store_id, created_at`

func scanLink(row pgx.Row) (*marketplace.OrderLink, error) {
	var l marketplace.OrderLink
	if err := row.Scan(&l.OrderID, &l.RestaurantID, &l.Provider, &l.ExternalOrderID, &l.ExternalStoreID, &l.CreatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

// Find looks up a link by marketplace identity.
func (r *OrderLinkRepo) Find(ctx context.Context, provider marketplace.Provider, externalOrderID string) (*marketplace.OrderLink, error) {
	query := `SELECT ` + linkColumns + `
		FROM marketplace_order_links
		WHERE provider = $1 AND external_order_id = $2`

	l, err := scanLink(r.db.QueryRow(ctx, query, provider, externalOrderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, marketplace.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order link: %w", err)
	}
	return l, nil
}

// InsertIfAbsent writes link unless (provider, external order id) is already
// linked. It reports whether this call created the link.
func (r *OrderLinkRepo) InsertIfAbsent(ctx context.Context, link *marketplace.OrderLink) (bool, error) {
	query := `
		INSERT INTO marketplace_order_links (` + linkColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider, external_order_id) DO NOTHING`

	tag, err := r.db.Exec(ctx, query, link.OrderID, link.RestaurantID, link.Provider,
		link.ExternalOrderID, link.ExternalStoreID, link.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert order link: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByOrder returns every marketplace link of an internal order.
func (r *OrderLinkRepo) ListByOrder(ctx context.Context, orderID string) ([]marketplace.OrderLink, error) {
	query := `SELECT ` + linkColumns + `
		FROM marketplace_order_links
		WHERE order_id = $1
		ORDER BY provider`

	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order links: %w", err)
	}
	defer rows.Close()

	var out []marketplace.OrderLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order link: %w", err)
		}
		out = append(out, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order links: %w", err)
	}
	return out, nil
}
