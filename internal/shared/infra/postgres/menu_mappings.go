package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/clock"
	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// MenuMappingRepo stores marketplace item to menu item mappings.
type MenuMappingRepo struct {
	db     Querier
	logger *slog.Logger
}

// NewMenuMappingRepo creates a new MenuMappingRepo.
func NewMenuMappingRepo(db Querier, logger *slog.Logger) *MenuMappingRepo {
	return &MenuMappingRepo{
		db:     db,
		logger: logger.With("repository", "menu_mappings"),
	}
}

const mappingColumns = `id, restaurant_id, provider, external_item_id, external_item_name,
	menu_item_id, created_at, updated_at`

func scanMapping(row pgx.Row) (*marketplace.MenuItemMapping, error) {
	var m marketplace.MenuItemMapping
	err := row.Scan(&m.ID, &m.RestaurantID, &m.Provider, &m.ExternalItemID, &m.ExternalItemName,
		&m.MenuItemID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Resolve looks up mappings for a batch of external item ids, keyed by
// external item id. Missing ids are absent from the map.
func (r *MenuMappingRepo) Resolve(ctx context.Context, restaurantID string, provider marketplace.Provider, externalItemIDs []string) (map[string]marketplace.MenuItemMapping, error) {
	out := make(map[string]marketplace.MenuItemMapping, len(externalItemIDs))
	if len(externalItemIDs) == 0 {
		return out, nil
	}

	query := `SELECT ` + mappingColumns + `
		FROM marketplace_menu_mappings
		WHERE restaurant_id = $1 AND provider = $2 AND external_item_id = ANY($3)`

	rows, err := r.db.Query(ctx, query, restaurantID, provider, externalItemIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve menu mappings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan menu mapping: %w", err)
		}
		out[m.ExternalItemID] = *m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating menu mappings: %w", err)
	}
	return out, nil
}

// List returns a restaurant's mappings, optionally for one provider.
func (r *MenuMappingRepo) List(ctx context.Context, restaurantID string, provider marketplace.Provider) ([]marketplace.MenuItemMapping, error) {
	query := `SELECT ` + mappingColumns + `
		FROM marketplace_menu_mappings
		WHERE restaurant_id = $1 AND ($2 = '' OR provider = $2)
		ORDER BY provider, external_item_id`

	rows, err := r.db.Query(ctx, query, restaurantID, string(provider))
	if err != nil {
		return nil, fmt.Errorf("failed to list menu mappings: %w", err)
	}
	defer rows.Close()

	var out []marketplace.MenuItemMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan menu mapping: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating menu mappings: %w", err)
	}
	return out, nil
}

// Upsert creates a mapping or repoints an existing one for the same external item.
func (r *MenuMappingRepo) Upsert(ctx context.Context, m *marketplace.MenuItemMapping) (*marketplace.MenuItemMapping, error) {
	id := m.ID
	if id.IsNil() {
		var err error
		if id, err = uuid.NewV7(); err != nil {
			return nil, fmt.Errorf("failed to generate mapping id: %w", err)
		}
	}

	query := `
		INSERT INTO marketplace_menu_mappings
			(id, restaurant_id, provider, external_item_id, external_item_name, menu_item_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (restaurant_id, provider, external_item_id) DO UPDATE SET
			external_item_name = EXCLUDED.external_item_name,
			menu_item_id = EXCLUDED.menu_item_id,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + mappingColumns

	out, err := scanMapping(r.db.QueryRow(ctx, query,
		id, m.RestaurantID, m.Provider, m.ExternalItemID, m.ExternalItemName, m.MenuItemID, clock.Now()))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert menu mapping: %w", err)
	}

	r.logger.Debug("menu mapping saved",
		"restaurant_id", out.RestaurantID,
		"provider", out.Provider,
		"external_item_id", out.ExternalItemID,
	)
	return out, nil
}

// Delete removes a mapping owned by restaurantID.
func (r *MenuMappingRepo) Delete(ctx context.Context, restaurantID string, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM marketplace_menu_mappings WHERE restaurant_id = $1 AND id = $2`,
		restaurantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete menu mapping: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return marketplace.ErrNotFound
	}
	return nil
}

// Get returns one mapping owned by restaurantID.
func (r *MenuMappingRepo) Get(ctx context.Context, restaurantID string, id uuid.UUID) (*marketplace.MenuItemMapping, error) {
	query := `SELECT ` + mappingColumns + `
		FROM marketplace_menu_mappings WHERE restaurant_id = $1 AND id = $2`
	m, err := scanMapping(r.db.QueryRow(ctx, query, restaurantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, marketplace.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get menu mapping: %w", err)
	}
	return m, nil
}
