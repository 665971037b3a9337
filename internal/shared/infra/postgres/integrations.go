package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/clock"
	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// IntegrationRepo stores marketplace integration configs.
type IntegrationRepo struct {
	db     Querier
	logger *slog.Logger
}

// NewIntegrationRepo creates a new IntegrationRepo.
func NewIntegrationRepo(db Querier, logger *slog.Logger) *IntegrationRepo {
	return &IntegrationRepo{
		db:     db,
		logger: logger.With("repository", "integrations"),
	}
}

const integrationColumns = `restaurant_id, provider, enabled, external_store_id,
	COALESCE(webhook_signing_secret, ''), created_at, updated_at`

func scanIntegration(row pgx.Row) (*marketplace.IntegrationConfig, error) {
	var c marketplace.IntegrationConfig
	err := row.Scan(&c.RestaurantID, &c.Provider, &c.Enabled, &c.ExternalStoreID,
		&c.WebhookSigningSecret, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Get returns one restaurant's integration with provider.
func (r *IntegrationRepo) Get(ctx context.Context, restaurantID string, provider marketplace.Provider) (*marketplace.IntegrationConfig, error) {
	query := `SELECT ` + integrationColumns + `
		FROM marketplace_integrations
		WHERE restaurant_id = $1 AND provider = $2`

	c, err := scanIntegration(r.db.QueryRow(ctx, query, restaurantID, provider))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, marketplace.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	return c, nil
}

// List returns every integration a restaurant has configured.
func (r *IntegrationRepo) List(ctx context.Context, restaurantID string) ([]marketplace.IntegrationConfig, error) {
	query := `SELECT ` + integrationColumns + `
		FROM marketplace_integrations
		WHERE restaurant_id = $1
		ORDER BY provider`
	return r.list(ctx, query, restaurantID)
}

// ListEnabled returns enabled integrations for provider that have a signing
// secret; these are the candidates a webhook signature is checked against.
func (r *IntegrationRepo) ListEnabled(ctx context.Context, provider marketplace.Provider) ([]marketplace.IntegrationConfig, error) {
	query := `SELECT ` + integrationColumns + `
		FROM marketplace_integrations
		WHERE provider = $1 AND enabled AND webhook_signing_secret IS NOT NULL AND webhook_signing_secret <> ''`
	return r.list(ctx, query, provider)
}

func (r *IntegrationRepo) list(ctx context.Context, query string, arg any) ([]marketplace.IntegrationConfig, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query integrations: %w", err)
	}
	defer rows.Close()

	var out []marketplace.IntegrationConfig
	for rows.Next() {
		c, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan integration: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating integrations: %w", err)
	}
	return out, nil
}

// Upsert creates or updates an integration. An empty signing secret keeps the
// stored secret. A store id already claimed by another restaurant returns
// marketplace.ErrConflict.
func (r *IntegrationRepo) Upsert(ctx context.Context, c *marketplace.IntegrationConfig) (*marketplace.IntegrationConfig, error) {
	query := `
		INSERT INTO marketplace_integrations
			(restaurant_id, provider, enabled, external_store_id, webhook_signing_secret, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $6)
		ON CONFLICT (restaurant_id, provider) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			external_store_id = EXCLUDED.external_store_id,
			webhook_signing_secret = COALESCE(EXCLUDED.webhook_signing_secret, marketplace_integrations.webhook_signing_secret),
			updated_at = EXCLUDED.updated_at
		RETURNING ` + integrationColumns

	out, err := scanIntegration(r.db.QueryRow(ctx, query,
		c.RestaurantID, c.Provider, c.Enabled, c.ExternalStoreID, c.WebhookSigningSecret, clock.Now()))
	if err != nil {
		if isDuplicateError(err) {
			return nil, fmt.Errorf("%w: store %q is linked to another restaurant", marketplace.ErrConflict, c.ExternalStoreID)
		}
		return nil, fmt.Errorf("failed to upsert integration: %w", err)
	}

	r.logger.Info("integration saved",
		"restaurant_id", out.RestaurantID,
		"provider", out.Provider,
		"enabled", out.Enabled,
	)
	return out, nil
}

// ClearSecret removes the signing secret and disables the integration.
func (r *IntegrationRepo) ClearSecret(ctx context.Context, restaurantID string, provider marketplace.Provider) error {
	query := `
		UPDATE marketplace_integrations
		SET webhook_signing_secret = NULL, enabled = FALSE, updated_at = $3
		WHERE restaurant_id = $1 AND provider = $2`

	tag, err := r.db.Exec(ctx, query, restaurantID, provider, clock.Now())
	if err != nil {
		return fmt.Errorf("failed to clear signing secret: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return marketplace.ErrNotFound
	}
	r.logger.Info("signing secret cleared", "restaurant_id", restaurantID, "provider", provider)
	return nil
}
