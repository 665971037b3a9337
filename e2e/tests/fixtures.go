package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cornjacket/marketplace-sync/e2e/client"
	"github.com/cornjacket/marketplace-sync/e2e/runner"
)

const (
	doordashPath   = "/webhooks/doordash-marketplace"
	doordashHeader = "X-DoorDash-Signature"
)

// restaurant is a freshly onboarded tenant with a DoorDash integration.
type restaurant struct {
	id      string
	storeID string
	secret  string
	admin   *client.Admin
	cfg     *client.Config
}

func clientConfig(cfg *runner.Config) *client.Config {
	return &client.Config{
		WebhookURL: cfg.WebhookURL,
		AdminURL:   cfg.AdminURL,
		JWTSecret:  cfg.JWTSecret,
	}
}

func onboard(ctx context.Context, cfg *runner.Config) (*restaurant, error) {
	c := clientConfig(cfg)
	r := &restaurant{
		id:      client.UniqueID("e2e-rest"),
		storeID: client.UniqueID("dd-store"),
		secret:  client.UniqueID("whsec"),
		cfg:     c,
	}

	admin, err := client.NewAdmin(c, r.id)
	if err != nil {
		return nil, err
	}
	r.admin = admin

	if err := admin.SaveIntegration(ctx, "doordash", r.storeID, r.secret); err != nil {
		return nil, fmt.Errorf("failed to save integration: %w", err)
	}
	if err := admin.SaveMapping(ctx, "doordash", "sku-burger", "menu-burger"); err != nil {
		return nil, fmt.Errorf("failed to save mapping: %w", err)
	}
	return r, nil
}

// doordashOrder builds a DoorDash webhook body with one mapped and one
// unmapped item.
func doordashOrder(eventID, orderID, storeID, status string) []byte {
	body, _ := json.Marshal(map[string]any{
		"event_id":   eventID,
		"event_type": "order.status_changed",
		"created_at": time.Now().UTC().Format(time.RFC3339),
		"order": map[string]any{
			"id":       orderID,
			"store_id": storeID,
			"status":   status,
			"consumer": map[string]string{"first_name": "Ada", "last_name": "Lovelace"},
			"items": []map[string]any{
				{"merchant_supplied_id": "sku-burger", "name": "Burger", "quantity": 2, "price": 899},
				{"merchant_supplied_id": "sku-shake", "name": "Shake", "quantity": 1, "price": 499},
			},
			"subtotal":     2297,
			"tax":          184,
			"delivery_fee": 299,
			"total":        2780,
		},
	})
	return body
}
