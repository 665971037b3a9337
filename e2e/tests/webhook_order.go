package tests

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cornjacket/marketplace-sync/e2e/client"
	"github.com/cornjacket/marketplace-sync/e2e/runner"
)

func init() {
	runner.Register(&runner.Test{
		Name:        "webhook-order",
		Description: "Signed webhook creates an order; replay is a duplicate; bad signature is rejected",
		Run:         runWebhookOrderTest,
	})
}

func runWebhookOrderTest(ctx context.Context, cfg *runner.Config) error {
	r, err := onboard(ctx, cfg)
	if err != nil {
		return err
	}

	eventID := client.UniqueID("evt")
	orderID := client.UniqueID("dd-order")
	body := doordashOrder(eventID, orderID, r.storeID, "CONFIRMED")

	// 1. First delivery creates the order
	resp, err := client.PostWebhook(ctx, r.cfg, doordashPath, doordashHeader, r.secret, body)
	if err != nil {
		return fmt.Errorf("failed to post webhook: %w", err)
	}
	if resp.Status != "processed" {
		return fmt.Errorf("expected status 'processed', got '%s'", resp.Status)
	}
	if resp.OrderID == "" {
		return fmt.Errorf("expected non-empty orderId")
	}
	if len(resp.UnmappedItems) != 1 || resp.UnmappedItems[0] != "sku-shake" {
		return fmt.Errorf("expected unmapped [sku-shake], got %v", resp.UnmappedItems)
	}

	// 2. Redelivery is acknowledged without side effects
	dup, err := client.PostWebhook(ctx, r.cfg, doordashPath, doordashHeader, r.secret, body)
	if err != nil {
		return fmt.Errorf("failed to post duplicate webhook: %w", err)
	}
	if dup.Status != "duplicate" {
		return fmt.Errorf("expected status 'duplicate', got '%s'", dup.Status)
	}

	// 3. Wrong secret is rejected
	forged := doordashOrder(client.UniqueID("evt"), orderID, r.storeID, "PREPARING")
	_, err = client.PostWebhook(ctx, r.cfg, doordashPath, doordashHeader, "not-the-secret", forged)
	var statusErr *client.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusBadRequest {
		return fmt.Errorf("expected 400 for bad signature, got %v", err)
	}

	// 4. A webhook status change is not pushed back to its own marketplace
	next := doordashOrder(client.UniqueID("evt"), orderID, r.storeID, "BEING_PREPARED")
	if _, err := client.PostWebhook(ctx, r.cfg, doordashPath, doordashHeader, r.secret, next); err != nil {
		return fmt.Errorf("failed to post status webhook: %w", err)
	}
	jobs, err := r.admin.ListJobs(ctx, resp.OrderID)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}
	if len(jobs) != 0 {
		return fmt.Errorf("expected no jobs for a marketplace-originated change, got %d", len(jobs))
	}

	return nil
}
