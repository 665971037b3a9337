package tests

import (
	"context"
	"fmt"
	"time"

	"github.com/cornjacket/marketplace-sync/e2e/client"
	"github.com/cornjacket/marketplace-sync/e2e/runner"
)

func init() {
	runner.Register(&runner.Test{
		Name:        "status-sync",
		Description: "POS status change is pushed to the marketplace, surviving one 503",
		Run:         runStatusSyncTest,
	})
}

func runStatusSyncTest(ctx context.Context, cfg *runner.Config) error {
	if cfg.Marketplace == nil {
		return fmt.Errorf("fake marketplace is not running; set E2E_FAKE_MARKETPLACE_ADDR")
	}

	r, err := onboard(ctx, cfg)
	if err != nil {
		return err
	}

	externalOrderID := client.UniqueID("dd-order")
	body := doordashOrder(client.UniqueID("evt"), externalOrderID, r.storeID, "CONFIRMED")
	resp, err := client.PostWebhook(ctx, r.cfg, doordashPath, doordashHeader, r.secret, body)
	if err != nil {
		return fmt.Errorf("failed to post webhook: %w", err)
	}

	// 1. Kitchen marks the order ready
	cfg.Marketplace.FailNext(1)
	tr, err := r.admin.TransitionOrder(ctx, resp.OrderID, "ready")
	if err != nil {
		return fmt.Errorf("failed to transition order: %w", err)
	}
	if !tr.Applied || len(tr.Jobs) != 1 {
		return fmt.Errorf("expected one enqueued job, got applied=%v jobs=%d", tr.Applied, len(tr.Jobs))
	}

	// 2. The job converges to SUCCESS after one retry
	jobs, err := r.admin.WaitForJobs(ctx, resp.OrderID, 25*time.Second)
	if err != nil {
		return err
	}
	job := jobs[0]
	if job.Status != "SUCCESS" {
		return fmt.Errorf("expected SUCCESS, got %s (%s)", job.Status, job.LastError)
	}
	if job.AttemptCount < 1 {
		return fmt.Errorf("expected the 503 to count as an attempt, got %d", job.AttemptCount)
	}

	// 3. The marketplace saw its own status vocabulary and a stable key
	calls := cfg.Marketplace.CallsFor(externalOrderID)
	if len(calls) < 2 {
		return fmt.Errorf("expected at least 2 calls to the marketplace, got %d", len(calls))
	}
	last := calls[len(calls)-1]
	if last.Body["order_status"] != "READY_FOR_PICKUP" {
		return fmt.Errorf("expected READY_FOR_PICKUP, got %v", last.Body["order_status"])
	}
	for _, c := range calls {
		if c.IdempotencyKey != job.ID {
			return fmt.Errorf("expected idempotency key %s, got %s", job.ID, c.IdempotencyKey)
		}
	}

	// 4. Repeating the status is a no-op
	again, err := r.admin.TransitionOrder(ctx, resp.OrderID, "ready")
	if err != nil {
		return fmt.Errorf("failed to repeat transition: %w", err)
	}
	if again.Applied {
		return fmt.Errorf("expected repeated status to be a no-op")
	}

	return nil
}
