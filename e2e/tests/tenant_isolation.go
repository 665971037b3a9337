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
		Name:        "tenant-isolation",
		Description: "A restaurant token cannot reach another restaurant's admin routes",
		Run:         runTenantIsolationTest,
	})
}

func runTenantIsolationTest(ctx context.Context, cfg *runner.Config) error {
	a, err := onboard(ctx, cfg)
	if err != nil {
		return err
	}
	b, err := onboard(ctx, cfg)
	if err != nil {
		return err
	}

	// 1. A's token on B's routes is forbidden
	_, err = a.admin.As(b.id).ListJobs(ctx, "any")
	var statusErr *client.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusForbidden {
		return fmt.Errorf("expected 403 across tenants, got %v", err)
	}

	// 2. B's webhook secret does not verify for A's store
	body := doordashOrder(client.UniqueID("evt"), client.UniqueID("dd-order"), a.storeID, "CONFIRMED")
	resp, err := client.PostWebhook(ctx, a.cfg, doordashPath, doordashHeader, b.secret, body)
	if err == nil {
		return fmt.Errorf("expected rejection for a store/secret mismatch, got %s", resp.Status)
	}

	// 3. A fresh restaurant is not ready for rollout
	summary, err := a.admin.PilotSummary(ctx)
	if err != nil {
		return fmt.Errorf("failed to read pilot summary: %w", err)
	}
	if summary.RestaurantID != a.id {
		return fmt.Errorf("expected summary for %s, got %s", a.id, summary.RestaurantID)
	}
	if summary.RolloutReady {
		return fmt.Errorf("expected a restaurant without jobs to not be rollout ready")
	}

	return nil
}
