package webhook

import (
	"context"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
	"github.com/cornjacket/marketplace-sync/internal/shared/providers"
)

// IntegrationLookup lists the integrations a webhook may belong to.
type IntegrationLookup interface {
	// ListEnabled returns enabled integrations for provider that have a secret.
	ListEnabled(ctx context.Context, provider marketplace.Provider) ([]marketplace.IntegrationConfig, error)
}

// AdapterRegistry resolves a provider's adapter.
type AdapterRegistry interface {
	Get(provider marketplace.Provider) (providers.Adapter, error)
}

// OrderNotifier announces newly created marketplace orders after commit.
type OrderNotifier interface {
	OrderReceived(ctx context.Context, draft *marketplace.OrderDraft) error
}

// MetricsRecorder counts webhook outcomes.
type MetricsRecorder interface {
	RecordWebhook(provider marketplace.Provider, outcome string)
	RecordUnmapped(provider marketplace.Provider, n int)
}
