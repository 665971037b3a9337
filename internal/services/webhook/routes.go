package webhook

import (
	"net/http"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// Paths maps each marketplace to its webhook route.
var Paths = map[marketplace.Provider]string{
	marketplace.ProviderDoorDash: "/webhooks/doordash-marketplace",
	marketplace.ProviderUberEats: "/webhooks/ubereats",
	marketplace.ProviderGrubhub:  "/webhooks/grubhub",
}

// RegisterRoutes registers the webhook service routes on the provided mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	for provider, path := range Paths {
		mux.HandleFunc(path, h.HandleWebhook(provider))
	}
	mux.HandleFunc("/health", h.HandleHealth)
}
