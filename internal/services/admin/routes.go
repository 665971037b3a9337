package admin

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cornjacket/marketplace-sync/internal/shared/auth"
)

// Routes builds the admin router. Everything under /restaurant/{id} needs a
// bearer token whose restaurant matches {id}; /health and /metrics are open.
func (h *Handler) Routes(validator *auth.Validator, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HandleHealth)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/restaurant/{id}", func(r chi.Router) {
		r.Use(auth.Middleware(validator))
		r.Use(requireRestaurant)

		r.Route("/marketplace", func(r chi.Router) {
			r.Get("/integrations", h.HandleListIntegrations)
			r.Put("/integrations/{provider}", h.HandleSaveIntegration)
			r.Delete("/integrations/{provider}/secret", h.HandleClearSecret)

			r.Get("/menu-mappings", h.HandleListMappings)
			r.Post("/menu-mappings", h.HandleSaveMapping)
			r.Delete("/menu-mappings/{mappingId}", h.HandleDeleteMapping)

			r.Get("/status-sync/jobs", h.HandleListJobs)
			r.Post("/status-sync/jobs/{jobId}/retry", h.HandleRetryJob)
			r.Post("/status-sync/process", h.HandleProcess)

			r.Get("/pilot/summary", h.HandlePilotSummary)
		})

		r.Post("/orders/{orderId}/status", h.HandleOrderStatus)
	})

	return r
}

// requireRestaurant rejects tokens issued for a different restaurant.
func requireRestaurant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFrom(r.Context())
		if !ok || claims.RestaurantID != chi.URLParam(r, "id") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "token is not valid for this restaurant"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
