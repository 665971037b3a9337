package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// MaxBodyBytes caps an inbound webhook body.
const MaxBodyBytes = 1 << 20

// Handler handles HTTP requests for the webhook service.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a new webhook HTTP handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.With("handler", "webhook"),
	}
}

// HandleWebhook returns the handler for POST /webhooks/{provider}.
func (h *Handler) HandleWebhook(provider marketplace.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		header, err := h.service.SignatureHeader(provider)
		if err != nil {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}

		// The signature covers the exact bytes received, so the body is read
		// raw and never re-encoded.
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			h.writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}

		result, err := h.service.Handle(r.Context(), provider, body, r.Header.Get(header))
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, result)
	}
}

// HandleHealth handles GET /health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, marketplace.ErrInvalidSignature):
		h.writeError(w, http.StatusBadRequest, "invalid signature")
	case errors.Is(err, marketplace.ErrMalformedPayload):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, marketplace.ErrUnknownProvider):
		h.writeError(w, http.StatusNotFound, err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
