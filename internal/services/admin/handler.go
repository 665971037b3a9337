package admin

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cornjacket/marketplace-sync/internal/services/pilot"
	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

const maxRequestBytes = 64 << 10

// Handler handles HTTP requests for the admin service.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a new admin HTTP handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.With("handler", "admin"),
	}
}

// HandleListIntegrations handles GET /restaurant/{id}/marketplace/integrations
func (h *Handler) HandleListIntegrations(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListIntegrations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"integrations": out})
}

// HandleSaveIntegration handles PUT /restaurant/{id}/marketplace/integrations/{provider}
func (h *Handler) HandleSaveIntegration(w http.ResponseWriter, r *http.Request) {
	var in IntegrationInput
	if !h.decode(w, r, &in) {
		return
	}
	out, err := h.service.SaveIntegration(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "provider"), in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

// HandleClearSecret handles DELETE /restaurant/{id}/marketplace/integrations/{provider}/secret
func (h *Handler) HandleClearSecret(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearSecret(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "provider")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListMappings handles GET /restaurant/{id}/marketplace/menu-mappings
func (h *Handler) HandleListMappings(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListMappings(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("provider"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"mappings": out})
}

// HandleSaveMapping handles POST /restaurant/{id}/marketplace/menu-mappings
func (h *Handler) HandleSaveMapping(w http.ResponseWriter, r *http.Request) {
	var in MappingInput
	if !h.decode(w, r, &in) {
		return
	}
	out, err := h.service.SaveMapping(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

// HandleDeleteMapping handles DELETE /restaurant/{id}/marketplace/menu-mappings/{mappingId}
func (h *Handler) HandleDeleteMapping(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteMapping(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "mappingId")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListJobs handles GET /restaurant/{id}/marketplace/status-sync/jobs
func (h *Handler) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, ok := h.intParam(w, q.Get("limit"), "limit")
	if !ok {
		return
	}
	jobs, err := h.service.ListJobs(r.Context(), chi.URLParam(r, "id"), q.Get("status"), q.Get("orderId"), limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

// HandleRetryJob handles POST /restaurant/{id}/marketplace/status-sync/jobs/{jobId}/retry
func (h *Handler) HandleRetryJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.RetryJob(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "jobId"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}

type processRequest struct {
	Limit int `json:"limit"`
}

// HandleProcess handles POST /restaurant/{id}/marketplace/status-sync/process
// An empty body selects the configured batch size.
func (h *Handler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}
	result, err := h.service.Process(r.Context(), chi.URLParam(r, "id"), req.Limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandlePilotSummary handles GET /restaurant/{id}/marketplace/pilot/summary
func (h *Handler) HandlePilotSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	window, ok := h.intParam(w, q.Get("windowHours"), "windowHours")
	if !ok {
		return
	}
	summary, err := h.service.PilotSummary(r.Context(), chi.URLParam(r, "id"), q.Get("provider"), window)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

type statusRequest struct {
	Status string `json:"status"`
}

// HandleOrderStatus handles POST /restaurant/{id}/orders/{orderId}/status
func (h *Handler) HandleOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !h.decode(w, r, &req) {
		return
	}
	t, err := h.service.TransitionOrder(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "orderId"), req.Status)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, t)
}

// HandleHealth handles GET /health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(v); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (h *Handler) decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (h *Handler) intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid "+name+" parameter")
		return 0, false
	}
	return n, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, marketplace.ErrUnknownProvider),
		errors.Is(err, marketplace.ErrInvalidStatus),
		errors.Is(err, pilot.ErrInvalidWindow):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, marketplace.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, marketplace.ErrConflict),
		errors.Is(err, marketplace.ErrJobNotRetryable):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("admin request failed", "error", err)
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
