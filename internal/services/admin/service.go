package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/cornjacket/marketplace-sync/internal/services/pilot"
	"github.com/cornjacket/marketplace-sync/internal/services/statussync"
	"github.com/cornjacket/marketplace-sync/internal/services/statussync/worker"
	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// ErrInvalidRequest marks a request the caller must fix before retrying.
var ErrInvalidRequest = errors.New("invalid request")

const maxProcessLimit = 500

// Integration is the API view of an integration. The signing secret is
// write-only and never leaves the service.
type Integration struct {
	RestaurantID     string    `json:"restaurantId"`
	Provider         string    `json:"provider"`
	Enabled          bool      `json:"enabled"`
	ExternalStoreID  string    `json:"externalStoreId"`
	HasSigningSecret bool      `json:"hasSigningSecret"`
	AcceptsWebhooks  bool      `json:"acceptsWebhooks"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func toIntegration(c *marketplace.IntegrationConfig) Integration {
	return Integration{
		RestaurantID:     c.RestaurantID,
		Provider:         c.Provider.String(),
		Enabled:          c.Enabled,
		ExternalStoreID:  c.ExternalStoreID,
		HasSigningSecret: c.HasSecret(),
		AcceptsWebhooks:  c.AcceptsWebhooks(),
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

// IntegrationInput is the body of an integration upsert.
type IntegrationInput struct {
	Enabled              bool   `json:"enabled"`
	ExternalStoreID      string `json:"externalStoreId"`
	WebhookSigningSecret string `json:"webhookSigningSecret"`
}

// MappingInput is the body of a menu mapping upsert.
type MappingInput struct {
	Provider         string `json:"provider"`
	ExternalItemID   string `json:"externalItemId"`
	ExternalItemName string `json:"externalItemName"`
	MenuItemID       string `json:"menuItemId"`
}

// Service implements the restaurant-scoped admin operations.
type Service struct {
	integrations IntegrationStore
	mappings     MappingStore
	queue        JobQueue
	processor    JobProcessor
	reporter     PilotReporter
	orders       OrderTransitioner
	logger       *slog.Logger
}

// Deps bundles the Service collaborators.
type Deps struct {
	Integrations IntegrationStore
	Mappings     MappingStore
	Queue        JobQueue
	Processor    JobProcessor
	Reporter     PilotReporter
	Orders       OrderTransitioner
}

// NewService creates a new admin service.
func NewService(deps Deps, logger *slog.Logger) *Service {
	return &Service{
		integrations: deps.Integrations,
		mappings:     deps.Mappings,
		queue:        deps.Queue,
		processor:    deps.Processor,
		reporter:     deps.Reporter,
		orders:       deps.Orders,
		logger:       logger,
	}
}

// ListIntegrations returns every integration of a restaurant.
func (s *Service) ListIntegrations(ctx context.Context, restaurantID string) ([]Integration, error) {
	configs, err := s.integrations.List(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	out := make([]Integration, 0, len(configs))
	for i := range configs {
		out = append(out, toIntegration(&configs[i]))
	}
	return out, nil
}

// SaveIntegration creates or updates one provider integration. An empty
// secret keeps the stored one.
func (s *Service) SaveIntegration(ctx context.Context, restaurantID, provider string, in IntegrationInput) (*Integration, error) {
	p, err := marketplace.ParseProvider(provider)
	if err != nil {
		return nil, err
	}
	if in.ExternalStoreID == "" {
		return nil, fmt.Errorf("%w: externalStoreId is required", ErrInvalidRequest)
	}

	saved, err := s.integrations.Upsert(ctx, &marketplace.IntegrationConfig{
		RestaurantID:         restaurantID,
		Provider:             p,
		Enabled:              in.Enabled,
		ExternalStoreID:      in.ExternalStoreID,
		WebhookSigningSecret: in.WebhookSigningSecret,
	})
	if err != nil {
		return nil, err
	}
	if saved.Enabled && !saved.HasSecret() {
		s.logger.Warn("integration enabled without a signing secret; webhooks will be rejected",
			"restaurant_id", restaurantID,
			"provider", p,
		)
	}
	view := toIntegration(saved)
	return &view, nil
}

// ClearSecret removes the signing secret and disables the integration.
func (s *Service) ClearSecret(ctx context.Context, restaurantID, provider string) error {
	p, err := marketplace.ParseProvider(provider)
	if err != nil {
		return err
	}
	return s.integrations.ClearSecret(ctx, restaurantID, p)
}

// ListMappings returns a restaurant's menu mappings, optionally for one provider.
func (s *Service) ListMappings(ctx context.Context, restaurantID, provider string) ([]marketplace.MenuItemMapping, error) {
	var p marketplace.Provider
	if provider != "" {
		var err error
		if p, err = marketplace.ParseProvider(provider); err != nil {
			return nil, err
		}
	}
	mappings, err := s.mappings.List(ctx, restaurantID, p)
	if err != nil {
		return nil, err
	}
	if mappings == nil {
		mappings = []marketplace.MenuItemMapping{}
	}
	return mappings, nil
}

// SaveMapping creates a mapping or repoints the existing one for the same
// external item.
func (s *Service) SaveMapping(ctx context.Context, restaurantID string, in MappingInput) (*marketplace.MenuItemMapping, error) {
	p, err := marketplace.ParseProvider(in.Provider)
	if err != nil {
		return nil, err
	}
	switch {
	case in.ExternalItemID == "":
		return nil, fmt.Errorf("%w: externalItemId is required", ErrInvalidRequest)
	case in.MenuItemID == "":
		return nil, fmt.Errorf("%w: menuItemId is required", ErrInvalidRequest)
	}
	return s.mappings.Upsert(ctx, &marketplace.MenuItemMapping{
		RestaurantID:     restaurantID,
		Provider:         p,
		ExternalItemID:   in.ExternalItemID,
		ExternalItemName: in.ExternalItemName,
		MenuItemID:       in.MenuItemID,
	})
}

// DeleteMapping removes one mapping.
func (s *Service) DeleteMapping(ctx context.Context, restaurantID, mappingID string) error {
	id, err := parseID(mappingID)
	if err != nil {
		return err
	}
	return s.mappings.Delete(ctx, restaurantID, id)
}

// ListJobs returns a restaurant's status sync jobs, newest first.
func (s *Service) ListJobs(ctx context.Context, restaurantID, status, orderID string, limit int) ([]marketplace.StatusSyncJob, error) {
	filter := statussync.JobFilter{RestaurantID: restaurantID, OrderID: orderID, Limit: limit}
	if status != "" {
		js, err := marketplace.ParseJobStatus(status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		filter.Status = js
	}
	jobs, err := s.queue.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []marketplace.StatusSyncJob{}
	}
	return jobs, nil
}

// RetryJob requeues a failed or dead-lettered job.
func (s *Service) RetryJob(ctx context.Context, restaurantID, jobID string) (*marketplace.StatusSyncJob, error) {
	id, err := parseID(jobID)
	if err != nil {
		return nil, err
	}
	return s.queue.Retry(ctx, restaurantID, id)
}

// Process runs one processor pass limited to the restaurant's jobs.
func (s *Service) Process(ctx context.Context, restaurantID string, limit int) (worker.Result, error) {
	if limit < 0 || limit > maxProcessLimit {
		return worker.Result{}, fmt.Errorf("%w: limit must be between 0 and %d", ErrInvalidRequest, maxProcessLimit)
	}
	return s.processor.ProcessDue(ctx, limit, restaurantID)
}

// PilotSummary reports rollout readiness for a window.
func (s *Service) PilotSummary(ctx context.Context, restaurantID, provider string, windowHours int) (*pilot.Summary, error) {
	var p marketplace.Provider
	if provider != "" {
		var err error
		if p, err = marketplace.ParseProvider(provider); err != nil {
			return nil, err
		}
	}
	return s.reporter.Summary(ctx, restaurantID, p, windowHours)
}

// TransitionOrder applies a POS status change and enqueues sync jobs for
// every linked marketplace.
func (s *Service) TransitionOrder(ctx context.Context, restaurantID, orderID, status string) (*marketplace.Transition, error) {
	to, err := marketplace.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	t, err := s.orders.TransitionOrder(ctx, restaurantID, orderID, to)
	if err != nil {
		return nil, err
	}
	s.logger.Info("order status changed from POS",
		"restaurant_id", restaurantID,
		"order_id", orderID,
		"from", t.From,
		"to", t.To,
		"applied", t.Applied,
		"jobs", len(t.Jobs),
	)
	return t, nil
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.FromString(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid id %q", ErrInvalidRequest, s)
	}
	return id, nil
}
