package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cornjacket/marketplace-sync/internal/services/webhook/translator"
	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
	"github.com/cornjacket/marketplace-sync/internal/shared/providers"
)

// Webhook outcomes as reported to callers and metrics.
const (
	StatusProcessed = "processed"
	StatusDuplicate = "duplicate"

	outcomeInvalidSignature = "invalid_signature"
	outcomeMalformed        = "malformed"
	outcomeError            = "error"
)

// Result is the response to an accepted webhook.
type Result struct {
	Status        string   `json:"status"`
	OrderID       string   `json:"orderId,omitempty"`
	UnmappedItems []string `json:"unmappedItems,omitempty"`
	Created       bool     `json:"-"`
	Applied       bool     `json:"-"`
}

// Service verifies, dedupes and applies marketplace webhooks.
type Service struct {
	integrations IntegrationLookup
	adapters     AdapterRegistry
	uow          translator.UnitOfWork
	translator   *translator.Translator
	notifier     OrderNotifier
	metrics      MetricsRecorder
	logger       *slog.Logger
}

// NewService creates a webhook service. notifier and metrics may be nil.
func NewService(
	integrations IntegrationLookup,
	adapters AdapterRegistry,
	uow translator.UnitOfWork,
	notifier OrderNotifier,
	metrics MetricsRecorder,
	logger *slog.Logger,
) *Service {
	logger = logger.With("service", "webhook")
	return &Service{
		integrations: integrations,
		adapters:     adapters,
		uow:          uow,
		translator:   translator.New(logger),
		notifier:     notifier,
		metrics:      metrics,
		logger:       logger,
	}
}

// SignatureHeader returns the header carrying provider's signature.
func (s *Service) SignatureHeader(provider marketplace.Provider) (string, error) {
	adapter, err := s.adapters.Get(provider)
	if err != nil {
		return "", err
	}
	return adapter.SignatureHeader(), nil
}

// Handle processes one raw webhook delivery. Nothing is parsed or written
// until the signature verifies against an enabled integration's secret.
func (s *Service) Handle(ctx context.Context, provider marketplace.Provider, rawBody []byte, signature string) (*Result, error) {
	result, err := s.handle(ctx, provider, rawBody, signature)
	s.record(provider, result, err)
	return result, err
}

func (s *Service) handle(ctx context.Context, provider marketplace.Provider, rawBody []byte, signature string) (*Result, error) {
	adapter, err := s.adapters.Get(provider)
	if err != nil {
		return nil, err
	}

	candidates, err := s.authenticate(ctx, adapter, rawBody, signature)
	if err != nil {
		return nil, err
	}

	event, err := adapter.ParseInbound(rawBody)
	if err != nil {
		if !errors.Is(err, marketplace.ErrMalformedPayload) {
			err = fmt.Errorf("%w: %v", marketplace.ErrMalformedPayload, err)
		}
		return nil, err
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}

	integration := matchStore(candidates, event.ExternalStoreID)
	if integration == nil {
		return nil, fmt.Errorf("%w: store %s is not linked to a verified integration", marketplace.ErrMalformedPayload, event.ExternalStoreID)
	}

	logger := s.logger.With(
		"provider", provider,
		"event_id", event.EventID,
		"restaurant_id", integration.RestaurantID,
		"external_order_id", event.ExternalOrderID,
	)

	var out *translator.Outcome
	err = s.uow.Do(ctx, func(ctx context.Context, repos translator.Repositories) error {
		var err error
		out, err = s.translator.Apply(ctx, repos, integration, event)
		return err
	})
	if err != nil {
		logger.Error("failed to apply webhook", "error", err)
		return nil, err
	}

	if out.Duplicate {
		logger.Info("duplicate webhook acknowledged")
		return &Result{Status: StatusDuplicate}, nil
	}

	logger.Info("webhook processed",
		"order_id", out.OrderID,
		"created", out.Created,
		"applied", out.Applied,
		"jobs_enqueued", len(out.Jobs),
	)

	if out.Created && s.notifier != nil {
		if err := s.notifier.OrderReceived(ctx, out.Draft); err != nil {
			logger.Warn("failed to publish order received", "order_id", out.OrderID, "error", err)
		}
	}

	return &Result{
		Status:        StatusProcessed,
		OrderID:       out.OrderID,
		UnmappedItems: out.Unmapped,
		Created:       out.Created,
		Applied:       out.Applied,
	}, nil
}

// authenticate returns every enabled integration whose secret verifies the
// body. The marketplace store id in the payload picks among them afterwards.
func (s *Service) authenticate(ctx context.Context, adapter providers.Adapter, rawBody []byte, signature string) ([]marketplace.IntegrationConfig, error) {
	if signature == "" {
		return nil, fmt.Errorf("%w: missing %s header", marketplace.ErrInvalidSignature, adapter.SignatureHeader())
	}

	integrations, err := s.integrations.ListEnabled(ctx, adapter.Provider())
	if err != nil {
		return nil, fmt.Errorf("failed to load integrations: %w", err)
	}

	var verified []marketplace.IntegrationConfig
	for _, in := range integrations {
		if in.AcceptsWebhooks() && adapter.Verify(rawBody, signature, in.WebhookSigningSecret) {
			verified = append(verified, in)
		}
	}
	if len(verified) == 0 {
		return nil, marketplace.ErrInvalidSignature
	}
	return verified, nil
}

func matchStore(candidates []marketplace.IntegrationConfig, storeID string) *marketplace.IntegrationConfig {
	for i := range candidates {
		if candidates[i].ExternalStoreID == storeID {
			return &candidates[i]
		}
	}
	return nil
}

func (s *Service) record(provider marketplace.Provider, result *Result, err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case err == nil:
		s.metrics.RecordWebhook(provider, result.Status)
		if n := len(result.UnmappedItems); n > 0 {
			s.metrics.RecordUnmapped(provider, n)
		}
	case errors.Is(err, marketplace.ErrInvalidSignature):
		s.metrics.RecordWebhook(provider, outcomeInvalidSignature)
	case errors.Is(err, marketplace.ErrMalformedPayload):
		s.metrics.RecordWebhook(provider, outcomeMalformed)
	default:
		s.metrics.RecordWebhook(provider, outcomeError)
	}
}
