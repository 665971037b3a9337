// Package translator applies a verified canonical marketplace event to the
// order ledger: dedupe, link lookup, order creation with menu resolution,
// and rank-guarded status updates.
package translator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofrs/uuid/v5"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/clock"
	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// Outcome describes what applying one event did.
type Outcome struct {
	Duplicate bool
	OrderID   string
	// Created is set when the event produced a new internal order.
	Created bool
	// Applied is set when the event advanced an existing order's status.
	Applied bool
	Draft    *marketplace.OrderDraft
	Jobs     []*marketplace.StatusSyncJob
	Unmapped []string
}

// Translator converts canonical events into order ledger calls.
type Translator struct {
	logger *slog.Logger
}

// New creates a Translator.
func New(logger *slog.Logger) *Translator {
	return &Translator{
		logger: logger.With("component", "order-translator"),
	}
}

// Apply records the event in the idempotency ledger and, if it is new,
// creates or updates the linked order. All writes go through repos so the
// caller's unit of work commits or discards them together.
func (t *Translator) Apply(ctx context.Context, repos Repositories, integration *marketplace.IntegrationConfig, event *marketplace.CanonicalEvent) (*Outcome, error) {
	isNew, err := repos.Events.RecordIfNew(ctx, event.Provider, event.EventID, integration.RestaurantID)
	if err != nil {
		return nil, err
	}
	if !isNew {
		return &Outcome{Duplicate: true}, nil
	}

	link, err := repos.Links.Find(ctx, event.Provider, event.ExternalOrderID)
	switch {
	case errors.Is(err, marketplace.ErrNotFound):
		return t.create(ctx, repos, integration, event)
	case err != nil:
		return nil, err
	}
	if link.RestaurantID != integration.RestaurantID {
		return nil, fmt.Errorf("%w: order %s is linked to another restaurant", marketplace.ErrMalformedPayload, event.ExternalOrderID)
	}
	return t.update(ctx, repos, link, event)
}

func (t *Translator) create(ctx context.Context, repos Repositories, integration *marketplace.IntegrationConfig, event *marketplace.CanonicalEvent) (*Outcome, error) {
	orderID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate order id: %w", err)
	}

	link := &marketplace.OrderLink{
		OrderID:         orderID.String(),
		RestaurantID:    integration.RestaurantID,
		Provider:        event.Provider,
		ExternalOrderID: event.ExternalOrderID,
		ExternalStoreID: event.ExternalStoreID,
		CreatedAt:       clock.Now(),
	}
	inserted, err := repos.Links.InsertIfAbsent(ctx, link)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// Another delivery of the same order (different event id) won the race.
		existing, err := repos.Links.Find(ctx, event.Provider, event.ExternalOrderID)
		if err != nil {
			return nil, err
		}
		return t.update(ctx, repos, existing, event)
	}

	mappings, err := repos.Mappings.Resolve(ctx, integration.RestaurantID, event.Provider, event.ExternalItemIDs())
	if err != nil {
		return nil, err
	}

	draft := &marketplace.OrderDraft{
		ID:              link.OrderID,
		RestaurantID:    integration.RestaurantID,
		Source:          event.Provider,
		ExternalOrderID: event.ExternalOrderID,
		Status:          event.Status,
		Customer:        event.Customer,
		DeliveryAddress: event.DeliveryAddress,
		Lines:           resolveLines(event.Items, mappings),
		Totals:          event.Totals,
		PlacedAt:        event.OccurredAt,
	}
	unmapped := draft.UnmappedItemIDs()
	draft.NeedsReview = len(unmapped) > 0

	if err := repos.Orders.Create(ctx, draft); err != nil {
		return nil, err
	}

	if draft.NeedsReview {
		t.logger.Warn("order created with unmapped items",
			"order_id", draft.ID,
			"provider", event.Provider,
			"external_order_id", event.ExternalOrderID,
			"unmapped_items", unmapped,
		)
	}

	return &Outcome{
		OrderID:  draft.ID,
		Created:  true,
		Draft:    draft,
		Unmapped: unmapped,
	}, nil
}

func (t *Translator) update(ctx context.Context, repos Repositories, link *marketplace.OrderLink, event *marketplace.CanonicalEvent) (*Outcome, error) {
	order, err := repos.Orders.Lock(ctx, link.OrderID)
	if err != nil {
		return nil, err
	}

	out := &Outcome{OrderID: link.OrderID}
	if !marketplace.Advances(order.Status, event.Status) {
		t.logger.Info("ignoring non-advancing status",
			"order_id", link.OrderID,
			"provider", event.Provider,
			"current", order.Status,
			"incoming", event.Status,
		)
		return out, nil
	}

	jobs, err := repos.Orders.Transition(ctx, link.OrderID, event.Status, marketplace.OriginFor(event.Provider))
	if err != nil {
		return nil, err
	}
	out.Applied = true
	out.Jobs = jobs
	return out, nil
}

// resolveLines keeps every cart line. Lines without a mapping carry the
// marketplace name and no menu item so staff can fix them up.
func resolveLines(items []marketplace.LineItem, mappings map[string]marketplace.MenuItemMapping) []marketplace.OrderLine {
	lines := make([]marketplace.OrderLine, 0, len(items))
	for _, item := range items {
		line := marketplace.OrderLine{
			ExternalItemID: item.ExternalItemID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
		}
		if m, ok := mappings[item.ExternalItemID]; ok {
			line.MenuItemID = m.MenuItemID
		} else {
			line.Unmapped = true
		}
		lines = append(lines, line)
	}
	return lines
}
