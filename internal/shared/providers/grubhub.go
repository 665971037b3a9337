package providers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// Grubhub webhooks report money as decimal strings ("12.99").
type Grubhub struct {
	base
}

// NewGrubhub creates the Grubhub adapter.
func NewGrubhub(endpoint Endpoint) *Grubhub {
	return &Grubhub{base{
		provider: marketplace.ProviderGrubhub,
		header:   "X-Grubhub-Signature",
		endpoint: endpoint,
		outbound: map[marketplace.OrderStatus]string{
			marketplace.StatusConfirmed: "CONFIRMED",
			marketplace.StatusPreparing: "IN_PREPARATION",
			marketplace.StatusReady:     "READY_FOR_PICKUP",
			marketplace.StatusPickedUp:  "PICKED_UP",
			marketplace.StatusCompleted: "FULFILLED",
			marketplace.StatusCancelled: "CANCELLED",
		},
	}}
}

type grubhubWebhook struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Order     struct {
		UUID         string `json:"uuid"`
		RestaurantID string `json:"restaurant_id"`
		State        string `json:"state"`
		Diner        struct {
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
			Phone     string `json:"phone"`
			Email     string `json:"email"`
		} `json:"diner"`
		DeliveryInfo struct {
			Address struct {
				Address1 string `json:"address1"`
				Address2 string `json:"address2"`
				City     string `json:"city"`
				State    string `json:"state"`
				Zip      string `json:"zip"`
			} `json:"address"`
			Instructions string `json:"instructions"`
		} `json:"delivery_info"`
		Lines []struct {
			ExternalID string `json:"external_id"`
			Name       string `json:"name"`
			Quantity   int    `json:"quantity"`
			Price      string `json:"price"`
		} `json:"lines"`
		Charges struct {
			Subtotal    string `json:"subtotal"`
			Tax         string `json:"tax"`
			DeliveryFee string `json:"delivery_fee"`
			Total       string `json:"total"`
		} `json:"charges"`
	} `json:"order"`
}

// ParseInbound normalizes a Grubhub webhook.
func (g *Grubhub) ParseInbound(rawBody []byte) (*marketplace.CanonicalEvent, error) {
	var w grubhubWebhook
	if err := decode(rawBody, &w); err != nil {
		return nil, err
	}
	status, err := normalizeStatus(w.Order.State)
	if err != nil {
		return nil, err
	}

	o := w.Order
	var totals marketplace.Totals
	for _, f := range []struct {
		raw string
		dst *int64
	}{
		{o.Charges.Subtotal, &totals.Subtotal},
		{o.Charges.Tax, &totals.Tax},
		{o.Charges.DeliveryFee, &totals.DeliveryFee},
		{o.Charges.Total, &totals.Total},
	} {
		if *f.dst, err = parseCents(f.raw); err != nil {
			return nil, err
		}
	}

	event := &marketplace.CanonicalEvent{
		Provider:        g.provider,
		EventID:         w.ID,
		EventType:       w.Type,
		ExternalOrderID: o.UUID,
		ExternalStoreID: o.RestaurantID,
		Status:          status,
		Customer: marketplace.Customer{
			FirstName: o.Diner.FirstName,
			LastName:  o.Diner.LastName,
			Phone:     o.Diner.Phone,
			Email:     o.Diner.Email,
		},
		DeliveryAddress: marketplace.Address{
			Line1:        o.DeliveryInfo.Address.Address1,
			Line2:        o.DeliveryInfo.Address.Address2,
			City:         o.DeliveryInfo.Address.City,
			State:        o.DeliveryInfo.Address.State,
			PostalCode:   o.DeliveryInfo.Address.Zip,
			Instructions: o.DeliveryInfo.Instructions,
		},
		Totals:     totals,
		OccurredAt: w.Timestamp.UTC(),
	}
	for _, line := range o.Lines {
		price, err := parseCents(line.Price)
		if err != nil {
			return nil, err
		}
		event.Items = append(event.Items, marketplace.LineItem{
			ExternalItemID: line.ExternalID,
			Name:           line.Name,
			Quantity:       line.Quantity,
			UnitPrice:      price,
		})
	}

	if err := event.Validate(); err != nil {
		return nil, err
	}
	return event, nil
}

// BuildOutbound issues PUT /pos/v1/merchant/{store}/orders/{id}/status.
func (g *Grubhub) BuildOutbound(ctx context.Context, update StatusUpdate) (*http.Request, error) {
	status, err := g.outboundStatus(update.Status)
	if err != nil {
		return nil, err
	}
	path := "/pos/v1/merchant/" + url.PathEscape(update.ExternalStoreID) +
		"/orders/" + url.PathEscape(update.ExternalOrderID) + "/status"
	return g.newJSONRequest(ctx, http.MethodPut, path, map[string]string{
		"status": status,
	}, update)
}

// parseCents converts a decimal amount string into minor units without
// going through float. Empty means zero. Only digits, one optional leading
// minus and at most two decimals are accepted.
func parseCents(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	if !allDigits(whole) || !allDigits(frac) || whole+frac == "" {
		return 0, fmt.Errorf("%w: invalid amount %q", marketplace.ErrMalformedPayload, raw)
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("%w: amount %q has more than two decimals", marketplace.ErrMalformedPayload, raw)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w > (math.MaxInt64-99)/100 {
		return 0, fmt.Errorf("%w: amount %q out of range", marketplace.ErrMalformedPayload, raw)
	}
	f, _ := strconv.ParseInt(frac, 10, 64)
	cents := w*100 + f
	if neg {
		cents = -cents
	}
	return cents, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
