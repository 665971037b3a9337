package providers

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// UberEats webhooks carry the order id and status in meta and money in
// nested amount objects.
type UberEats struct {
	base
}

// NewUberEats creates the Uber Eats adapter.
func NewUberEats(endpoint Endpoint) *UberEats {
	return &UberEats{base{
		provider: marketplace.ProviderUberEats,
		header:   "X-Uber-Signature",
		endpoint: endpoint,
		outbound: map[marketplace.OrderStatus]string{
			marketplace.StatusConfirmed: "ACCEPTED",
			marketplace.StatusPreparing: "IN_PROGRESS",
			marketplace.StatusReady:     "READY_FOR_PICKUP",
			marketplace.StatusPickedUp:  "HANDED_OFF",
			marketplace.StatusCompleted: "DELIVERED",
			marketplace.StatusCancelled: "CANCELED",
		},
	}}
}

type uberAmount struct {
	Amount       int64  `json:"amount"`
	CurrencyCode string `json:"currency_code"`
}

type ubereatsWebhook struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	EventTime int64  `json:"event_time"`
	Meta      struct {
		ResourceID string `json:"resource_id"`
		UserID     string `json:"user_id"`
		Status     string `json:"status"`
	} `json:"meta"`
	Order struct {
		DisplayID string `json:"display_id"`
		Eater     struct {
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
			Phone     string `json:"phone"`
			Email     string `json:"email"`
		} `json:"eater"`
		Delivery struct {
			Location struct {
				StreetAddress string `json:"street_address"`
				UnitNumber    string `json:"unit_number"`
				City          string `json:"city"`
				State         string `json:"state"`
				PostalCode    string `json:"postal_code"`
			} `json:"location"`
			Notes string `json:"notes"`
		} `json:"delivery"`
		Cart struct {
			Items []struct {
				ExternalData string `json:"external_data"`
				Title        string `json:"title"`
				Quantity     int    `json:"quantity"`
				Price        struct {
					UnitPrice uberAmount `json:"unit_price"`
				} `json:"price"`
			} `json:"items"`
		} `json:"cart"`
		Payment struct {
			Charges struct {
				SubTotal    uberAmount `json:"sub_total"`
				Tax         uberAmount `json:"tax"`
				DeliveryFee uberAmount `json:"delivery_fee"`
				Total       uberAmount `json:"total"`
			} `json:"charges"`
		} `json:"payment"`
	} `json:"order"`
}

// ParseInbound normalizes an Uber Eats webhook.
func (u *UberEats) ParseInbound(rawBody []byte) (*marketplace.CanonicalEvent, error) {
	var w ubereatsWebhook
	if err := decode(rawBody, &w); err != nil {
		return nil, err
	}
	status, err := normalizeStatus(w.Meta.Status)
	if err != nil {
		return nil, err
	}

	o := w.Order
	charges := o.Payment.Charges
	event := &marketplace.CanonicalEvent{
		Provider:        u.provider,
		EventID:         w.EventID,
		EventType:       w.EventType,
		ExternalOrderID: w.Meta.ResourceID,
		ExternalStoreID: w.Meta.UserID,
		Status:          status,
		Customer: marketplace.Customer{
			FirstName: o.Eater.FirstName,
			LastName:  o.Eater.LastName,
			Phone:     o.Eater.Phone,
			Email:     o.Eater.Email,
		},
		DeliveryAddress: marketplace.Address{
			Line1:        o.Delivery.Location.StreetAddress,
			Line2:        o.Delivery.Location.UnitNumber,
			City:         o.Delivery.Location.City,
			State:        o.Delivery.Location.State,
			PostalCode:   o.Delivery.Location.PostalCode,
			Instructions: o.Delivery.Notes,
		},
		Totals: marketplace.Totals{
			Subtotal:    charges.SubTotal.Amount,
			Tax:         charges.Tax.Amount,
			DeliveryFee: charges.DeliveryFee.Amount,
			Total:       charges.Total.Amount,
		},
	}
	if w.EventTime > 0 {
		event.OccurredAt = time.Unix(w.EventTime, 0).UTC()
	}
	for _, item := range o.Cart.Items {
		event.Items = append(event.Items, marketplace.LineItem{
			ExternalItemID: item.ExternalData,
			Name:           item.Title,
			Quantity:       item.Quantity,
			UnitPrice:      item.Price.UnitPrice.Amount,
		})
	}

	if err := event.Validate(); err != nil {
		return nil, err
	}
	return event, nil
}

// BuildOutbound uses the dedicated accept and cancel endpoints; other
// statuses go through the generic status endpoint.
func (u *UberEats) BuildOutbound(ctx context.Context, update StatusUpdate) (*http.Request, error) {
	status, err := u.outboundStatus(update.Status)
	if err != nil {
		return nil, err
	}
	orderPath := "/v1/eats/orders/" + url.PathEscape(update.ExternalOrderID)

	switch update.Status {
	case marketplace.StatusConfirmed:
		return u.newJSONRequest(ctx, http.MethodPost, orderPath+"/accept_pos_order", map[string]string{
			"reason": "accepted by restaurant",
		}, update)
	case marketplace.StatusCancelled:
		return u.newJSONRequest(ctx, http.MethodPost, orderPath+"/cancel", map[string]string{
			"reason": "RESTAURANT_CANCELLED",
		}, update)
	default:
		return u.newJSONRequest(ctx, http.MethodPost, orderPath+"/status", map[string]string{
			"status": status,
		}, update)
	}
}
