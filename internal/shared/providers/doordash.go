package providers

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// DoorDash webhooks carry integer cents and a nested order object.
type DoorDash struct {
	base
}

// NewDoorDash creates the DoorDash Marketplace adapter.
func NewDoorDash(endpoint Endpoint) *DoorDash {
	return &DoorDash{base{
		provider: marketplace.ProviderDoorDash,
		header:   "X-DoorDash-Signature",
		endpoint: endpoint,
		outbound: map[marketplace.OrderStatus]string{
			marketplace.StatusConfirmed: "CONFIRMED",
			marketplace.StatusPreparing: "BEING_PREPARED",
			marketplace.StatusReady:     "READY_FOR_PICKUP",
			marketplace.StatusPickedUp:  "PICKED_UP",
			marketplace.StatusCompleted: "DELIVERED",
			marketplace.StatusCancelled: "CANCELLED",
		},
	}}
}

type doordashWebhook struct {
	EventID   string        `json:"event_id"`
	EventType string        `json:"event_type"`
	CreatedAt time.Time     `json:"created_at"`
	Order     doordashOrder `json:"order"`
}

type doordashOrder struct {
	ID       string `json:"id"`
	StoreID  string `json:"store_id"`
	Status   string `json:"status"`
	Consumer struct {
		FirstName   string `json:"first_name"`
		LastName    string `json:"last_name"`
		PhoneNumber string `json:"phone_number"`
		Email       string `json:"email"`
	} `json:"consumer"`
	DeliveryAddress struct {
		Street       string `json:"street"`
		Subpremise   string `json:"subpremise"`
		City         string `json:"city"`
		State        string `json:"state"`
		ZipCode      string `json:"zip_code"`
		Instructions string `json:"dasher_instructions"`
	} `json:"delivery_address"`
	Items []struct {
		MerchantSuppliedID string `json:"merchant_supplied_id"`
		Name               string `json:"name"`
		Quantity           int    `json:"quantity"`
		Price              int64  `json:"price"`
	} `json:"items"`
	Subtotal    int64 `json:"subtotal"`
	Tax         int64 `json:"tax"`
	DeliveryFee int64 `json:"delivery_fee"`
	Total       int64 `json:"total"`
}

// ParseInbound normalizes a DoorDash webhook.
func (d *DoorDash) ParseInbound(rawBody []byte) (*marketplace.CanonicalEvent, error) {
	var w doordashWebhook
	if err := decode(rawBody, &w); err != nil {
		return nil, err
	}
	status, err := normalizeStatus(w.Order.Status)
	if err != nil {
		return nil, err
	}

	o := w.Order
	event := &marketplace.CanonicalEvent{
		Provider:        d.provider,
		EventID:         w.EventID,
		EventType:       w.EventType,
		ExternalOrderID: o.ID,
		ExternalStoreID: o.StoreID,
		Status:          status,
		Customer: marketplace.Customer{
			FirstName: o.Consumer.FirstName,
			LastName:  o.Consumer.LastName,
			Phone:     o.Consumer.PhoneNumber,
			Email:     o.Consumer.Email,
		},
		DeliveryAddress: marketplace.Address{
			Line1:        o.DeliveryAddress.Street,
			Line2:        o.DeliveryAddress.Subpremise,
			City:         o.DeliveryAddress.City,
			State:        o.DeliveryAddress.State,
			PostalCode:   o.DeliveryAddress.ZipCode,
			Instructions: o.DeliveryAddress.Instructions,
		},
		Totals: marketplace.Totals{
			Subtotal:    o.Subtotal,
			Tax:         o.Tax,
			DeliveryFee: o.DeliveryFee,
			Total:       o.Total,
		},
		OccurredAt: w.CreatedAt.UTC(),
	}
	for _, item := range o.Items {
		event.Items = append(event.Items, marketplace.LineItem{
			ExternalItemID: item.MerchantSuppliedID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPrice:      item.Price,
		})
	}

	if err := event.Validate(); err != nil {
		return nil, err
	}
	return event, nil
}

// BuildOutbound issues PATCH /marketplace/api/v1/orders/{id}/status.
func (d *DoorDash) BuildOutbound(ctx context.Context, update StatusUpdate) (*http.Request, error) {
	status, err := d.outboundStatus(update.Status)
	if err != nil {
		return nil, err
	}
	path := "/marketplace/api/v1/orders/" + url.PathEscape(update.ExternalOrderID) + "/status"
	return d.newJSONRequest(ctx, http.MethodPatch, path, map[string]string{
		"order_status": status,
	}, update)
}
