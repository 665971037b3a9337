package marketplace

import (
	"fmt"
	"strings"
	"time"
)

// CanonicalEvent is a provider webhook normalized into the internal shape.
// Money fields are integer minor units (cents).
type CanonicalEvent struct {
	Provider        Provider    `json:"provider"`
	EventID         string      `json:"eventId"`
	EventType       string      `json:"eventType"`
	ExternalOrderID string      `json:"externalOrderId"`
	ExternalStoreID string      `json:"externalStoreId"`
	Status          OrderStatus `json:"status"`
	Customer        Customer    `json:"customer"`
	DeliveryAddress Address     `json:"deliveryAddress"`
	Items           []LineItem  `json:"items"`
	Totals          Totals      `json:"totals"`
	OccurredAt      time.Time   `json:"occurredAt"`
}

// Customer is the diner as reported by the marketplace.
type Customer struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
}

// DisplayName joins the first and last name for tickets and logs.
func (c Customer) DisplayName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Address is a delivery destination.
type Address struct {
	Line1        string `json:"line1,omitempty"`
	Line2        string `json:"line2,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postalCode,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// String renders the address on one line, skipping empty parts.
func (a Address) String() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{a.Line1, a.Line2, a.City, a.State, a.PostalCode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// LineItem is one cart line in marketplace terms.
type LineItem struct {
	ExternalItemID string `json:"externalItemId"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPrice      int64  `json:"unitPrice"`
}

// Totals carries the order money breakdown.
type Totals struct {
	Subtotal    int64 `json:"subtotal"`
	Tax         int64 `json:"tax"`
	DeliveryFee int64 `json:"deliveryFee"`
	Total       int64 `json:"total"`
}

// Validate checks the fields every downstream step relies on.
func (e *CanonicalEvent) Validate() error {
	switch {
	case e.EventID == "":
		return fmt.Errorf("%w: event id is required", ErrMalformedPayload)
	case e.ExternalOrderID == "":
		return fmt.Errorf("%w: external order id is required", ErrMalformedPayload)
	case e.ExternalStoreID == "":
		return fmt.Errorf("%w: external store id is required", ErrMalformedPayload)
	case !e.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", ErrMalformedPayload, e.Status)
	}
	for i, item := range e.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d has non-positive quantity", ErrMalformedPayload, i)
		}
		if item.UnitPrice < 0 {
			return fmt.Errorf("%w: item %d has negative price", ErrMalformedPayload, i)
		}
	}
	return nil
}

// ExternalItemIDs returns the distinct item ids in cart order.
func (e *CanonicalEvent) ExternalItemIDs() []string {
	seen := make(map[string]bool, len(e.Items))
	ids := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		if item.ExternalItemID == "" || seen[item.ExternalItemID] {
			continue
		}
		seen[item.ExternalItemID] = true
		ids = append(ids, item.ExternalItemID)
	}
	return ids
}
