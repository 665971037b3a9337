package marketplace

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// IntegrationConfig is one restaurant's connection to one marketplace.
type IntegrationConfig struct {
	RestaurantID         string
	Provider             Provider
	Enabled              bool
	ExternalStoreID      string
	WebhookSigningSecret string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// HasSecret reports whether webhooks for this integration can be verified.
func (c *IntegrationConfig) HasSecret() bool {
	return c.WebhookSigningSecret != ""
}

// AcceptsWebhooks reports whether inbound events should be processed.
func (c *IntegrationConfig) AcceptsWebhooks() bool {
	return c.Enabled && c.HasSecret()
}

// MenuItemMapping ties a marketplace item id to an internal menu item.
type MenuItemMapping struct {
	ID               uuid.UUID `json:"id"`
	RestaurantID     string    `json:"restaurantId"`
	Provider         Provider  `json:"provider"`
	ExternalItemID   string    `json:"externalItemId"`
	ExternalItemName string    `json:"externalItemName,omitempty"`
	MenuItemID       string    `json:"menuItemId"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// ProcessedEvent is an idempotency ledger entry.
type ProcessedEvent struct {
	Provider     Provider
	EventID      string
	RestaurantID string
	ReceivedAt   time.Time
}

// OrderLink binds an internal order to its marketplace identity.
type OrderLink struct {
	OrderID         string
	RestaurantID    string
	Provider        Provider
	ExternalOrderID string
	ExternalStoreID string
	CreatedAt       time.Time
}

// OrderLine is a ledger-facing order line. MenuItemID is empty for unmapped items.
type OrderLine struct {
	MenuItemID     string `json:"menuItemId,omitempty"`
	ExternalItemID string `json:"externalItemId"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPrice      int64  `json:"unitPrice"`
	Unmapped       bool   `json:"unmapped,omitempty"`
}

// OrderDraft is what the translator hands the order ledger for a new
// marketplace order.
type OrderDraft struct {
	ID              string
	RestaurantID    string
	Source          Provider
	ExternalOrderID string
	Status          OrderStatus
	Customer        Customer
	DeliveryAddress Address
	Lines           []OrderLine
	Totals          Totals
	NeedsReview     bool
	PlacedAt        time.Time
}

// OrderSnapshot is the ledger state the sync subsystem reads back.
type OrderSnapshot struct {
	ID           string      `json:"orderId"`
	RestaurantID string      `json:"restaurantId"`
	Source       string      `json:"source"`
	Status       OrderStatus `json:"status"`
	NeedsReview  bool        `json:"needsReview"`
}

// Transition is the outcome of a status change on the ledger.
type Transition struct {
	OrderID string           `json:"orderId"`
	From    OrderStatus      `json:"from"`
	To      OrderStatus      `json:"to"`
	Applied bool             `json:"applied"`
	Jobs    []*StatusSyncJob `json:"enqueuedJobs"`
}

// UnmappedItemIDs lists external ids of lines without a menu mapping.
func (d *OrderDraft) UnmappedItemIDs() []string {
	var ids []string
	for _, l := range d.Lines {
		if l.Unmapped {
			ids = append(ids, l.ExternalItemID)
		}
	}
	return ids
}
