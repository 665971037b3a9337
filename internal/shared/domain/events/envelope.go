// Package events defines the envelope for notifications this service
// publishes to the message bus.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/clock"
)

// Event types published on the bus.
const (
	TypeOrderReceived    = "marketplace.order.received"
	TypeOrderUpdated     = "marketplace.order.updated"
	TypeSyncSucceeded    = "marketplace.sync.succeeded"
	TypeSyncFailed       = "marketplace.sync.failed"
	TypeSyncDeadLettered = "marketplace.sync.dead_lettered"
)

// Envelope wraps every published notification. AggregateID is the internal
// order id so a partition sees one order's notifications in order.
type Envelope struct {
	EventID     uuid.UUID       `json:"event_id"`
	EventType   string          `json:"event_type"`
	AggregateID string          `json:"aggregate_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Payload     json.RawMessage `json:"payload"`
	Metadata    Metadata        `json:"metadata"`
}

// Metadata carries routing and provenance details.
type Metadata struct {
	RestaurantID  string `json:"restaurant_id,omitempty"`
	Provider      string `json:"provider,omitempty"`
	Source        string `json:"source,omitempty"`
	SchemaVersion int    `json:"schema_version"`
}

// NewEnvelope stamps a UUIDv7 id and the current clock time.
func NewEnvelope(eventType, aggregateID string, payload any, metadata Metadata) (*Envelope, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate event id: %w", err)
	}

	if metadata.SchemaVersion == 0 {
		metadata.SchemaVersion = 1
	}

	return &Envelope{
		EventID:     id,
		EventType:   eventType,
		AggregateID: aggregateID,
		OccurredAt:  clock.Now(),
		Payload:     payloadBytes,
		Metadata:    metadata,
	}, nil
}

// ParsePayload unmarshals the payload into v.
func (e *Envelope) ParsePayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}
