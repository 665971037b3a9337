// Package syncevents publishes marketplace sync notifications (new orders,
// job outcomes) to the message bus for downstream consumers such as the
// kitchen display and operator alerting.
package syncevents

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/events"
	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// Topics.
const (
	TopicOrders = "marketplace-orders"
	TopicSync   = "marketplace-sync"
	TopicOther  = "marketplace-events"
)

const source = "marketplace-sync"

// EventPublisher publishes events to the message bus.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event *events.Envelope) error
}

// Client turns domain outcomes into bus notifications.
type Client struct {
	publisher EventPublisher
	logger    *slog.Logger
}

// New creates a new sync events client.
func New(publisher EventPublisher, logger *slog.Logger) *Client {
	return &Client{
		publisher: publisher,
		logger:    logger.With("client", "syncevents"),
	}
}

// OrderReceivedPayload is published when a webhook creates an order.
type OrderReceivedPayload struct {
	OrderID         string   `json:"orderId"`
	Provider        string   `json:"provider"`
	ExternalOrderID string   `json:"externalOrderId"`
	Status          string   `json:"status"`
	Total           int64    `json:"total"`
	NeedsReview     bool     `json:"needsReview"`
	UnmappedItems   []string `json:"unmappedItems,omitempty"`
}

// JobOutcomePayload is published when a status sync job reaches a terminal state.
type JobOutcomePayload struct {
	JobID           string `json:"jobId"`
	OrderID         string `json:"orderId"`
	Provider        string `json:"provider"`
	ExternalOrderID string `json:"externalOrderId"`
	TargetStatus    string `json:"targetStatus"`
	Status          string `json:"status"`
	AttemptCount    int    `json:"attemptCount"`
	LastError       string `json:"lastError,omitempty"`
}

// OrderReceived announces a newly created marketplace order.
func (c *Client) OrderReceived(ctx context.Context, draft *marketplace.OrderDraft) error {
	env, err := events.NewEnvelope(events.TypeOrderReceived, draft.ID, OrderReceivedPayload{
		OrderID:         draft.ID,
		Provider:        draft.Source.String(),
		ExternalOrderID: draft.ExternalOrderID,
		Status:          draft.Status.String(),
		Total:           draft.Totals.Total,
		NeedsReview:     draft.NeedsReview,
		UnmappedItems:   draft.UnmappedItemIDs(),
	}, events.Metadata{
		RestaurantID: draft.RestaurantID,
		Provider:     draft.Source.String(),
		Source:       source,
	})
	if err != nil {
		return err
	}
	return c.submit(ctx, env)
}

// JobFinished announces a terminal job outcome. Non-terminal jobs are ignored.
func (c *Client) JobFinished(ctx context.Context, job *marketplace.StatusSyncJob) error {
	var eventType string
	switch job.Status {
	case marketplace.JobSuccess:
		eventType = events.TypeSyncSucceeded
	case marketplace.JobFailed:
		eventType = events.TypeSyncFailed
	case marketplace.JobDeadLetter:
		eventType = events.TypeSyncDeadLettered
	default:
		return nil
	}

	env, err := events.NewEnvelope(eventType, job.OrderID, JobOutcomePayload{
		JobID:           job.ID.String(),
		OrderID:         job.OrderID,
		Provider:        job.Provider.String(),
		ExternalOrderID: job.ExternalOrderID,
		TargetStatus:    job.TargetStatus.String(),
		Status:          string(job.Status),
		AttemptCount:    job.AttemptCount,
		LastError:       job.LastError,
	}, events.Metadata{
		RestaurantID: job.RestaurantID,
		Provider:     job.Provider.String(),
		Source:       source,
	})
	if err != nil {
		return err
	}
	return c.submit(ctx, env)
}

func (c *Client) submit(ctx context.Context, event *events.Envelope) error {
	topic := topicFromEventType(event.EventType)

	if err := c.publisher.Publish(ctx, topic, event); err != nil {
		c.logger.Error("failed to publish sync event",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"topic", topic,
			"error", err,
		)
		return err
	}

	c.logger.Debug("sync event published",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"topic", topic,
	)
	return nil
}

// topicFromEventType derives the Redpanda topic from the event type.
func topicFromEventType(eventType string) string {
	switch {
	case strings.HasPrefix(eventType, "marketplace.order."):
		return TopicOrders
	case strings.HasPrefix(eventType, "marketplace.sync."):
		return TopicSync
	default:
		return TopicOther
	}
}
