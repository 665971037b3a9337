package marketplace

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

// JobStatus is the lifecycle state of a status sync job.
type JobStatus string

const (
	JobQueued     JobStatus = "QUEUED"
	JobInProgress JobStatus = "IN_PROGRESS"
	JobSuccess    JobStatus = "SUCCESS"
	JobFailed     JobStatus = "FAILED"
	JobDeadLetter JobStatus = "DEAD_LETTER"
)

// ParseJobStatus accepts a job status in any case.
func ParseJobStatus(s string) (JobStatus, error) {
	st := JobStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case JobQueued, JobInProgress, JobSuccess, JobFailed, JobDeadLetter:
		return st, nil
	}
	return "", fmt.Errorf("invalid job status %q", s)
}

// Terminal reports whether the processor will not touch the job again.
func (s JobStatus) Terminal() bool {
	return s == JobSuccess || s == JobFailed || s == JobDeadLetter
}

// OperatorRetryable reports whether an operator may put the job back in the queue.
func (s JobStatus) OperatorRetryable() bool {
	return s == JobFailed || s == JobDeadLetter
}

// StatusSyncJob is a durable request to push one status change to one marketplace.
type StatusSyncJob struct {
	ID              uuid.UUID   `json:"id"`
	RestaurantID    string      `json:"restaurantId"`
	OrderID         string      `json:"orderId"`
	Provider        Provider    `json:"provider"`
	ExternalOrderID string      `json:"externalOrderId"`
	ExternalStoreID string      `json:"externalStoreId"`
	TargetStatus    OrderStatus `json:"targetStatus"`
	TransitionKey   string      `json:"transitionKey"`
	Status          JobStatus   `json:"status"`
	AttemptCount    int         `json:"attemptCount"`
	MaxAttempts     int         `json:"maxAttempts"`
	NextAttemptAt   time.Time   `json:"nextAttemptAt"`
	LeaseExpiresAt  *time.Time  `json:"leaseExpiresAt,omitempty"`
	LastError       string      `json:"lastError,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// Exhausted reports whether the next failed attempt would dead-letter the job.
func (j *StatusSyncJob) Exhausted(attempts int) bool {
	return attempts >= j.MaxAttempts
}

// NewJobParams are the inputs to NewStatusSyncJob.
type NewJobParams struct {
	RestaurantID    string
	OrderID         string
	Provider        Provider
	ExternalOrderID string
	ExternalStoreID string
	TargetStatus    OrderStatus
	TransitionKey   string
	MaxAttempts     int
}

// NewStatusSyncJob builds a QUEUED job due immediately.
func NewStatusSyncJob(p NewJobParams, now time.Time) (*StatusSyncJob, error) {
	switch {
	case p.OrderID == "":
		return nil, fmt.Errorf("order id is required")
	case !p.Provider.Valid():
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, p.Provider)
	case p.ExternalOrderID == "":
		return nil, fmt.Errorf("external order id is required")
	case !p.TargetStatus.Valid():
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, p.TargetStatus)
	case p.MaxAttempts <= 0:
		return nil, fmt.Errorf("max attempts must be positive")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate job id: %w", err)
	}
	key := p.TransitionKey
	if key == "" {
		key = id.String()
	}

	return &StatusSyncJob{
		ID:              id,
		RestaurantID:    p.RestaurantID,
		OrderID:         p.OrderID,
		Provider:        p.Provider,
		ExternalOrderID: p.ExternalOrderID,
		ExternalStoreID: p.ExternalStoreID,
		TargetStatus:    p.TargetStatus,
		TransitionKey:   key,
		Status:          JobQueued,
		MaxAttempts:     p.MaxAttempts,
		NextAttemptAt:   now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}
