package marketplace

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrUnknownProvider     = errors.New("unknown provider")
	ErrInvalidStatus       = errors.New("invalid order status")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrMalformedPayload    = errors.New("malformed webhook payload")
	ErrIntegrationDisabled = errors.New("marketplace integration disabled")
	ErrJobNotRetryable     = errors.New("job is not in a retryable state")
	ErrUnsupportedStatus   = errors.New("status not supported by provider")
)

// DeliveryError describes a failed outbound status push. Retryable failures
// (timeouts, 408, 429, 5xx, open circuit) are requeued with backoff; the rest
// fail the job permanently.
type DeliveryError struct {
	Provider   Provider
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *DeliveryError) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "transient"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s delivery to %s failed with status %d: %v", kind, e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s delivery to %s failed: %v", kind, e.Provider, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// IsRetryable classifies a delivery failure. Errors that are not a
// DeliveryError are treated as transient unless they are known-permanent
// domain errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Retryable
	}
	switch {
	case errors.Is(err, ErrUnsupportedStatus),
		errors.Is(err, ErrIntegrationDisabled),
		errors.Is(err, ErrUnknownProvider):
		return false
	}
	return true
}
