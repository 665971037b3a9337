// Package providers translates between each delivery marketplace's wire
// format and the canonical order model, and pushes status updates back out.
package providers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// Adapter is the per-marketplace strategy for webhook verification, inbound
// parsing and outbound status requests.
type Adapter interface {
	Provider() marketplace.Provider
	SignatureHeader() string
	Verify(rawBody []byte, signature, secret string) bool
	ParseInbound(rawBody []byte) (*marketplace.CanonicalEvent, error)
	BuildOutbound(ctx context.Context, update StatusUpdate) (*http.Request, error)
}

// StatusUpdate is one outbound status push.
type StatusUpdate struct {
	JobID           string
	ExternalOrderID string
	ExternalStoreID string
	Status          marketplace.OrderStatus
}

// Endpoint is where and how a marketplace's order API is reached.
type Endpoint struct {
	BaseURL  string
	APIToken string
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// verifyHMAC compares in constant time. An optional "sha256=" prefix is accepted.
func verifyHMAC(body []byte, signature, secret string) bool {
	if secret == "" {
		return false
	}
	sig := strings.TrimSpace(signature)
	sig = strings.TrimPrefix(sig, "sha256=")
	if sig == "" {
		return false
	}
	provided, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(provided, mac.Sum(nil))
}

// base carries what every adapter shares.
type base struct {
	provider marketplace.Provider
	header   string
	endpoint Endpoint
	outbound map[marketplace.OrderStatus]string
}

func (b base) Provider() marketplace.Provider {
	return b.provider
}

func (b base) SignatureHeader() string {
	return b.header
}

func (b base) Verify(rawBody []byte, signature, secret string) bool {
	return verifyHMAC(rawBody, signature, secret)
}

// outboundStatus maps a canonical status into the provider's vocabulary.
func (b base) outboundStatus(s marketplace.OrderStatus) (string, error) {
	v, ok := b.outbound[s]
	if !ok {
		return "", fmt.Errorf("%w: %s does not accept %q", marketplace.ErrUnsupportedStatus, b.provider, s)
	}
	return v, nil
}

func (b base) newJSONRequest(ctx context.Context, method, path string, body any, update StatusUpdate) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", b.provider, err)
	}
	url := strings.TrimRight(b.endpoint.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", b.provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.endpoint.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+b.endpoint.APIToken)
	}
	if update.JobID != "" {
		req.Header.Set("Idempotency-Key", update.JobID)
	}
	return req, nil
}

// inboundAliases covers the status vocabularies of all supported marketplaces.
var inboundAliases = map[string]marketplace.OrderStatus{
	"PENDING":          marketplace.StatusPending,
	"CREATED":          marketplace.StatusPending,
	"NEW":              marketplace.StatusPending,
	"OFFERED":          marketplace.StatusPending,
	"ACCEPTED":         marketplace.StatusConfirmed,
	"CONFIRMED":        marketplace.StatusConfirmed,
	"PREPARING":        marketplace.StatusPreparing,
	"BEING_PREPARED":   marketplace.StatusPreparing,
	"IN_PROGRESS":      marketplace.StatusPreparing,
	"IN_PREPARATION":   marketplace.StatusPreparing,
	"READY":            marketplace.StatusReady,
	"READY_FOR_PICKUP": marketplace.StatusReady,
	"PICKED_UP":        marketplace.StatusPickedUp,
	"HANDED_OFF":       marketplace.StatusPickedUp,
	"OUT_FOR_DELIVERY": marketplace.StatusPickedUp,
	"EN_ROUTE":         marketplace.StatusPickedUp,
	"DELIVERED":        marketplace.StatusCompleted,
	"COMPLETED":        marketplace.StatusCompleted,
	"FULFILLED":        marketplace.StatusCompleted,
	"FINISHED":         marketplace.StatusCompleted,
	"CANCELLED":        marketplace.StatusCancelled,
	"CANCELED":         marketplace.StatusCancelled,
	"DENIED":           marketplace.StatusCancelled,
	"REJECTED":         marketplace.StatusCancelled,
}

func normalizeStatus(raw string) (marketplace.OrderStatus, error) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if s, ok := inboundAliases[key]; ok {
		return s, nil
	}
	return "", fmt.Errorf("%w: unrecognized status %q", marketplace.ErrMalformedPayload, raw)
}

func decode(rawBody []byte, v any) error {
	if err := json.Unmarshal(rawBody, v); err != nil {
		return fmt.Errorf("%w: %v", marketplace.ErrMalformedPayload, err)
	}
	return nil
}
