package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cornjacket/marketplace-sync/internal/shared/auth"
	"github.com/cornjacket/marketplace-sync/internal/shared/providers"
)

// Config holds client configuration.
type Config struct {
	WebhookURL string
	AdminURL   string
	JWTSecret  string
}

// WebhookResponse is the acknowledgement of a marketplace webhook.
type WebhookResponse struct {
	Status        string   `json:"status"`
	OrderID       string   `json:"orderId"`
	UnmappedItems []string `json:"unmappedItems"`
}

// Job is a status sync job as listed by the admin API.
type Job struct {
	ID              string `json:"id"`
	OrderID         string `json:"orderId"`
	Provider        string `json:"provider"`
	ExternalOrderID string `json:"externalOrderId"`
	TargetStatus    string `json:"targetStatus"`
	Status          string `json:"status"`
	AttemptCount    int    `json:"attemptCount"`
	MaxAttempts     int    `json:"maxAttempts"`
	LastError       string `json:"lastError"`
}

// Transition is the admin API's answer to a POS status change.
type Transition struct {
	OrderID string `json:"orderId"`
	From    string `json:"from"`
	To      string `json:"to"`
	Applied bool   `json:"applied"`
	Jobs    []Job  `json:"enqueuedJobs"`
}

// PilotSummary is the subset of the pilot report the tests inspect.
type PilotSummary struct {
	RestaurantID string   `json:"restaurantId"`
	TotalOrders  int      `json:"totalOrders"`
	TotalJobs    int      `json:"totalJobs"`
	Succeeded    int      `json:"succeeded"`
	RolloutReady bool     `json:"rolloutReady"`
	Reasons      []string `json:"reasons"`
}

// StatusError is a non-2xx answer.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Message)
}

// ErrorResponse represents an error response from the API.
type ErrorResponse struct {
	Error string `json:"error"`
}

// UniqueID generates a unique ID for test isolation.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// PostWebhook sends body to the provider's webhook path signed with secret.
// An empty signature header value is sent when secret is empty.
func PostWebhook(ctx context.Context, cfg *Config, path, header, secret string, body []byte) (*WebhookResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.WebhookURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(header, providers.Sign(body, secret))
	}

	var out WebhookResponse
	if err := do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Admin calls the admin API as restaurantID.
type Admin struct {
	cfg          *Config
	restaurantID string
	token        string
}

// NewAdmin mints a token for restaurantID.
func NewAdmin(cfg *Config, restaurantID string) (*Admin, error) {
	token, err := auth.NewValidator(cfg.JWTSecret).Issue(restaurantID, "e2e", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Admin{cfg: cfg, restaurantID: restaurantID, token: token}, nil
}

// As returns a client that sends this client's token to another
// restaurant's routes.
func (a *Admin) As(restaurantID string) *Admin {
	return &Admin{cfg: a.cfg, restaurantID: restaurantID, token: a.token}
}

// SaveIntegration upserts the provider integration.
func (a *Admin) SaveIntegration(ctx context.Context, provider, storeID, secret string) error {
	return a.call(ctx, http.MethodPut, "/marketplace/integrations/"+provider, map[string]any{
		"enabled":              true,
		"externalStoreId":      storeID,
		"webhookSigningSecret": secret,
	}, nil)
}

// SaveMapping maps an external item to a menu item.
func (a *Admin) SaveMapping(ctx context.Context, provider, externalItemID, menuItemID string) error {
	return a.call(ctx, http.MethodPost, "/marketplace/menu-mappings", map[string]any{
		"provider":       provider,
		"externalItemId": externalItemID,
		"menuItemId":     menuItemID,
	}, nil)
}

// TransitionOrder applies a POS status change.
func (a *Admin) TransitionOrder(ctx context.Context, orderID, status string) (*Transition, error) {
	var out Transition
	if err := a.call(ctx, http.MethodPost, "/orders/"+orderID+"/status", map[string]string{"status": status}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListJobs lists the order's status sync jobs.
func (a *Admin) ListJobs(ctx context.Context, orderID string) ([]Job, error) {
	var out struct {
		Jobs []Job `json:"jobs"`
	}
	if err := a.call(ctx, http.MethodGet, "/marketplace/status-sync/jobs?orderId="+orderID, nil, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// Process runs one processor pass for the restaurant.
func (a *Admin) Process(ctx context.Context) error {
	return a.call(ctx, http.MethodPost, "/marketplace/status-sync/process", map[string]int{"limit": 50}, nil)
}

// PilotSummary reads the pilot report.
func (a *Admin) PilotSummary(ctx context.Context) (*PilotSummary, error) {
	var out PilotSummary
	if err := a.call(ctx, http.MethodGet, "/marketplace/pilot/summary", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WaitForJobs processes and polls until every job of the order is terminal.
func (a *Admin) WaitForJobs(ctx context.Context, orderID string, timeout time.Duration) ([]Job, error) {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if err := a.Process(ctx); err != nil {
			return nil, err
		}
		jobs, err := a.ListJobs(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if len(jobs) > 0 && allTerminal(jobs) {
			return jobs, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}

	return nil, fmt.Errorf("timeout waiting for jobs of order %s", orderID)
}

func allTerminal(jobs []Job) bool {
	for _, j := range jobs {
		if j.Status == "QUEUED" || j.Status == "IN_PROGRESS" {
			return false
		}
	}
	return true
}

func (a *Admin) call(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	url := a.cfg.AdminURL + "/restaurant/" + a.restaurantID + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return do(req, out)
}

func do(req *http.Request, out any) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp ErrorResponse
		_ = json.Unmarshal(respBody, &errResp)
		return &StatusError{Code: resp.StatusCode, Message: errResp.Error}
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// CheckHealth checks the health endpoint of a service.
func CheckHealth(ctx context.Context, url string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status %d", resp.StatusCode)
	}

	return nil
}
