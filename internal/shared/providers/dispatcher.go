package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Limiter throttles outbound calls per marketplace.
type Limiter interface {
	Wait(ctx context.Context, provider marketplace.Provider) error
}

// DurationObserver records outbound call latency.
type DurationObserver interface {
	ObserveOutbound(provider marketplace.Provider, outcome string, d time.Duration)
}

// DispatcherConfig tunes outbound delivery.
type DispatcherConfig struct {
	Timeout            time.Duration
	BreakerFailures    uint32
	BreakerOpenTimeout time.Duration
	BreakerInterval    time.Duration
}

// Dispatcher sends status updates to marketplaces and classifies the result
// as success, transient failure or permanent failure.
type Dispatcher struct {
	registry *Registry
	client   HTTPDoer
	limiter  Limiter
	observer DurationObserver
	config   DispatcherConfig
	logger   *slog.Logger

	mu       sync.Mutex
	breakers map[marketplace.Provider]*gobreaker.CircuitBreaker
}

// NewDispatcher creates an outbound dispatcher. limiter and observer may be nil.
func NewDispatcher(
	registry *Registry,
	client HTTPDoer,
	limiter Limiter,
	observer DurationObserver,
	config DispatcherConfig,
	logger *slog.Logger,
) *Dispatcher {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.BreakerFailures == 0 {
		config.BreakerFailures = 5
	}
	if config.BreakerOpenTimeout <= 0 {
		config.BreakerOpenTimeout = 30 * time.Second
	}
	return &Dispatcher{
		registry: registry,
		client:   client,
		limiter:  limiter,
		observer: observer,
		config:   config,
		logger:   logger.With("component", "outbound-dispatcher"),
		breakers: make(map[marketplace.Provider]*gobreaker.CircuitBreaker),
	}
}

// Send pushes one status update. The returned error is nil on 2xx, otherwise
// a *marketplace.DeliveryError or a permanent domain error.
func (d *Dispatcher) Send(ctx context.Context, provider marketplace.Provider, update StatusUpdate) error {
	adapter, err := d.registry.Get(provider)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx, provider); err != nil {
			return &marketplace.DeliveryError{Provider: provider, Retryable: true, Err: fmt.Errorf("rate limit wait: %w", err)}
		}
	}

	req, err := adapter.BuildOutbound(ctx, update)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = d.breaker(provider).Execute(func() (interface{}, error) {
		return nil, d.do(req, provider)
	})
	d.observe(provider, err, time.Since(start))

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &marketplace.DeliveryError{Provider: provider, Retryable: true, Err: err}
	}
	return err
}

func (d *Dispatcher) do(req *http.Request, provider marketplace.Provider) error {
	resp, err := d.client.Do(req)
	if err != nil {
		return &marketplace.DeliveryError{Provider: provider, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))

	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return &marketplace.DeliveryError{Provider: provider, StatusCode: code, Retryable: true, Err: responseError(body)}
	default:
		return &marketplace.DeliveryError{Provider: provider, StatusCode: code, Retryable: false, Err: responseError(body)}
	}
}

func responseError(body []byte) error {
	if len(body) == 0 {
		return errors.New("empty response body")
	}
	return errors.New(string(body))
}

// breaker returns the per-provider circuit breaker, creating it on first use.
// Only transient failures count against the breaker.
func (d *Dispatcher) breaker(provider marketplace.Provider) *gobreaker.CircuitBreaker {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cb, ok := d.breakers[provider]; ok {
		return cb
	}
	threshold := d.config.BreakerFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(provider),
		MaxRequests: 1,
		Interval:    d.config.BreakerInterval,
		Timeout:     d.config.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !marketplace.IsRetryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			d.logger.Warn("circuit breaker state changed",
				"provider", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	d.breakers[provider] = cb
	return cb
}

func (d *Dispatcher) observe(provider marketplace.Provider, err error, elapsed time.Duration) {
	if d.observer == nil {
		return
	}
	outcome := "success"
	switch {
	case err == nil:
	case marketplace.IsRetryable(err):
		outcome = "transient"
	default:
		outcome = "permanent"
	}
	d.observer.ObserveOutbound(provider, outcome, elapsed)
}
