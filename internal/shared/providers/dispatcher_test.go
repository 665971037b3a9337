package providers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

func newTestDispatcher(t *testing.T, handler http.HandlerFunc, cfg DispatcherConfig) *Dispatcher {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	registry := NewDefaultRegistry(map[marketplace.Provider]Endpoint{
		marketplace.ProviderDoorDash: {BaseURL: server.URL},
	})
	return NewDispatcher(registry, server.Client(), nil, nil, cfg, slog.Default())
}

var readyUpdate = StatusUpdate{JobID: "job-1", ExternalOrderID: "dd-1", Status: marketplace.StatusReady}

func TestDispatcher_Classification(t *testing.T) {
	tests := []struct {
		name          string
		code          int
		wantErr       bool
		wantRetryable bool
	}{
		{"ok", http.StatusOK, false, false},
		{"accepted", http.StatusAccepted, false, false},
		{"bad request", http.StatusBadRequest, true, false},
		{"not found", http.StatusNotFound, true, false},
		{"request timeout", http.StatusRequestTimeout, true, true},
		{"throttled", http.StatusTooManyRequests, true, true},
		{"server error", http.StatusBadGateway, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			}, DispatcherConfig{})

			err := d.Send(context.Background(), marketplace.ProviderDoorDash, readyUpdate)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var de *marketplace.DeliveryError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.code, de.StatusCode)
			assert.Equal(t, tt.wantRetryable, marketplace.IsRetryable(err))
		})
	}
}

func TestDispatcher_TimeoutIsRetryable(t *testing.T) {
	d := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}, DispatcherConfig{Timeout: 20 * time.Millisecond})

	err := d.Send(context.Background(), marketplace.ProviderDoorDash, readyUpdate)
	require.Error(t, err)
	assert.True(t, marketplace.IsRetryable(err))
}

func TestDispatcher_UnsupportedStatusIsPermanent(t *testing.T) {
	var calls atomic.Int32
	d := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}, DispatcherConfig{})

	err := d.Send(context.Background(), marketplace.ProviderDoorDash, StatusUpdate{ExternalOrderID: "dd-1", Status: marketplace.StatusPending})
	assert.True(t, errors.Is(err, marketplace.ErrUnsupportedStatus))
	assert.False(t, marketplace.IsRetryable(err))
	assert.Equal(t, int32(0), calls.Load())
}

func TestDispatcher_BreakerOpensOnTransientFailures(t *testing.T) {
	var calls atomic.Int32
	d := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, DispatcherConfig{BreakerFailures: 2, BreakerOpenTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		_ = d.Send(context.Background(), marketplace.ProviderDoorDash, readyUpdate)
	}
	err := d.Send(context.Background(), marketplace.ProviderDoorDash, readyUpdate)

	require.Error(t, err)
	assert.True(t, marketplace.IsRetryable(err))
	assert.Equal(t, int32(2), calls.Load(), "open breaker should short-circuit the third call")
}

func TestDispatcher_PermanentFailuresDoNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	d := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}, DispatcherConfig{BreakerFailures: 1})

	for i := 0; i < 3; i++ {
		_ = d.Send(context.Background(), marketplace.ProviderDoorDash, readyUpdate)
	}
	assert.Equal(t, int32(3), calls.Load())
}

type recordingLimiter struct {
	waits []marketplace.Provider
	err   error
}

func (l *recordingLimiter) Wait(ctx context.Context, p marketplace.Provider) error {
	l.waits = append(l.waits, p)
	return l.err
}

func TestDispatcher_UsesLimiter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(server.Close)
	registry := NewDefaultRegistry(map[marketplace.Provider]Endpoint{
		marketplace.ProviderDoorDash: {BaseURL: server.URL},
	})

	limiter := &recordingLimiter{}
	d := NewDispatcher(registry, server.Client(), limiter, nil, DispatcherConfig{}, slog.Default())
	require.NoError(t, d.Send(context.Background(), marketplace.ProviderDoorDash, readyUpdate))
	assert.Equal(t, []marketplace.Provider{marketplace.ProviderDoorDash}, limiter.waits)

	limiter.err = context.DeadlineExceeded
	err := d.Send(context.Background(), marketplace.ProviderDoorDash, readyUpdate)
	assert.True(t, marketplace.IsRetryable(err))
}

func TestLocalLimiter_PerProvider(t *testing.T) {
	l := NewLocalLimiter(1, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Wait(ctx, marketplace.ProviderDoorDash))
	require.NoError(t, l.Wait(ctx, marketplace.ProviderGrubhub), "separate bucket per provider")
	assert.Error(t, l.Wait(ctx, marketplace.ProviderDoorDash), "second token within a second should not be granted before deadline")
}
