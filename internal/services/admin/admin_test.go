//go:build component

package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cornjacket/marketplace-sync/internal/services/pilot"
	"github.com/cornjacket/marketplace-sync/internal/services/statussync/worker"
	"github.com/cornjacket/marketplace-sync/internal/services/webhook/translator"
	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
	"github.com/cornjacket/marketplace-sync/internal/shared/infra/postgres"
	"github.com/cornjacket/marketplace-sync/internal/shared/metrics"
	"github.com/cornjacket/marketplace-sync/internal/shared/providers"
	"github.com/cornjacket/marketplace-sync/internal/testutil"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	pool := testutil.MustNewTestPool()
	testutil.MustResetSchema(pool)
	if err := postgres.RunMigrations(testutil.DatabaseURL()); err != nil {
		panic(err)
	}
	testPool = pool
	code := m.Run()
	pool.Close()
	os.Exit(code)
}

const testPort = 18081

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// fakeDoorDash answers 503 to the first failFirst calls, then 200.
type fakeDoorDash struct {
	server    *httptest.Server
	calls     atomic.Int32
	failFirst int32
	lastBody  atomic.Value
}

func newFakeDoorDash(t *testing.T, failFirst int32) *fakeDoorDash {
	f := &fakeDoorDash{failFirst: failFirst}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.lastBody.Store(string(body))
		if f.calls.Add(1) <= f.failFirst {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func startAdmin(t *testing.T, doordash *fakeDoorDash) {
	t.Helper()
	testutil.TruncateTables(t, testPool,
		"processed_events", "marketplace_order_links", "orders", "status_sync_jobs",
		"marketplace_menu_mappings", "marketplace_integrations")

	logger := testLogger()
	m := metrics.New(prometheus.NewRegistry())
	registry := providers.NewDefaultRegistry(map[marketplace.Provider]providers.Endpoint{
		marketplace.ProviderDoorDash: {BaseURL: doordash.server.URL, APIToken: "dd-token"},
	})
	dispatcher := providers.NewDispatcher(registry, doordash.server.Client(), providers.NewLocalLimiter(100, 10), m,
		providers.DispatcherConfig{Timeout: 2 * time.Second, BreakerFailures: 100}, logger)

	processor := worker.NewProcessor(
		postgres.NewStatusSyncJobRepo(testPool, logger),
		postgres.NewIntegrationRepo(testPool, logger),
		dispatcher, nil, m, nil,
		worker.ProcessorConfig{
			BatchSize:     10,
			Concurrency:   2,
			LeaseDuration: time.Minute,
			Backoff:       worker.BackoffPolicy{Base: 10 * time.Millisecond, Max: 10 * time.Millisecond},
		},
		logger,
	)

	db, err := pilot.OpenDB(testutil.DatabaseURL())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	reporter := pilot.NewReporter(pilot.NewSQLStore(db), pilot.Thresholds{MinOrders: 1, MinSuccessRate: 0.9}, logger)

	errorCh := make(chan error, 1)
	svc, err := Start(context.Background(), Config{Port: testPort, MaxAttempts: 5, JWTSecret: testJWTSecret},
		testPool, processor, reporter, m, nil, logger, errorCh)
	require.NoError(t, err)

	// Give server time to bind
	time.Sleep(50 * time.Millisecond)

	t.Cleanup(func() {
		svc.Shutdown(context.Background())
	})
}

func call(t *testing.T, method, path, body string, out any) int {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, fmt.Sprintf("http://localhost:%d/restaurant/rest-1%s", testPort, path), r)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "rest-1"))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// seedOrder creates a DoorDash order the way a verified webhook would.
func seedOrder(t *testing.T) string {
	t.Helper()
	var orderID string
	uow := postgres.NewUnitOfWork(testPool, 5, testLogger())
	err := uow.Do(context.Background(), func(ctx context.Context, repos translator.Repositories) error {
		out, err := translator.New(testLogger()).Apply(ctx, repos, &marketplace.IntegrationConfig{
			RestaurantID: "rest-1", Provider: marketplace.ProviderDoorDash, Enabled: true, ExternalStoreID: "dd-store-1",
		}, &marketplace.CanonicalEvent{
			Provider:        marketplace.ProviderDoorDash,
			EventID:         "evt-1",
			ExternalOrderID: "dd-ord-1",
			ExternalStoreID: "dd-store-1",
			Status:          marketplace.StatusConfirmed,
			Items:           []marketplace.LineItem{{ExternalItemID: "sku-burger", Name: "Burger", Quantity: 1, UnitPrice: 1299}},
			Totals:          marketplace.Totals{Subtotal: 1299, Total: 1299},
			OccurredAt:      time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		orderID = out.OrderID
		return nil
	})
	require.NoError(t, err)
	return orderID
}

func TestAdmin_StatusSyncConverges(t *testing.T) {
	doordash := newFakeDoorDash(t, 1)
	startAdmin(t, doordash)

	code := call(t, http.MethodPut, "/marketplace/integrations/doordash",
		`{"enabled":true,"externalStoreId":"dd-store-1","webhookSigningSecret":"whsec"}`, nil)
	require.Equal(t, http.StatusOK, code)
	orderID := seedOrder(t)

	var tr marketplace.Transition
	code = call(t, http.MethodPost, "/orders/"+orderID+"/status", `{"status":"ready"}`, &tr)
	require.Equal(t, http.StatusOK, code)
	require.True(t, tr.Applied)
	require.Len(t, tr.Jobs, 1)

	// First pass hits the 503 and schedules a retry.
	var first worker.Result
	require.Equal(t, http.StatusOK, call(t, http.MethodPost, "/marketplace/status-sync/process", `{}`, &first))
	assert.Equal(t, 1, first.Requeued)

	time.Sleep(50 * time.Millisecond)

	var second worker.Result
	require.Equal(t, http.StatusOK, call(t, http.MethodPost, "/marketplace/status-sync/process", `{}`, &second))
	assert.Equal(t, 1, second.Succeeded)

	var jobs struct {
		Jobs []marketplace.StatusSyncJob `json:"jobs"`
	}
	require.Equal(t, http.StatusOK, call(t, http.MethodGet, "/marketplace/status-sync/jobs?orderId="+orderID, "", &jobs))
	require.Len(t, jobs.Jobs, 1)
	assert.Equal(t, marketplace.JobSuccess, jobs.Jobs[0].Status)
	assert.Equal(t, 1, jobs.Jobs[0].AttemptCount)

	assert.Equal(t, int32(2), doordash.calls.Load())
	assert.Contains(t, doordash.lastBody.Load(), "READY_FOR_PICKUP")

	var summary pilot.Summary
	require.Equal(t, http.StatusOK, call(t, http.MethodGet, "/marketplace/pilot/summary", "", &summary))
	assert.Equal(t, 1, summary.TotalOrders)
	assert.Equal(t, 1, summary.Succeeded)
	assert.True(t, summary.RolloutReady)
}

func TestAdmin_PermanentFailureThenRetry(t *testing.T) {
	doordash := newFakeDoorDash(t, 0)
	startAdmin(t, doordash)

	// Disabled integration makes the push fail permanently.
	require.Equal(t, http.StatusOK, call(t, http.MethodPut, "/marketplace/integrations/doordash",
		`{"enabled":false,"externalStoreId":"dd-store-1"}`, nil))
	orderID := seedOrder(t)

	var tr marketplace.Transition
	require.Equal(t, http.StatusOK, call(t, http.MethodPost, "/orders/"+orderID+"/status", `{"status":"preparing"}`, &tr))
	require.Len(t, tr.Jobs, 1)
	jobID := tr.Jobs[0].ID.String()

	var res worker.Result
	require.Equal(t, http.StatusOK, call(t, http.MethodPost, "/marketplace/status-sync/process", `{}`, &res))
	assert.Equal(t, 1, res.Failed)
	assert.Zero(t, doordash.calls.Load())

	require.Equal(t, http.StatusOK, call(t, http.MethodPut, "/marketplace/integrations/doordash",
		`{"enabled":true,"externalStoreId":"dd-store-1","webhookSigningSecret":"whsec"}`, nil))

	var retried marketplace.StatusSyncJob
	require.Equal(t, http.StatusOK, call(t, http.MethodPost, "/marketplace/status-sync/jobs/"+jobID+"/retry", "", &retried))
	assert.Equal(t, marketplace.JobQueued, retried.Status)

	require.Equal(t, http.StatusOK, call(t, http.MethodPost, "/marketplace/status-sync/process", `{}`, &res))
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, int32(1), doordash.calls.Load())
}

func TestAdmin_DeadLetterThenRetrySucceeds(t *testing.T) {
	// The marketplace is down for exactly the five attempts a job gets.
	doordash := newFakeDoorDash(t, 5)
	startAdmin(t, doordash)

	require.Equal(t, http.StatusOK, call(t, http.MethodPut, "/marketplace/integrations/doordash",
		`{"enabled":true,"externalStoreId":"dd-store-1","webhookSigningSecret":"whsec"}`, nil))
	orderID := seedOrder(t)

	var tr marketplace.Transition
	require.Equal(t, http.StatusOK, call(t, http.MethodPost, "/orders/"+orderID+"/status", `{"status":"ready"}`, &tr))
	require.Len(t, tr.Jobs, 1)
	jobID := tr.Jobs[0].ID.String()

	var requeued, deadLettered int
	for i := 0; i < 5; i++ {
		time.Sleep(30 * time.Millisecond)
		var res worker.Result
		require.Equal(t, http.StatusOK, call(t, http.MethodPost, "/marketplace/status-sync/process", `{}`, &res))
		requeued += res.Requeued
		deadLettered += res.DeadLettered
	}
	assert.Equal(t, 4, requeued)
	assert.Equal(t, 1, deadLettered)
	assert.Equal(t, int32(5), doordash.calls.Load())

	var jobs struct {
		Jobs []marketplace.StatusSyncJob `json:"jobs"`
	}
	require.Equal(t, http.StatusOK, call(t, http.MethodGet, "/marketplace/status-sync/jobs?orderId="+orderID, "", &jobs))
	require.Len(t, jobs.Jobs, 1)
	assert.Equal(t, marketplace.JobDeadLetter, jobs.Jobs[0].Status)
	assert.Equal(t, 5, jobs.Jobs[0].AttemptCount)

	// A dead-lettered job stays put until an operator retries it.
	var idle worker.Result
	require.Equal(t, http.StatusOK, call(t, http.MethodPost, "/marketplace/status-sync/process", `{}`, &idle))
	assert.Zero(t, idle.Processed)

	var retried marketplace.StatusSyncJob
	require.Equal(t, http.StatusOK, call(t, http.MethodPost, "/marketplace/status-sync/jobs/"+jobID+"/retry", "", &retried))
	assert.Equal(t, marketplace.JobQueued, retried.Status)
	assert.Equal(t, 5, retried.AttemptCount)
	assert.Equal(t, 6, retried.MaxAttempts)

	var res worker.Result
	require.Equal(t, http.StatusOK, call(t, http.MethodPost, "/marketplace/status-sync/process", `{}`, &res))
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, int32(6), doordash.calls.Load())

	require.Equal(t, http.StatusOK, call(t, http.MethodGet, "/marketplace/status-sync/jobs?orderId="+orderID, "", &jobs))
	require.Len(t, jobs.Jobs, 1)
	assert.Equal(t, marketplace.JobSuccess, jobs.Jobs[0].Status)
	assert.Contains(t, doordash.lastBody.Load(), "READY_FOR_PICKUP")

	assert.Equal(t, http.StatusConflict,
		call(t, http.MethodPost, "/marketplace/status-sync/jobs/"+jobID+"/retry", "", nil))
}
