// Package metrics holds the Prometheus instruments for webhook intake,
// status sync delivery and the HTTP servers. Every method is safe on a nil
// *Metrics so components can run without instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// Metrics is the set of marketplace sync instruments.
type Metrics struct {
	webhooks     *prometheus.CounterVec
	unmapped     *prometheus.CounterVec
	syncJobs     *prometheus.CounterVec
	outbound     *prometheus.HistogramVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		webhooks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketplace_webhooks_total",
				Help: "Marketplace webhooks received, by outcome",
			},
			[]string{"provider", "outcome"},
		),
		unmapped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketplace_unmapped_items_total",
				Help: "Order lines created without a menu mapping",
			},
			[]string{"provider"},
		),
		syncJobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketplace_sync_jobs_total",
				Help: "Status sync job attempts, by outcome",
			},
			[]string{"provider", "outcome"},
		),
		outbound: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketplace_outbound_request_duration_seconds",
				Help:    "Duration of outbound status pushes to marketplaces",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "outcome"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"server", "method", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"server", "method"},
		),
	}
	reg.MustRegister(m.webhooks, m.unmapped, m.syncJobs, m.outbound, m.httpRequests, m.httpDuration)
	return m
}

// RecordWebhook counts one webhook delivery.
func (m *Metrics) RecordWebhook(provider marketplace.Provider, outcome string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(provider.String(), outcome).Inc()
}

// RecordUnmapped counts order lines that had no menu mapping.
func (m *Metrics) RecordUnmapped(provider marketplace.Provider, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.unmapped.WithLabelValues(provider.String()).Add(float64(n))
}

// RecordSyncJob counts one processed status sync job.
func (m *Metrics) RecordSyncJob(provider marketplace.Provider, outcome string) {
	if m == nil {
		return
	}
	m.syncJobs.WithLabelValues(provider.String(), outcome).Inc()
}

// ObserveOutbound records the latency of one outbound call.
func (m *Metrics) ObserveOutbound(provider marketplace.Provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.outbound.WithLabelValues(provider.String(), outcome).Observe(d.Seconds())
}

// InstrumentHandler wraps next with request count and latency metrics.
func (m *Metrics) InstrumentHandler(server string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		m.httpDuration.WithLabelValues(server, r.Method).Observe(time.Since(start).Seconds())
		m.httpRequests.WithLabelValues(server, r.Method, strconv.Itoa(rw.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
