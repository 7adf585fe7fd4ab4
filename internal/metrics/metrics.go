package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response body size.",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000},
		},
		[]string{"method", "path"},
	)
)

// Tenant guard metrics
var (
	TenantGuardDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_guard_denied_total",
			Help: "Statements refused by the tenant guard.",
		},
		[]string{"operation", "reason"},
	)

	TenantGuardBypass = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_guard_bypass_total",
			Help: "Statements on tenant-scoped tables run with the platform-owner bypass.",
		},
		[]string{"operation"},
	)
)

// Community activity
var (
	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "communityos_actions_total",
			Help: "Member actions by kind and outcome.",
		},
		[]string{"action", "outcome"},
	)

	MentionsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "communityos_mentions_dispatched_total",
			Help: "Mention events handed to the dispatcher.",
		},
		[]string{"mode", "status"},
	)
)

// Runtime and database
var (
	DBConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "communityos_db_connections",
			Help: "Database pool connections by state.",
		},
		[]string{"state"},
	)

	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "communityos_goroutines",
			Help: "Number of goroutines.",
		},
	)

	MemoryInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "communityos_memory_heap_inuse_bytes",
			Help: "Heap bytes in use.",
		},
	)
)

// RecordAction counts one member action. outcome is "ok", "rejected" or
// "rate_limited".
func RecordAction(action, outcome string) {
	ActionsTotal.WithLabelValues(action, outcome).Inc()
}
