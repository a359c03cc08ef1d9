package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	AuthzChecksTotal     *prometheus.CounterVec
	PermissionCacheTotal *prometheus.CounterVec

	// Domain metrics
	MembershipChangesTotal *prometheus.CounterVec
	RegistrationsTotal     *prometheus.CounterVec
	ImportRowsTotal        *prometheus.CounterVec
	StatusSyncUpdatesTotal *prometheus.CounterVec
	StatusSyncDuration     prometheus.Histogram

	// Storage metrics
	TxRetriesTotal prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "league_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "league_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AuthzChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "league_authz_checks_total",
				Help: "Authorization checks by action and result",
			},
			[]string{"action", "result"},
		),
		PermissionCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "league_permission_cache_total",
				Help: "Permission cache lookups by tier and outcome",
			},
			[]string{"tier", "outcome"},
		),
		MembershipChangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "league_membership_changes_total",
				Help: "Membership lifecycle operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		RegistrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "league_season_registrations_total",
				Help: "Season registration transitions by resulting status or error",
			},
			[]string{"outcome"},
		),
		ImportRowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "league_import_rows_total",
				Help: "Bulk import rows by outcome",
			},
			[]string{"outcome"},
		),
		StatusSyncUpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "league_status_sync_updates_total",
				Help: "Membership status changes made by the season sync job",
			},
			[]string{"status"},
		),
		StatusSyncDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "league_status_sync_duration_seconds",
				Help:    "Duration of a season sync run",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
			},
		),
		TxRetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "league_tx_retries_total",
				Help: "Transactions retried after a serialization conflict",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthzChecksTotal,
		m.PermissionCacheTotal,
		m.MembershipChangesTotal,
		m.RegistrationsTotal,
		m.ImportRowsTotal,
		m.StatusSyncUpdatesTotal,
		m.StatusSyncDuration,
		m.TxRetriesTotal,
	)

	return m
}

// RecordAuthz counts an authorization decision
func (m *Metrics) RecordAuthz(action string, allowed bool) {
	if m == nil {
		return
	}
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.AuthzChecksTotal.WithLabelValues(action, result).Inc()
}

// RecordCache counts a permission cache lookup; tier is l1 or l2
func (m *Metrics) RecordCache(tier string, hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.PermissionCacheTotal.WithLabelValues(tier, outcome).Inc()
}

// RecordMembershipChange counts a lifecycle operation
func (m *Metrics) RecordMembershipChange(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.MembershipChangesTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordRegistration counts a registration outcome
func (m *Metrics) RecordRegistration(outcome string) {
	if m == nil {
		return
	}
	m.RegistrationsTotal.WithLabelValues(outcome).Inc()
}

// RecordImportRows counts imported rows
func (m *Metrics) RecordImportRows(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ImportRowsTotal.WithLabelValues(outcome).Add(float64(n))
}

// RecordStatusSync counts status changes made by a sync run
func (m *Metrics) RecordStatusSync(status string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.StatusSyncUpdatesTotal.WithLabelValues(status).Add(float64(n))
}

// ObserveStatusSync records the duration of a sync run
func (m *Metrics) ObserveStatusSync(d time.Duration) {
	if m == nil {
		return
	}
	m.StatusSyncDuration.Observe(d.Seconds())
}

// RecordTxRetry counts a transaction retry
func (m *Metrics) RecordTxRetry() {
	if m == nil {
		return
	}
	m.TxRetriesTotal.Inc()
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments requests, labelling them by route
// template so path ids do not explode cardinality
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if metrics == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := r.URL.Path
			if cur := mux.CurrentRoute(r); cur != nil {
				if tmpl, err := cur.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
