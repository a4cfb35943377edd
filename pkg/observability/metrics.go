package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	AuthzDecisionsTotal   *prometheus.CounterVec
	AuthzDecisionDuration *prometheus.HistogramVec

	// Role cache metrics
	RoleCacheHitsTotal   *prometheus.CounterVec
	RoleCacheMissesTotal *prometheus.CounterVec

	// Object storage metrics
	ObjectTransfersTotal *prometheus.CounterVec
	ObjectTransferBytes  *prometheus.HistogramVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Business metrics
	ProfilesTotal     prometheus.Gauge
	ProjectsTotal     prometheus.Gauge
	APITokensActive   prometheus.Gauge
	TokensIssuedTotal prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crewdesk_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crewdesk_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crewdesk_authz_decisions_total",
				Help: "Total number of authorization decisions",
			},
			[]string{"resource", "operation", "outcome"},
		),
		AuthzDecisionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crewdesk_authz_decision_duration_seconds",
				Help:    "Authorization decision duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
			},
			[]string{"resource", "operation"},
		),

		RoleCacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crewdesk_role_cache_hits_total",
				Help: "Total number of role cache hits",
			},
			[]string{"layer"},
		),
		RoleCacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crewdesk_role_cache_misses_total",
				Help: "Total number of role cache misses",
			},
			[]string{"layer"},
		),

		ObjectTransfersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crewdesk_object_transfers_total",
				Help: "Total number of object uploads and downloads",
			},
			[]string{"operation", "backend", "status"},
		),
		ObjectTransferBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crewdesk_object_transfer_bytes",
				Help:    "Object transfer size in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
			[]string{"operation"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crewdesk_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crewdesk_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),

		ProfilesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crewdesk_profiles_total",
				Help: "Total number of user profiles",
			},
		),
		ProjectsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crewdesk_projects_total",
				Help: "Total number of projects",
			},
		),
		APITokensActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crewdesk_api_tokens_active",
				Help: "Number of active API tokens",
			},
		),
		TokensIssuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crewdesk_api_tokens_issued_total",
				Help: "Total number of API tokens issued",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthzDecisionsTotal,
		m.AuthzDecisionDuration,
		m.RoleCacheHitsTotal,
		m.RoleCacheMissesTotal,
		m.ObjectTransfersTotal,
		m.ObjectTransferBytes,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.ProfilesTotal,
		m.ProjectsTotal,
		m.APITokensActive,
		m.TokensIssuedTotal,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
