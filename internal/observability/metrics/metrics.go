package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parcfleet_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parcfleet_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parcfleet_login_attempts_total",
		Help: "Count of login attempts by result",
	}, []string{"result"})

	permissionDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parcfleet_permission_denials_total",
		Help: "Count of requests rejected by the route guard",
	}, []string{"resource", "action"})

	guardedDeleteRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parcfleet_guarded_delete_rejections_total",
		Help: "Count of deletes rejected because dependent rows still exist",
	}, []string{"resource"})

	dashboardStreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parcfleet_dashboard_stream_clients",
		Help: "Number of connected dashboard websocket clients",
	})

	statsWarmRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parcfleet_stats_warm_runs_total",
		Help: "Count of stats cache warm cycles by result",
	}, []string{"result"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveLogin records a login attempt ("success", "bad_credentials",
// "inactive", "unknown_tenant").
func ObserveLogin(result string) {
	loginAttempts.WithLabelValues(result).Inc()
}

// ObservePermissionDenied records a 403 from the route guard.
func ObservePermissionDenied(resource, action string) {
	permissionDenials.WithLabelValues(resource, action).Inc()
}

// ObserveGuardedDeleteRejection records a delete blocked by references.
func ObserveGuardedDeleteRejection(resource string) {
	guardedDeleteRejections.WithLabelValues(resource).Inc()
}

// DashboardClientConnected increments the websocket client gauge.
func DashboardClientConnected() {
	dashboardStreamClients.Inc()
}

// DashboardClientDisconnected decrements the websocket client gauge.
func DashboardClientDisconnected() {
	dashboardStreamClients.Dec()
}

// ObserveStatsWarm records a stats warm cycle.
func ObserveStatsWarm(result string) {
	statsWarmRuns.WithLabelValues(result).Inc()
}
