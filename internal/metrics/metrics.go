// Package metrics provides Prometheus instrumentation for Tutorhive.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutorhive",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tutorhive",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ProvisioningTotal counts tenant provisioning attempts by outcome.
	ProvisioningTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutorhive",
			Name:      "provisioning_total",
			Help:      "Tenant provisioning attempts by outcome (created, already_exists, rolled_back).",
		},
		[]string{"outcome"},
	)

	// CompensationFailuresTotal counts saga compensations that themselves failed.
	CompensationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutorhive",
			Name:      "compensation_failures_total",
			Help:      "Saga compensations that failed, by step. Each one is a potential orphan.",
		},
		[]string{"step"},
	)

	// ActivationsTotal counts subscription activation calls by result.
	ActivationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutorhive",
			Name:      "activations_total",
			Help:      "Subscription activation calls by result (active, pending, cancelled, order_not_found, gateway_error).",
		},
		[]string{"result"},
	)

	// CheckoutsTotal counts checkout sessions started, by plan.
	CheckoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutorhive",
			Name:      "checkouts_total",
			Help:      "Checkout sessions started, by plan.",
		},
		[]string{"plan"},
	)

	// GatewayRequestDuration observes payment gateway call latency by operation.
	GatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tutorhive",
			Name:      "gateway_request_duration_seconds",
			Help:      "Payment gateway request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// CircuitBreakerTransitions counts breaker state changes by circuit name.
	CircuitBreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutorhive",
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state transitions by circuit name, from-state, and to-state.",
		},
		[]string{"name", "from", "to"},
	)

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tutorhive",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tutorhive", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tutorhive", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tutorhive", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tutorhive", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ProvisioningTotal,
		CompensationFailuresTotal,
		ActivationsTotal,
		CheckoutsTotal,
		GatewayRequestDuration,
		CircuitBreakerTransitions,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus scrape endpoint as a gin handler.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket collapses status codes into classes to bound label cardinality.
func statusBucket(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
