// Package metrics provides Prometheus instrumentation for the NegoLah core.
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
			Namespace: "negolah",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "negolah",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// OffersEvaluatedTotal counts offer evaluations by resulting decision.
	OffersEvaluatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "negolah",
			Name:      "offers_evaluated_total",
			Help:      "Total offer evaluations by decision.",
		},
		[]string{"decision"},
	)

	// PriceGuardRejectionsTotal counts price-guard rejections by reason.
	PriceGuardRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "negolah",
			Name:      "price_guard_rejections_total",
			Help:      "Total reservation requests rejected by the price guard, by reason.",
		},
		[]string{"reason"},
	)

	// ReservationsCreatedTotal counts new payment leases created.
	ReservationsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "negolah",
		Name:      "reservations_created_total",
		Help:      "Total payment reservations created.",
	})

	// ReservationsReusedTotal counts createOrGet calls that returned an existing lease.
	ReservationsReusedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "negolah",
		Name:      "reservations_reused_total",
		Help:      "Total reservation requests that returned an existing lease.",
	})

	// ReservationsCancelledTotal counts explicit lease cancellations.
	ReservationsCancelledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "negolah",
		Name:      "reservations_cancelled_total",
		Help:      "Total payment reservations cancelled by callers.",
	})

	// LeasesReapedTotal counts leases removed by the cleanup sweep.
	LeasesReapedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "negolah",
		Name:      "leases_reaped_total",
		Help:      "Total expired leases reaped by the cleanup sweep.",
	})

	// SweepsTotal counts cleanup sweep runs.
	SweepsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "negolah",
		Name:      "sweeps_total",
		Help:      "Total cleanup sweep runs.",
	})

	// FinalizationsTotal counts sale finalizations by trigger and outcome.
	FinalizationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "negolah",
			Name:      "finalizations_total",
			Help:      "Total finalization attempts by trigger (webhook, manual) and outcome (completed, already_sold, error).",
		},
		[]string{"trigger", "outcome"},
	)

	// GatewayCallDuration observes payment gateway call latency by operation.
	GatewayCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "negolah",
			Name:      "gateway_call_duration_seconds",
			Help:      "Payment gateway call duration in seconds by operation.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	// WebhookRejectedTotal counts inbound webhooks rejected before any state change.
	WebhookRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "negolah",
			Name:      "webhook_rejected_total",
			Help:      "Total inbound gateway webhooks rejected, by reason.",
		},
		[]string{"reason"},
	)

	// ActiveWebSocketClients tracks connected buyer notification clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "negolah",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "negolah", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "negolah", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "negolah", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "negolah", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		OffersEvaluatedTotal,
		PriceGuardRejectionsTotal,
		ReservationsCreatedTotal,
		ReservationsReusedTotal,
		ReservationsCancelledTotal,
		LeasesReapedTotal,
		SweepsTotal,
		FinalizationsTotal,
		GatewayCallDuration,
		WebhookRejectedTotal,
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
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
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

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
