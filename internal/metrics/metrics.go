// Package metrics provides Prometheus instrumentation for the scoring service.
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
			Namespace: "fraudscore",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fraudscore",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// PredictionsTotal counts scored transactions by risk level.
	PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudscore",
			Name:      "predictions_total",
			Help:      "Total transactions scored, by resulting risk level.",
		},
		[]string{"risk_level"},
	)

	// FraudFlaggedTotal counts transactions the classifier flagged as fraud.
	FraudFlaggedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fraudscore",
		Name:      "fraud_flagged_total",
		Help:      "Total transactions flagged as fraudulent.",
	})

	// PredictionDuration observes the full scoring pipeline latency.
	PredictionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fraudscore",
		Name:      "prediction_duration_seconds",
		Help:      "End-to-end scoring latency in seconds.",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	// ClassifierErrorsTotal counts failed classifier calls by error code.
	ClassifierErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudscore",
			Name:      "classifier_errors_total",
			Help:      "Total classifier failures by error code.",
		},
		[]string{"code"},
	)

	// ModelReloadsTotal counts model reloads by result.
	ModelReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudscore",
			Name:      "model_reloads_total",
			Help:      "Total model reload attempts by result.",
		},
		[]string{"result"},
	)

	// LedgerEntities tracks entities with live transaction history.
	LedgerEntities = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudscore",
		Name:      "ledger_entities",
		Help:      "Number of user-card entities with retained history.",
	})

	// LedgerEntries tracks retained history entries across all entities.
	LedgerEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudscore",
		Name:      "ledger_entries",
		Help:      "Total retained transaction history entries.",
	})

	// AlertsTotal counts fraud alerts broadcast to dashboards by severity.
	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudscore",
			Name:      "alerts_total",
			Help:      "Total fraud alerts emitted by severity.",
		},
		[]string{"severity"},
	)

	// ActiveWebSocketClients tracks connected dashboard clients.
	ActiveWebSocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudscore",
		Name:      "active_websocket_clients",
		Help:      "Number of currently connected WebSocket clients.",
	})

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudscore", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudscore", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudscore", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudscore", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		PredictionsTotal,
		FraudFlaggedTotal,
		PredictionDuration,
		ClassifierErrorsTotal,
		ModelReloadsTotal,
		LedgerEntities,
		LedgerEntries,
		AlertsTotal,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and the goroutine
// count into gauges. Call in a goroutine; exits when ctx is done.
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
			c.FullPath(), // route pattern, not raw path, to bound cardinality
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

// Handler returns the Prometheus scrape handler for the /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into class buckets.
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
