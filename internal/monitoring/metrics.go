package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ordersCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders created, labelled by currency pair",
		},
		[]string{"send_method", "receive_method"},
	)

	orderTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_status_transitions_total",
			Help: "Committed order status transitions",
		},
		[]string{"status"},
	)

	websocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_clients",
			Help: "Currently connected WebSocket clients",
		},
	)

	processingTimersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "processing_timers_active",
			Help: "Active order auto-completion timers",
		},
	)
)

func RecordOrderCreated(sendMethod, receiveMethod string) {
	ordersCreatedTotal.WithLabelValues(sendMethod, receiveMethod).Inc()
}

func RecordStatusTransition(status string) {
	orderTransitionsTotal.WithLabelValues(status).Inc()
}

func SetWebSocketClients(n int) {
	websocketClients.Set(float64(n))
}

func SetActiveTimers(n int) {
	processingTimersActive.Set(float64(n))
}

// MetricsMiddleware records request counts and latency per route. The route
// template is used as the path label so ids do not explode cardinality.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		httpRequestsTotal.WithLabelValues(
			c.Request.Method, path, strconv.Itoa(c.Writer.Status()),
		).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).
			Observe(time.Since(start).Seconds())
	}
}

// MetricsHandler exposes the Prometheus scrape endpoint.
func MetricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
