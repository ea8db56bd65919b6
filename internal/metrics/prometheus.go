package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "endpoint", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)
	vendorRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lightspeed_requests_total",
			Help: "Requests sent to the Lightspeed API by response status.",
		},
		[]string{"status"},
	)
	syncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Sync runs by type and terminal status.",
		},
		[]string{"type", "status"},
	)
	syncItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_items_total",
			Help: "Items written by sync runs.",
		},
		[]string{"type"},
	)
	syncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_run_duration_seconds",
			Help:    "Duration of sync runs.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"type"},
	)
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Lightspeed webhook events by event type and outcome.",
		},
		[]string{"event", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		vendorRequestsTotal,
		syncRunsTotal,
		syncItemsTotal,
		syncDuration,
		webhookEventsTotal,
	)
}

// RecordRequest records metrics for an inbound HTTP request.
func RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := classifyStatus(statusCode)
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

// RecordVendorRequest counts an outbound Lightspeed call. A zero status means
// the request never got a response.
func RecordVendorRequest(statusCode int) {
	status := "error"
	if statusCode == http.StatusTooManyRequests {
		status = "429"
	} else if statusCode > 0 {
		status = classifyStatus(statusCode)
	}
	vendorRequestsTotal.WithLabelValues(status).Inc()
}

func RecordSync(syncType, status string, items int, duration time.Duration) {
	syncRunsTotal.WithLabelValues(syncType, status).Inc()
	syncItemsTotal.WithLabelValues(syncType).Add(float64(items))
	syncDuration.WithLabelValues(syncType).Observe(duration.Seconds())
}

func RecordWebhook(event, outcome string) {
	webhookEventsTotal.WithLabelValues(event, outcome).Inc()
}

// classifyStatus buckets an HTTP status code.
func classifyStatus(statusCode int) string {
	if statusCode >= 200 && statusCode < 600 {
		return strconv.Itoa(statusCode/100) + "xx"
	}
	return "unknown"
}

// Handler exposes the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
