package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	askTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stationctl",
			Subsystem: "client",
			Name:      "asks_total",
			Help:      "Ask round trips by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
	askDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stationctl",
			Subsystem: "client",
			Name:      "ask_duration_seconds",
			Help:      "Ask round trip duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	receiveTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stationctl",
			Subsystem: "client",
			Name:      "receive_timeouts_total",
			Help:      "Replies that did not arrive within the receive window.",
		},
	)
	channelReplacements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stationctl",
			Subsystem: "client",
			Name:      "channel_replacements_total",
			Help:      "Channel replacements after receive timeouts.",
		},
		[]string{"result"},
	)
	stationRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stationctl",
			Subsystem: "station",
			Name:      "requests_total",
			Help:      "Station requests by operation and status.",
		},
		[]string{"station", "operation", "status"},
	)
	stationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stationctl",
			Subsystem: "station",
			Name:      "request_duration_seconds",
			Help:      "Station request handling duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"station", "operation", "status"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stationctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total monitor HTTP requests.",
		},
		[]string{"station", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stationctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Monitor HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"station", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			askTotal, askDuration, receiveTimeouts, channelReplacements,
			stationRequests, stationDuration, httpRequests, httpDuration,
		)
	})
}

// MetricsHandler serves the default registry for the monitor surface.
func MetricsHandler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

func RecordAsk(operation, outcome string, duration time.Duration) {
	RegisterMetrics()
	askTotal.WithLabelValues(operation, outcome).Inc()
	askDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func RecordReceiveTimeout() {
	RegisterMetrics()
	receiveTimeouts.Inc()
}

func RecordChannelReplacement(ok bool) {
	RegisterMetrics()
	result := "ok"
	if !ok {
		result = "failed"
	}
	channelReplacements.WithLabelValues(result).Inc()
}

func RecordStationRequest(station, operation, status string, duration time.Duration) {
	RegisterMetrics()
	stationRequests.WithLabelValues(station, operation, status).Inc()
	stationDuration.WithLabelValues(station, operation, status).Observe(duration.Seconds())
}

func RecordHTTPRequest(station, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(station, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(station, method, path, statusLabel).Observe(duration.Seconds())
}
