package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoreviver_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photoreviver_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoreviver_api_active_requests",
			Help: "Number of requests currently being served",
		},
	)

	// Pipeline Metrics
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photoreviver_stage_duration_seconds",
			Help:    "Duration of individual restoration stages",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"engine", "stage"},
	)

	RestorationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoreviver_restorations_total",
			Help: "Completed restorations by engine, step and outcome",
		},
		[]string{"engine", "step", "outcome"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoreviver_queue_depth",
			Help: "Restorations waiting for a worker",
		},
	)

	QueueRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photoreviver_queue_rejected_total",
			Help: "Restorations rejected because the queue was full",
		},
	)

	// Remote API Metrics
	RemoteCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoreviver_remote_calls_total",
			Help: "Calls to the hosted model API by model and outcome",
		},
		[]string{"model", "outcome"},
	)

	RemoteBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoreviver_remote_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photoreviver_cache_hits_total",
			Help: "Total number of result cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photoreviver_cache_misses_total",
			Help: "Total number of result cache misses",
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoreviver_websocket_connections",
			Help: "Connected progress subscribers",
		},
	)

	// Archive Metrics
	ArchiveFlushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photoreviver_archive_flushed_total",
			Help: "Restorations written to the archive directory",
		},
	)
)

// RecordAPIRequest records a finished HTTP request.
func RecordAPIRequest(method, endpoint, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the active request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordStage records how long one pipeline stage took.
func RecordStage(engine, stage string, duration time.Duration) {
	StageDuration.WithLabelValues(engine, stage).Observe(duration.Seconds())
}

// RecordRestoration counts a finished restoration.
func RecordRestoration(engine, step string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	RestorationsTotal.WithLabelValues(engine, step, outcome).Inc()
}

// RecordRemoteCall counts one call to the hosted model API.
func RecordRemoteCall(model, outcome string) {
	RemoteCalls.WithLabelValues(model, outcome).Inc()
}

// RecordCacheLookup counts a cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		CacheHits.Inc()
	} else {
		CacheMisses.Inc()
	}
}
