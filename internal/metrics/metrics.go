package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics, shared by the submission and geolocate handlers.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geobeacon_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geobeacon_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Submission intake.
	SubmissionReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geobeacon_submission_reports_total",
			Help: "Total number of reports received by the submission endpoint, by outcome",
		},
		[]string{"outcome"}, // accepted, dropped (duplicate or null island)
	)

	SubmissionBatchBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geobeacon_submission_batch_bytes",
			Help:    "Size of accepted submission request bodies in bytes",
			Buckets: []float64{1024, 10240, 102400, 1048576, 10485760, 104857600},
		},
	)

	// Processing engine.
	EngineBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geobeacon_engine_batch_duration_seconds",
			Help:    "Duration of one engine batch run",
			Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 300},
		},
	)

	EngineReportsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geobeacon_engine_reports_processed_total",
			Help: "Total number of reports transitioned out of the pending state",
		},
		[]string{"outcome"}, // processed, errored
	)

	EngineObservationsFolded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geobeacon_engine_observations_folded_total",
			Help: "Total number of observations folded into a transmitter estimate",
		},
		[]string{"kind"}, // cell, wifi, bluetooth
	)

	EngineLockContention = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geobeacon_engine_lock_contention_total",
			Help: "Total number of times the engine found the advisory lock already held",
		},
	)

	// Geolocate responder.
	GeolocateRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geobeacon_geolocate_requests_total",
			Help: "Total number of geolocate requests by the precedence branch that answered",
		},
		[]string{"fallback"}, // "" (wifi/cell/mls), ipf, not_found
	)

	// Redis.
	RedisOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geobeacon_redis_operation_duration_seconds",
			Help:    "Duration of Redis operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	RedisOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geobeacon_redis_operation_errors_total",
			Help: "Total number of Redis operation errors",
		},
		[]string{"operation"},
	)

	// Connection status gauges.
	MySQLConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geobeacon_mysql_connection_status",
			Help: "MySQL connection status (1 = connected, 0 = disconnected)",
		},
	)

	RedisConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geobeacon_redis_connection_status",
			Help: "Redis connection status (1 = connected, 0 = disconnected)",
		},
	)

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "geobeacon_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "build_time"},
	)
)

// SetAppInfo records the running build's version metadata.
func SetAppInfo(version, commit, buildTime string) {
	AppInfo.WithLabelValues(version, commit, buildTime).Set(1)
}
