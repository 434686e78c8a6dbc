// Package metrics provides Prometheus metrics for the bull-or-bear service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultRefreshInterval is how often background gauges are refreshed.
const DefaultRefreshInterval = 10 * time.Second

// Label values for guess results.
const (
	ResultCorrect   = "correct"
	ResultIncorrect = "incorrect"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace string
	subsystem string
	registry  prometheus.Registerer

	// Core game metrics
	resolutions         prometheus.Counter
	resolutionConflicts prometheus.Counter
	resolutionDuration  prometheus.Histogram
	guessesScored       *prometheus.CounterVec
	pointsAwarded       prometheus.Counter
	danglingReferences  prometheus.Counter
	guessesSubmitted    prometheus.Counter
	postsTracked        prometheus.Counter

	// Operational gauges
	totalGuessers  prometheus.Gauge
	pendingGuesses prometheus.Gauge
	pendingPostAge prometheus.Gauge

	// Price sampling
	priceSampleLatency prometheus.Histogram
	priceSampleErrors  prometheus.Counter
	priceSampleRetries prometheus.Counter

	// Store
	storeOperationLatency *prometheus.HistogramVec
	storeErrors           *prometheus.CounterVec

	// Scheduler
	scheduledRuns *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRateLimited     *prometheus.CounterVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(
		WithNamespace("bullbear"),
		WithSubsystem("game"),
		WithPrometheusRegistry(customRegistry),
	)
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "bullbear",
		subsystem: "game",
		registry:  prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.resolutions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "resolutions_total",
		Help: "Total number of posts resolved",
	})
	m.resolutionConflicts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "resolution_conflicts_total",
		Help: "Resolution attempts rejected because the post was already resolved",
	})
	m.resolutionDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "resolution_duration_ms",
		Help:    "End-to-end resolution pass duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
	})
	m.guessesScored = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "guesses_scored_total",
		Help: "Guesses moved out of pending, by result",
	}, []string{"result"})
	m.pointsAwarded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "points_awarded_total",
		Help: "Score points awarded to guessers",
	})
	m.danglingReferences = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "dangling_guesser_references_total",
		Help: "Guesses whose guesser could not be found at resolution time",
	})
	m.guessesSubmitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "guesses_submitted_total",
		Help: "Guesses accepted for a pending post",
	})
	m.postsTracked = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "posts_tracked_total",
		Help: "Posts recorded for prediction",
	})

	m.totalGuessers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "guessers",
		Help: "Number of registered guessers",
	})
	m.pendingGuesses = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "pending_guesses",
		Help: "Guesses waiting on the current pending post",
	})
	m.pendingPostAge = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "pending_post_age_seconds",
		Help: "Age of the current unresolved post, 0 when none",
	})

	m.priceSampleLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "price",
		Name:    "sample_latency_ms",
		Help:    "Latency of closing price samples in milliseconds",
		Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 30000},
	})
	m.priceSampleErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "price",
		Name: "sample_errors_total",
		Help: "Price samples that failed after all retries",
	})
	m.priceSampleRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "price",
		Name: "sample_retries_total",
		Help: "Retried price sample attempts",
	})

	m.storeOperationLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "store",
		Name:    "operation_latency_ms",
		Help:    "Store operation latency in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500},
	}, []string{"operation"})
	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "store",
		Name: "errors_total",
		Help: "Store operation failures by operation",
	}, []string{"operation"})

	m.scheduledRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "scheduler",
		Name: "runs_total",
		Help: "Scheduled job runs by job and status",
	}, []string{"job", "status"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "http",
		Name: "requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "http",
		Name:    "request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"endpoint", "method", "status_code"})
	m.httpRateLimited = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "http",
		Name: "rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	}, []string{"endpoint"})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "errors",
		Name: "by_component_total",
		Help: "Errors by component and type",
	}, []string{"component", "error_type"})
	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "errors",
		Name: "by_endpoint_total",
		Help: "HTTP errors by endpoint, method and type",
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system",
		Name: "memory_usage_bytes",
		Help: "Current heap allocation in bytes",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system",
		Name: "goroutines",
		Help: "Current number of goroutines",
	})
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "system",
		Name:    "gc_pause_ms",
		Help:    "Average GC pause time in milliseconds",
		Buckets: prometheus.DefBuckets,
	})
}

// Core game metrics.

// RecordResolution records a committed resolution pass.
func RecordResolution(durationMs float64) {
	globalManager.resolutions.Inc()
	globalManager.resolutionDuration.Observe(durationMs)
}

// RecordResolutionConflict records a resolution rejected by the already-resolved guard.
func RecordResolutionConflict() {
	globalManager.resolutionConflicts.Inc()
}

// RecordGuessScored records one guess leaving pending.
func RecordGuessScored(correct bool) {
	result := ResultIncorrect
	if correct {
		result = ResultCorrect
	}
	globalManager.guessesScored.WithLabelValues(result).Inc()
}

// RecordPointsAwarded adds awarded score points.
func RecordPointsAwarded(points int64) {
	if points <= 0 {
		return
	}
	globalManager.pointsAwarded.Add(float64(points))
}

// RecordDanglingReference records a guess whose guesser is missing.
func RecordDanglingReference() {
	globalManager.danglingReferences.Inc()
}

// RecordGuessSubmitted records an accepted guess.
func RecordGuessSubmitted() {
	globalManager.guessesSubmitted.Inc()
}

// RecordPostTracked records a newly tracked post.
func RecordPostTracked() {
	globalManager.postsTracked.Inc()
}

// Operational gauges.

// UpdateTotalGuessers sets the registered guessers gauge.
func UpdateTotalGuessers(count int) {
	globalManager.totalGuessers.Set(float64(count))
}

// UpdatePendingGuesses sets the pending guesses gauge.
func UpdatePendingGuesses(count int) {
	globalManager.pendingGuesses.Set(float64(count))
}

// UpdatePendingPostAge sets the age of the pending post.
func UpdatePendingPostAge(age time.Duration) {
	globalManager.pendingPostAge.Set(age.Seconds())
}

// Price sampling.

// RecordPriceSample records a successful price sample.
func RecordPriceSample(latencyMs float64) {
	globalManager.priceSampleLatency.Observe(latencyMs)
}

// RecordPriceSampleError records a price sample that failed permanently.
func RecordPriceSampleError() {
	globalManager.priceSampleErrors.Inc()
	RecordErrorByComponent("pricefeed", "sample_failed")
}

// RecordPriceSampleRetry records one retried sample attempt.
func RecordPriceSampleRetry() {
	globalManager.priceSampleRetries.Inc()
}

// Store.

// RecordStoreLatency records the latency of a store operation.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeOperationLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordStoreError records a failed store operation.
func RecordStoreError(operation string) {
	globalManager.storeErrors.WithLabelValues(operation).Inc()
	RecordErrorByComponent("store", operation)
}

// Scheduler.

// RecordScheduledRun records a scheduled job run outcome.
func RecordScheduledRun(job, status string) {
	globalManager.scheduledRuns.WithLabelValues(job, status).Inc()
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordRateLimited records a request rejected by a limiter.
func RecordRateLimited(endpoint string) {
	globalManager.httpRateLimited.WithLabelValues(endpoint).Inc()
}

// Errors.

// RecordErrorByComponent records an error for a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an HTTP error for an endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage updates memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount updates goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom registry the service exposes.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
