// Package metrics provides Prometheus metrics for the scoutstat rating service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the rating service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// OPR metrics
	oprComputations prometheus.Counter
	oprEmptyResults prometheus.Counter
	oprErrors       prometheus.Counter
	oprLatency      prometheus.Histogram

	// EPA metrics
	epaMatchesReplayed  prometheus.Counter
	epaReplayFailures   prometheus.Counter
	epaReplayDuration   prometheus.Histogram
	epaTeamsRated       prometheus.Gauge
	epaLastReplayUnix   prometheus.Gauge
	epaBootstrapAverage prometheus.Gauge

	// Import metrics
	importedMatches prometheus.Counter
	importedScores  prometheus.Counter
	importSkipped   prometheus.Counter
	importErrors    prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository Metrics
	repositoryQueryLatency prometheus.Histogram
	repositoryWriteLatency prometheus.Histogram

	// Queue Metrics - OPR job queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker Metrics
	workerActiveCount       prometheus.Gauge
	workerMessagesPerSecond prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "scoutstat",
		subsystem:        "ratings",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	return m.metricPrefix + n
}

func (m *Manager) counter(n, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(n),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) gauge(n, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(n),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(n, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(n),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.oprComputations = m.counter("opr_computations_total", "Total number of OPR regressions solved")
	m.oprEmptyResults = m.counter("opr_empty_results_total", "OPR requests that returned no ratings (empty event or inconsistent data)")
	m.oprErrors = m.counter("opr_errors_total", "OPR requests that failed")
	m.oprLatency = m.histogram("opr_latency_milliseconds", "Time to build and solve one OPR system", m.histogramBuckets)

	m.epaMatchesReplayed = m.counter("epa_matches_replayed_total", "Matches applied to the EPA rating state")
	m.epaReplayFailures = m.counter("epa_replay_failures_total", "EPA season replays that aborted")
	m.epaReplayDuration = m.histogram("epa_replay_duration_milliseconds", "Duration of a full EPA season replay",
		[]float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000})
	m.epaTeamsRated = m.gauge("epa_teams_rated", "Teams with at least one EPA update")
	m.epaLastReplayUnix = m.gauge("epa_last_replay_unix", "Unix time of the last successful EPA replay")
	m.epaBootstrapAverage = m.gauge("epa_bootstrap_average_points", "Average alliance score inside the EPA bootstrap window")

	m.importedMatches = m.counter("import_matches_total", "Matches written by the importer")
	m.importedScores = m.counter("import_scores_total", "Alliance score records written by the importer")
	m.importSkipped = m.counter("import_skipped_total", "Import files skipped as already seen")
	m.importErrors = m.counter("import_errors_total", "Import files that failed")

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      m.name("http_requests_total"),
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      m.name("http_request_duration_milliseconds"),
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds", "Match repository read latency in milliseconds", m.histogramBuckets)
	m.repositoryWriteLatency = m.histogram("repository_write_latency_milliseconds", "Match repository write latency in milliseconds", m.histogramBuckets)

	m.queueSize = m.gauge("queue_size", "Current number of queued OPR jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of queued OPR jobs")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue size divided by capacity")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "OPR jobs enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "OPR jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "OPR jobs rejected by the queue")

	m.workerActiveCount = m.gauge("worker_active_count", "Number of OPR workers")
	m.workerMessagesPerSecond = m.gauge("worker_jobs_per_second", "OPR jobs completed per second")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Time a worker spends on one OPR job", m.histogramBuckets)
	m.workerErrorRate = m.counter("worker_errors_total", "OPR jobs that finished with an error")

	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      m.name("errors_by_component_total"),
			Help:      "Errors by component and error type",
		},
		[]string{"component", "error_type"},
	)

	m.errorRateByType = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      m.name("errors_by_type_total"),
			Help:      "Errors by type and severity",
		},
		[]string{"error_type", "severity"},
	)

	m.errorRateByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      m.name("errors_by_endpoint_total"),
			Help:      "HTTP errors by endpoint, method and type",
		},
		[]string{"endpoint", "method", "error_type"},
	)

	m.errorLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      m.name("error_latency_milliseconds"),
			Help:      "Latency of operations that ended in an error",
			Buckets:   m.histogramBuckets,
		},
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// OPR Metrics Functions.

// RecordOPRComputation records a solved OPR system and its latency.
func RecordOPRComputation(latencyMs float64) {
	globalManager.oprComputations.Inc()
	globalManager.oprLatency.Observe(latencyMs)
}

// RecordOPREmptyResult increments the empty OPR result counter.
func RecordOPREmptyResult() {
	globalManager.oprEmptyResults.Inc()
}

// RecordOPRError increments the OPR error counter.
func RecordOPRError() {
	globalManager.oprErrors.Inc()
}

// EPA Metrics Functions.

// RecordEPAMatchReplayed increments the replayed matches counter.
func RecordEPAMatchReplayed() {
	globalManager.epaMatchesReplayed.Inc()
}

// RecordEPAReplay records a finished season replay.
func RecordEPAReplay(durationMs float64, teams int) {
	globalManager.epaReplayDuration.Observe(durationMs)
	globalManager.epaTeamsRated.Set(float64(teams))
	globalManager.epaLastReplayUnix.Set(float64(time.Now().Unix()))
}

// RecordEPAReplayFailure increments the failed replay counter.
func RecordEPAReplayFailure() {
	globalManager.epaReplayFailures.Inc()
}

// UpdateEPABootstrapAverage sets the bootstrap window average.
func UpdateEPABootstrapAverage(avg float64) {
	globalManager.epaBootstrapAverage.Set(avg)
}

// Import Metrics Functions.

// RecordImportedMatches adds n imported matches.
func RecordImportedMatches(n int) {
	globalManager.importedMatches.Add(float64(n))
}

// RecordImportedScores adds n imported alliance score records.
func RecordImportedScores(n int) {
	globalManager.importedScores.Add(float64(n))
}

// RecordImportSkipped increments the skipped import counter.
func RecordImportSkipped() {
	globalManager.importSkipped.Inc()
}

// RecordImportError increments the import error counter.
func RecordImportError() {
	globalManager.importErrors.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Repository Metrics Functions.

// RecordRepositoryQueryLatency records repository query latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// RecordRepositoryWriteLatency records repository write latency.
func RecordRepositoryWriteLatency(latencyMs float64) {
	globalManager.repositoryWriteLatency.Observe(latencyMs)
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Worker Metrics Functions.

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateWorkerMessagesPerSecond sets the average jobs completed per second.
func UpdateWorkerMessagesPerSecond(rate float64) {
	globalManager.workerMessagesPerSecond.Set(rate)
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
