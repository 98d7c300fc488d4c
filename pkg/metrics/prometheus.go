// Package metrics provides Prometheus metrics for the episodecam service.
package metrics

import (
	"fmt"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default histogram buckets.
var (
	defaultLatencyBuckets  = []float64{0.5, 1, 2, 5, 10, 20, 50, 100, 250, 500, 1000}
	defaultDurationBuckets = []float64{0.5, 1, 2, 3, 5, 8, 13, 21, 34, 60}
)

// Manager manages all Prometheus metrics for the episodecam service.
type Manager struct {
	namespace       string
	subsystem       string
	latencyBuckets  []float64
	durationBuckets []float64
	constLabels     map[string]string
	metricPrefix    string
	registry        prometheus.Registerer

	// Acquisition
	framesCaptured prometheus.Counter
	captureMisses  prometheus.Counter
	framesSkipped  prometheus.Counter
	fps            prometheus.Gauge
	fpsJitter      prometheus.Gauge

	// Classification
	framesClassified prometheus.Counter
	motionFrames     prometheus.Counter
	classifyErrors   prometheus.Counter
	classifyLatency  prometheus.Histogram
	backgroundResets prometheus.Counter
	configRejections *prometheus.CounterVec

	// Episodes
	controllerState  *prometheus.GaugeVec
	episodesStarted  prometheus.Counter
	episodesClosed   *prometheus.CounterVec
	episodeDuration  prometheus.Histogram
	episodeFrames    prometheus.Histogram
	persistenceError *prometheus.CounterVec

	// Notifier
	notifierEvents     *prometheus.CounterVec
	notifierSuppressed prometheus.Counter

	// Live feed
	feedSubscribers   prometheus.Gauge
	feedFramesDropped prometheus.Counter

	// Repository
	repositoryQueryLatency *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:       "episodecam",
		subsystem:       "camera",
		latencyBuckets:  defaultLatencyBuckets,
		durationBuckets: defaultDurationBuckets,
		constLabels:     make(map[string]string),
		registry:        prometheus.DefaultRegisterer,
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

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.constLabels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.constLabels,
		})
	}
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.constLabels,
		}, labels)
	}
	histogram := func(name, help string, buckets []float64) prometheus.Histogram {
		return auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, Buckets: buckets, ConstLabels: m.constLabels,
		})
	}
	histogramVec := func(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
		return auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, Buckets: buckets, ConstLabels: m.constLabels,
		}, labels)
	}
	msBuckets := m.latencyBuckets

	m.framesCaptured = counter("frames_captured_total", "Frames returned by the frame source")
	m.captureMisses = counter("capture_misses_total", "Transient capture misses (no frame available)")
	m.framesSkipped = counter("frames_skipped_total", "Frames not classified because of the processing stride")
	m.fps = gauge("fps", "Rolling frames per second measured from capture timestamps")
	m.fpsJitter = gauge("frame_interval_stddev_seconds", "Standard deviation of frame intervals in the FPS window")

	m.framesClassified = counter("frames_classified_total", "Frames run through the motion classifier")
	m.motionFrames = counter("motion_frames_total", "Classified frames that reported motion")
	m.classifyErrors = counter("classify_errors_total", "Classifier failures treated as negative observations")
	m.classifyLatency = histogram("classify_latency_milliseconds", "Motion classification latency in milliseconds", msBuckets)
	m.backgroundResets = counter("background_resets_total", "Background reference resets")
	m.configRejections = counterVec("config_rejections_total", "Rejected classifier configuration values", "field")

	m.controllerState = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("controller_state"),
		Help: "Episode controller state (1 for the current state)", ConstLabels: m.constLabels,
	}, []string{"state"})
	m.episodesStarted = counter("episodes_started_total", "Episodes opened by the controller")
	m.episodesClosed = counterVec("episodes_closed_total", "Episodes closed by the controller", "reason")
	m.episodeDuration = histogram("episode_duration_seconds", "Episode duration in seconds", m.durationBuckets)
	m.episodeFrames = histogram("episode_frames", "Frames recorded per episode", []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000})
	m.persistenceError = counterVec("persistence_errors_total", "Recorder or database failures", "operation")

	m.notifierEvents = counterVec("notifier_events_total", "Events emitted by the notifier", "type", "severity")
	m.notifierSuppressed = counter("notifier_suppressed_total", "Duplicate events suppressed by the notifier")

	m.feedSubscribers = gauge("feed_subscribers", "Live feed subscribers")
	m.feedFramesDropped = counter("feed_frames_dropped_total", "Annotated frames dropped for slow feed subscribers")

	m.repositoryQueryLatency = histogramVec("repository_query_latency_milliseconds", "Repository operation latency in milliseconds", msBuckets, "operation")

	m.httpRequests = counterVec("http_requests_total", "Total number of HTTP requests", "endpoint", "method", "status_code")
	m.httpRequestDuration = histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", msBuckets, "endpoint", "method", "status_code")

	m.errorRateByComponent = counterVec("errors_by_component_total", "Errors by component and error type", "component", "error_type")
	m.errorRateByType = counterVec("errors_by_type_total", "Errors by error type and severity", "error_type", "severity")
	m.errorRateByEndpoint = counterVec("errors_by_endpoint_total", "Errors by HTTP endpoint", "endpoint", "method", "error_type")
	m.errorLatency = histogramVec("error_latency_milliseconds", "Latency of operations that resulted in errors", msBuckets, "component", "error_type")

	m.systemMemoryUsage = gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Acquisition.

// RecordFrameCaptured increments the captured frames counter.
func RecordFrameCaptured() { globalManager.framesCaptured.Inc() }

// RecordCaptureMiss increments the capture miss counter.
func RecordCaptureMiss() { globalManager.captureMisses.Inc() }

// RecordFrameSkipped increments the stride-skipped frames counter.
func RecordFrameSkipped() { globalManager.framesSkipped.Inc() }

// UpdateFPS sets the rolling FPS and frame interval jitter.
func UpdateFPS(fps, jitterSeconds float64) {
	globalManager.fps.Set(fps)
	globalManager.fpsJitter.Set(jitterSeconds)
}

// Classification.

// RecordFrameClassified records a classification and its latency.
func RecordFrameClassified(latencyMs float64, motion bool) {
	globalManager.framesClassified.Inc()
	globalManager.classifyLatency.Observe(latencyMs)
	if motion {
		globalManager.motionFrames.Inc()
	}
}

// RecordClassifyError increments the classifier failure counter.
func RecordClassifyError() { globalManager.classifyErrors.Inc() }

// RecordBackgroundReset increments the background reset counter.
func RecordBackgroundReset() { globalManager.backgroundResets.Inc() }

// RecordConfigRejection counts a rejected classifier config field.
func RecordConfigRejection(field string) {
	globalManager.configRejections.WithLabelValues(field).Inc()
}

// Episodes.

// UpdateControllerState marks state as current and clears the others.
func UpdateControllerState(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		globalManager.controllerState.WithLabelValues(s).Set(v)
	}
}

// RecordEpisodeStarted increments the episodes started counter.
func RecordEpisodeStarted() { globalManager.episodesStarted.Inc() }

// RecordEpisodeClosed records a closed episode with its reason, duration and frame count.
func RecordEpisodeClosed(reason string, durationSeconds float64, frames int) {
	globalManager.episodesClosed.WithLabelValues(reason).Inc()
	globalManager.episodeDuration.Observe(durationSeconds)
	globalManager.episodeFrames.Observe(float64(frames))
}

// RecordPersistenceError counts a recorder or database failure.
func RecordPersistenceError(operation string) {
	globalManager.persistenceError.WithLabelValues(operation).Inc()
}

// Notifier.

// RecordNotifierEvent counts an emitted event.
func RecordNotifierEvent(eventType, severity string) {
	globalManager.notifierEvents.WithLabelValues(eventType, severity).Inc()
}

// RecordNotifierSuppressed counts a suppressed duplicate event.
func RecordNotifierSuppressed() { globalManager.notifierSuppressed.Inc() }

// Live feed.

// UpdateFeedSubscribers sets the number of live feed subscribers.
func UpdateFeedSubscribers(n int) { globalManager.feedSubscribers.Set(float64(n)) }

// RecordFeedFrameDropped counts an annotated frame dropped for a slow subscriber.
func RecordFeedFrameDropped() { globalManager.feedFramesDropped.Inc() }

// RecordRepositoryQueryLatency records repository operation latency.
func RecordRepositoryQueryLatency(operation string, latencyMs float64) {
	globalManager.repositoryQueryLatency.WithLabelValues(operation).Observe(latencyMs)
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

// Errors.

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

// System.

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

// Families returns the sorted names of the metric families in the custom registry.
func Families() ([]string, error) {
	mfs, err := customRegistry.Gather()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGather, err)
	}
	names := make([]string, 0, len(mfs))
	for _, mf := range mfs {
		names = append(names, mf.GetName())
	}
	sort.Strings(names)
	return names, nil
}
