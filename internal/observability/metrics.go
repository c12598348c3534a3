package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scribe_gateway_active_connections",
		Help: "Number of open client connections",
	})

	totalConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scribe_gateway_connections_total",
		Help: "Total number of client connections accepted",
	})

	connectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scribe_gateway_connection_duration_seconds",
		Help:    "Lifetime of client connections in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 300, 900, 1800, 3600},
	})

	// Recording metrics
	recordingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scribe_gateway_recordings_total",
		Help: "Total number of recordings started",
	})

	audioBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scribe_gateway_audio_bytes_total",
		Help: "Total audio bytes captured",
	})

	// Finalize metrics
	finalizeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scribe_gateway_finalize_total",
		Help: "Total number of finalize attempts",
	}, []string{"status"}) // success, empty, unavailable, upstream

	finalizeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scribe_gateway_finalize_latency_seconds",
		Help:    "Finalize latency in seconds",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})

	deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scribe_gateway_deliveries_total",
		Help: "Total number of transcription results emitted",
	}, []string{"status"}) // sent, failed

	// Diff metrics
	diffTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scribe_gateway_diff_total",
		Help: "Total number of visit diffs by result path",
	}, []string{"path"}) // primary, salvaged, fallback

	diffLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scribe_gateway_diff_latency_seconds",
		Help:    "Visit diff latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scribe_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scribe_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scribe_gateway_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// SessionMetrics tracks metrics for a single client connection
type SessionMetrics struct {
	connectionID string
	startTime    time.Time
}

// NewSessionMetrics creates a new metrics tracker for a connection
func NewSessionMetrics(connectionID string) *SessionMetrics {
	return &SessionMetrics{
		connectionID: connectionID,
		startTime:    time.Now(),
	}
}

// RecordConnect records an accepted connection
func (m *SessionMetrics) RecordConnect() {
	activeConnections.Inc()
	totalConnections.Inc()
}

// RecordDisconnect records the end of a connection
func (m *SessionMetrics) RecordDisconnect() {
	activeConnections.Dec()
	connectionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordRecordingStart counts a start-recording event
func (m *SessionMetrics) RecordRecordingStart() {
	recordingsTotal.Inc()
}

// RecordAudioBytes records captured audio bytes
func (m *SessionMetrics) RecordAudioBytes(n int) {
	audioBytesTotal.Add(float64(n))
}

// ConnectionID returns the connection this tracker belongs to
func (m *SessionMetrics) ConnectionID() string {
	return m.connectionID
}

// RecordError records an error
func (m *SessionMetrics) RecordError(errorType, component string) {
	RecordError(errorType, component)
}

// RecordFinalize records the outcome and latency of one finalize.
func RecordFinalize(status string, d time.Duration) {
	finalizeTotal.WithLabelValues(status).Inc()
	finalizeLatency.Observe(d.Seconds())
}

// RecordDelivery records whether a result reached the emitter.
func RecordDelivery(sent bool) {
	status := "sent"
	if !sent {
		status = "failed"
	}
	deliveriesTotal.WithLabelValues(status).Inc()
}

// RecordDiff records which path produced a visit diff.
func RecordDiff(path string, d time.Duration) {
	diffTotal.WithLabelValues(path).Inc()
	diffLatency.Observe(d.Seconds())
}

// RecordError records an error outside a connection scope
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
