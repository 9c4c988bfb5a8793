// Package metrics provides HTTP handler metrics for observability
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/tphakala/healthdesk/internal/logger"
)

// HTTPMetrics contains Prometheus metrics for HTTP handler operations
type HTTPMetrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestErrors   *prometheus.CounterVec

	authOperationsTotal *prometheus.CounterVec

	// toast streams over SSE and websocket
	streamActiveConnections prometheus.Gauge
	streamTotalConnections  *prometheus.CounterVec
	streamConnectionLength  *prometheus.HistogramVec
	streamMessagesSent      *prometheus.CounterVec
}

// NewHTTPMetrics creates and registers new HTTP handler metrics
func NewHTTPMetrics(registry *prometheus.Registry) (*HTTPMetrics, error) {
	m := &HTTPMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *HTTPMetrics) initMetrics() {
	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"}, // path is the route pattern, never the raw URL
	)

	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Time taken for HTTP requests",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12), // 1ms to ~4s
		},
		[]string{"method", "path"},
	)

	m.httpRequestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_errors_total",
			Help: "Total number of HTTP request errors",
		},
		[]string{"method", "path", "error_type"}, // error_type: validation, not-found, database, auth, system
	)

	m.authOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_auth_operations_total",
			Help: "Total number of authentication operations",
		},
		[]string{"operation", "status"}, // operation: signup, login, validate
	)

	m.streamActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "toast_stream_connections",
			Help: "Current number of open toast streams",
		},
	)

	m.streamTotalConnections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toast_stream_connections_total",
			Help: "Toast stream connections by transport and outcome",
		},
		[]string{"transport", "status"}, // transport: sse, websocket
	)

	m.streamConnectionLength = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "toast_stream_connection_duration_seconds",
			Help:    "Lifetime of toast stream connections",
			Buckets: prometheus.ExponentialBuckets(BucketStart1s, BucketFactor2, BucketCount15), // 1s to ~9h
		},
		[]string{"transport"},
	)

	m.streamMessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toast_stream_messages_sent_total",
			Help: "Messages written to toast streams",
		},
		[]string{"transport", "message_type"}, // message_type: connected, toast, expired, heartbeat
	)
}

func (m *HTTPMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpRequestErrors,
		m.authOperationsTotal,
		m.streamActiveConnections,
		m.streamTotalConnections,
		m.streamConnectionLength,
		m.streamMessagesSent,
	}
}

// Describe implements the Collector interface
func (m *HTTPMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *HTTPMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// RecordHTTPRequest records an HTTP request
func (m *HTTPMetrics) RecordHTTPRequest(method, path string, statusCode int, duration float64) {
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordHTTPRequestError records an HTTP request error
func (m *HTTPMetrics) RecordHTTPRequestError(method, path, errorType string) {
	m.httpRequestErrors.WithLabelValues(method, path, errorType).Inc()
}

// RecordAuthOperation records an authentication operation
func (m *HTTPMetrics) RecordAuthOperation(operation, status string) {
	m.authOperationsTotal.WithLabelValues(operation, status).Inc()
}

// Stream close reasons. Anything else is recorded as error.
const (
	StreamCloseReasonClosed   = "closed"
	StreamCloseReasonTimeout  = "timeout"
	StreamCloseReasonCanceled = "canceled"
	StreamCloseReasonError    = "error"
)

// StreamOpened increments the active and established counters.
func (m *HTTPMetrics) StreamOpened(transport string) {
	m.streamActiveConnections.Inc()
	m.streamTotalConnections.WithLabelValues(transport, "established").Inc()
}

// StreamClosed decrements active connections and records the lifetime.
func (m *HTTPMetrics) StreamClosed(transport string, duration float64, reason string) {
	switch reason {
	case StreamCloseReasonClosed, StreamCloseReasonTimeout, StreamCloseReasonCanceled, StreamCloseReasonError:
	default:
		reason = StreamCloseReasonError
	}

	m.streamActiveConnections.Dec()
	m.streamTotalConnections.WithLabelValues(transport, reason).Inc()
	m.streamConnectionLength.WithLabelValues(transport).Observe(duration)
}

// RecordStreamMessage counts a message written to a stream.
func (m *HTTPMetrics) RecordStreamMessage(transport, messageType string) {
	m.streamMessagesSent.WithLabelValues(transport, messageType).Inc()
}

// ActiveStreams returns the current number of open toast streams.
func (m *HTTPMetrics) ActiveStreams() float64 {
	metric := &dto.Metric{}
	if err := m.streamActiveConnections.Write(metric); err != nil {
		log.Warn("Failed to read stream connection gauge", logger.Error(err))
		return 0
	}
	if metric.Gauge != nil && metric.Gauge.Value != nil {
		return *metric.Gauge.Value
	}
	return 0
}
