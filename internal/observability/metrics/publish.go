package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PublishMetrics contains Prometheus metrics for forwarding appointment
// events to MQTT and push services.
type PublishMetrics struct {
	MQTTConnectionStatus prometheus.Gauge
	deliveriesTotal      *prometheus.CounterVec
	deliveryDuration     *prometheus.HistogramVec
	messageSize          prometheus.Histogram
	rateLimited          *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewPublishMetrics creates and registers publisher metrics.
func NewPublishMetrics(registry *prometheus.Registry) (*PublishMetrics, error) {
	m := &PublishMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register publish metrics: %w", err)
	}
	return m, nil
}

func (m *PublishMetrics) initMetrics() {
	m.MQTTConnectionStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mqtt_connection_status",
		Help: "Current MQTT connection status (1 for connected, 0 for disconnected)",
	})

	m.deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publish_deliveries_total",
			Help: "Event deliveries to external channels by channel and status",
		},
		[]string{"channel", "status"}, // channel: mqtt, push
	)

	m.deliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "publish_delivery_duration_seconds",
			Help:    "Time taken to deliver an event to an external channel",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
		},
		[]string{"channel"},
	)

	m.messageSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mqtt_message_size_bytes",
		Help:    "Size of MQTT messages in bytes",
		Buckets: prometheus.ExponentialBuckets(BucketStart64B, BucketFactor2, BucketCount10),
	})

	m.rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publish_rate_limited_total",
			Help: "Deliveries that waited on the channel rate limit",
		},
		[]string{"channel"},
	)
}

func (m *PublishMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MQTTConnectionStatus,
		m.deliveriesTotal,
		m.deliveryDuration,
		m.messageSize,
		m.rateLimited,
	}
}

// Describe implements the Collector interface
func (m *PublishMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *PublishMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// UpdateMQTTConnection sets the connection gauge.
func (m *PublishMetrics) UpdateMQTTConnection(connected bool) {
	if connected {
		m.MQTTConnectionStatus.Set(1)
		return
	}
	m.MQTTConnectionStatus.Set(0)
}

// RecordDelivery records one delivery attempt.
func (m *PublishMetrics) RecordDelivery(channel, status string, duration float64) {
	m.deliveriesTotal.WithLabelValues(channel, status).Inc()
	m.deliveryDuration.WithLabelValues(channel).Observe(duration)
}

// RecordMessageSize observes the size of an MQTT payload.
func (m *PublishMetrics) RecordMessageSize(size int) {
	m.messageSize.Observe(float64(size))
}

// RecordRateLimited counts a delivery skipped by the limiter.
func (m *PublishMetrics) RecordRateLimited(channel string) {
	m.rateLimited.WithLabelValues(channel).Inc()
}

// DeliveriesTotal exposes the delivery counter for inspection.
func (m *PublishMetrics) DeliveriesTotal() *prometheus.CounterVec {
	return m.deliveriesTotal
}

// RateLimited exposes the rate limited counter for inspection.
func (m *PublishMetrics) RateLimited() *prometheus.CounterVec {
	return m.rateLimited
}
