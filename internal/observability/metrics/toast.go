package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ToastMetrics contains Prometheus metrics for the toast bus. It satisfies
// toast.Recorder.
type ToastMetrics struct {
	announcementsTotal  *prometheus.CounterVec
	droppedTotal        prometheus.Counter
	malformedTotal      prometheus.Counter
	observerPanicsTotal prometheus.Counter
	observers           prometheus.Gauge
	activeToasts        *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewToastMetrics creates and registers the toast bus metrics.
func NewToastMetrics(registry *prometheus.Registry) (*ToastMetrics, error) {
	m := &ToastMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register toast metrics: %w", err)
	}
	return m, nil
}

func (m *ToastMetrics) initMetrics() {
	m.announcementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toast_announcements_total",
			Help: "Total number of toasts announced by variant",
		},
		[]string{"variant"}, // variant: success, error, info
	)

	m.droppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "toast_dropped_total",
		Help: "Toasts announced while no surface was registered",
	})

	m.malformedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "toast_malformed_total",
		Help: "Announcements rejected for missing text or unknown variant",
	})

	m.observerPanicsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "toast_observer_panics_total",
		Help: "Observer callbacks that panicked during delivery",
	})

	m.observers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "toast_observers",
		Help: "Currently registered toast observers",
	})

	m.activeToasts = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "toast_active",
			Help: "Toasts currently displayed by surface",
		},
		[]string{"surface"},
	)
}

func (m *ToastMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.announcementsTotal,
		m.droppedTotal,
		m.malformedTotal,
		m.observerPanicsTotal,
		m.observers,
		m.activeToasts,
	}
}

// Describe implements the Collector interface
func (m *ToastMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *ToastMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// RecordAnnouncement counts a delivered announcement.
func (m *ToastMetrics) RecordAnnouncement(variant string) {
	m.announcementsTotal.WithLabelValues(variant).Inc()
}

// RecordDropped counts an announcement nobody observed.
func (m *ToastMetrics) RecordDropped() {
	m.droppedTotal.Inc()
}

// RecordMalformed counts a rejected announcement.
func (m *ToastMetrics) RecordMalformed() {
	m.malformedTotal.Inc()
}

// RecordObserverPanic counts a recovered observer panic.
func (m *ToastMetrics) RecordObserverPanic() {
	m.observerPanicsTotal.Inc()
}

// SetObservers sets the registered observer gauge.
func (m *ToastMetrics) SetObservers(n int) {
	m.observers.Set(float64(n))
}

// AddActiveToasts moves the per-surface active gauge by delta.
func (m *ToastMetrics) AddActiveToasts(surface string, delta int) {
	m.activeToasts.WithLabelValues(surface).Add(float64(delta))
}
