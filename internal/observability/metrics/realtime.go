package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// RealtimeMetrics contains all Prometheus metrics related to the SSE broker
// and the event bus.
type RealtimeMetrics struct {
	ConnectedClients prometheus.Gauge
	FramesDelivered  prometheus.Counter
	DeliveryFailures prometheus.Counter
	EventsDropped    prometheus.Counter
	registry         *prometheus.Registry
}

// NewRealtimeMetrics creates a new instance of RealtimeMetrics.
func NewRealtimeMetrics(registry *prometheus.Registry) (*RealtimeMetrics, error) {
	m := &RealtimeMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register realtime metrics: %w", err)
	}
	return m, nil
}

func (m *RealtimeMetrics) initMetrics() {
	m.ConnectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_connected_clients",
		Help: "Current number of connected SSE observers",
	})

	m.FramesDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "realtime_frames_delivered_total",
		Help: "Total number of event frames handed to observer channels",
	})

	m.DeliveryFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "realtime_delivery_failures_total",
		Help: "Total number of observer channels evicted after a failed delivery",
	})

	m.EventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "realtime_events_dropped_total",
		Help: "Total number of events dropped by the event bus before fanout",
	})
}

// Describe implements prometheus.Collector.
func (m *RealtimeMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.ConnectedClients.Describe(ch)
	m.FramesDelivered.Describe(ch)
	m.DeliveryFailures.Describe(ch)
	m.EventsDropped.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *RealtimeMetrics) Collect(ch chan<- prometheus.Metric) {
	m.ConnectedClients.Collect(ch)
	m.FramesDelivered.Collect(ch)
	m.DeliveryFailures.Collect(ch)
	m.EventsDropped.Collect(ch)
}
