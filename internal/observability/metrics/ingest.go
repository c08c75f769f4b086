// Package metrics provides custom Prometheus metrics for various components of the SafeTrack application.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics contains all Prometheus metrics related to location ingestion.
type IngestMetrics struct {
	SamplesProcessed prometheus.Counter
	SamplesIgnored   prometheus.Counter
	SamplesRejected  prometheus.Counter
	AlertsCreated    *prometheus.CounterVec
	ProcessDuration  prometheus.Histogram
	registry         *prometheus.Registry
}

// NewIngestMetrics creates a new instance of IngestMetrics.
// It requires a Prometheus registry to register the metrics.
func NewIngestMetrics(registry *prometheus.Registry) (*IngestMetrics, error) {
	m := &IngestMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register ingest metrics: %w", err)
	}
	return m, nil
}

func (m *IngestMetrics) initMetrics() {
	m.SamplesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_samples_processed_total",
		Help: "Total number of location samples accepted and evaluated",
	})

	m.SamplesIgnored = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_samples_ignored_total",
		Help: "Total number of location samples recorded but skipped for low accuracy",
	})

	m.SamplesRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_samples_rejected_total",
		Help: "Total number of location samples rejected by validation",
	})

	m.AlertsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_alerts_created_total",
		Help: "Total number of geofence alerts created by kind",
	}, []string{"kind"})

	m.ProcessDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingest_process_duration_seconds",
		Help:    "Time spent processing a single location sample",
		Buckets: prometheus.DefBuckets,
	})
}

// Describe implements prometheus.Collector.
func (m *IngestMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.SamplesProcessed.Describe(ch)
	m.SamplesIgnored.Describe(ch)
	m.SamplesRejected.Describe(ch)
	m.AlertsCreated.Describe(ch)
	m.ProcessDuration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *IngestMetrics) Collect(ch chan<- prometheus.Metric) {
	m.SamplesProcessed.Collect(ch)
	m.SamplesIgnored.Collect(ch)
	m.SamplesRejected.Collect(ch)
	m.AlertsCreated.Collect(ch)
	m.ProcessDuration.Collect(ch)
}
