package collection

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricOperationsTotal   = "collection_operations_total"
	MetricOperationDuration = "collection_operation_duration_seconds"
	MetricCorruptLoadsTotal = "collection_corrupt_loads_total"
	MetricPayloadBytes      = "collection_payload_bytes"
)

// Operation labels.
const (
	OpLoad    = "load"
	OpReplace = "replace"
	OpUpdate  = "update"
)

// Status labels.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	// StatusAborted marks an update whose callback returned an error, so
	// nothing was written.
	StatusAborted = "aborted"
)

// Metrics contains Prometheus metrics for collection operations.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	operations   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	corruptLoads *prometheus.CounterVec
	payloadBytes *prometheus.GaugeVec
}

// NewMetrics creates collectors. They are not registered; call Register.
func NewMetrics() *Metrics {
	return &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricOperationsTotal,
				Help: "Total number of collection operations by collection, operation and status",
			},
			[]string{"collection", "operation", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricOperationDuration,
				Help:    "Histogram of collection operation duration in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"collection", "operation"},
		),
		corruptLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCorruptLoadsTotal,
				Help: "Total number of loads that found an undecodable payload",
			},
			[]string{"collection"},
		),
		payloadBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: MetricPayloadBytes,
				Help: "Size in bytes of the last payload written per collection",
			},
			[]string{"collection"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all Prometheus collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.operations,
		m.duration,
		m.corruptLoads,
		m.payloadBytes,
	}
}

func (m *Metrics) observe(collection, operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(collection, operation, status).Inc()
	m.duration.WithLabelValues(collection, operation).Observe(seconds)
}

func (m *Metrics) incCorrupt(collection string) {
	if m == nil {
		return
	}
	m.corruptLoads.WithLabelValues(collection).Inc()
}

func (m *Metrics) setPayloadBytes(collection string, n int) {
	if m == nil {
		return
	}
	m.payloadBytes.WithLabelValues(collection).Set(float64(n))
}
