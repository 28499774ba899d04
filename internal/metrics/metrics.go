// Package metrics provides Prometheus metrics for rename runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "refname"

// Metrics holds the collectors for one run, registered on their own registry.
type Metrics struct {
	Registry *prometheus.Registry

	// DocumentsTotal tracks documents by terminal decision
	DocumentsTotal *prometheus.CounterVec

	// SourceLookupsTotal tracks adapter lookups by outcome
	SourceLookupsTotal *prometheus.CounterVec

	// SourceLookupSeconds tracks adapter latency
	SourceLookupSeconds *prometheus.HistogramVec

	// OverallConfidence tracks fused confidence per document
	OverallConfidence prometheus.Histogram
}

// New registers a fresh set of collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		DocumentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_total",
				Help:      "Total number of documents processed by decision",
			},
			[]string{"decision"},
		),
		SourceLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_lookups_total",
				Help:      "Total number of metadata source lookups by outcome",
			},
			[]string{"source", "outcome"},
		),
		SourceLookupSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "source_lookup_seconds",
				Help:      "Duration of metadata source lookups in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"source"},
		),
		OverallConfidence: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "overall_confidence",
				Help:      "Overall confidence of fused records",
				Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
			},
		),
	}
}

// ObserveLookup records one adapter outcome. Its signature matches
// fusion.Observer.
func (m *Metrics) ObserveLookup(source, outcome string, elapsed time.Duration) {
	m.SourceLookupsTotal.WithLabelValues(source, outcome).Inc()
	m.SourceLookupSeconds.WithLabelValues(source).Observe(elapsed.Seconds())
}

// ObserveDocument records one document's terminal decision.
func (m *Metrics) ObserveDocument(decision string, overall float64, fused bool) {
	m.DocumentsTotal.WithLabelValues(decision).Inc()
	if fused {
		m.OverallConfidence.Observe(overall)
	}
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
