// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the application's collectors and the registry they are registered on.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	answersTotal      *prometheus.CounterVec
	answerDuration    *prometheus.HistogramVec
	ingestFilesTotal  *prometheus.CounterVec
	ingestChunksTotal prometheus.Counter
	federatedFanout   prometheus.Histogram
}

// New creates a registry with Go and process collectors plus the application collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		answersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tanya_answers_total",
				Help: "Answer requests by mode and outcome (answered, fallback, invalid, retrieval_failed, generation_failed)",
			},
			[]string{"mode", "outcome"},
		),
		answerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tanya_answer_duration_seconds",
				Help:    "End-to-end answer latency by mode",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
			},
			[]string{"mode"},
		),
		ingestFilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tanya_ingest_files_total",
				Help: "Ingested files by outcome (stored, skipped)",
			},
			[]string{"outcome"},
		),
		ingestChunksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tanya_ingest_chunks_total",
				Help: "Chunks upserted into the vector store",
			},
		),
		federatedFanout: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tanya_federated_namespaces",
				Help:    "Namespaces queried per global question",
				Buckets: prometheus.LinearBuckets(0, 5, 10),
			},
		),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.answersTotal,
		m.answerDuration,
		m.ingestFilesTotal,
		m.ingestChunksTotal,
		m.federatedFanout,
	)
	return m
}

// ObserveAnswer records one finished answer request.
func (m *Metrics) ObserveAnswer(mode, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.answersTotal.WithLabelValues(mode, outcome).Inc()
	m.answerDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// ObserveIngestFile records one file outcome and, when stored, its chunk count.
func (m *Metrics) ObserveIngestFile(stored bool, chunks int) {
	if m == nil {
		return
	}
	if stored {
		m.ingestFilesTotal.WithLabelValues("stored").Inc()
		m.ingestChunksTotal.Add(float64(chunks))
		return
	}
	m.ingestFilesTotal.WithLabelValues("skipped").Inc()
}

// ObserveFanout records how many namespaces a federated query touched.
func (m *Metrics) ObserveFanout(namespaces int) {
	if m == nil {
		return
	}
	m.federatedFanout.Observe(float64(namespaces))
}
