package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tick_sightings"

// Ingest run outcomes used as the "outcome" label of IngestRuns.
const (
	OutcomeSuccess     = "success"
	OutcomeFetchFailed = "fetch_failed"
	OutcomeStoreFailed = "store_failed"
)

// Model load outcomes used by ModelLoads. OutcomeSuccess is shared.
const (
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

// Metrics holds the Prometheus collectors for ingestion and the forecast model.
type Metrics struct {
	RecordsFetched     prometheus.Counter
	SightingsInserted  prometheus.Counter
	SightingsDuplicate prometheus.Counter
	RecordsSkipped     prometheus.Counter
	IngestRuns         *prometheus.CounterVec // labels: outcome={success,fetch_failed,store_failed}
	IngestDuration     prometheus.Histogram
	IngestRunning      prometheus.Gauge
	PublishErrors      prometheus.Counter

	ModelLoads *prometheus.CounterVec // labels: outcome={success,unavailable,error}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as
// many as they like without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_fetched_total",
			Help:      "Total raw records decoded from the sightings feed.",
		}),
		SightingsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sightings_inserted_total",
			Help:      "Total sightings written to the store.",
		}),
		SightingsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sightings_duplicate_total",
			Help:      "Total sightings ignored because their external id was already stored.",
		}),
		RecordsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Total raw records skipped for lacking an identifier.",
		}),
		IngestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_runs_total",
			Help:      "Ingestion runs by outcome.",
		}, []string{"outcome"}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Duration of a complete fetch-normalize-store run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		IngestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_running",
			Help:      "1 while an ingestion run is in progress, 0 otherwise.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Total failed publications of ingested sightings.",
		}),
		ModelLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_loads_total",
			Help:      "Forecast model artifact reads by outcome. Cache hits are not counted.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RecordsFetched,
		m.SightingsInserted,
		m.SightingsDuplicate,
		m.RecordsSkipped,
		m.IngestRuns,
		m.IngestDuration,
		m.IngestRunning,
		m.PublishErrors,
		m.ModelLoads,
	}
}
