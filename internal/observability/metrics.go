package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quake_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	PostsLoaded         prometheus.Counter
	UnresolvedTimestamp prometheus.Counter
	UndeterminedDropped prometheus.Counter
	ExtractionFailures  *prometheus.CounterVec // labels: reason={model_error,malformed_response}
	PipelineRunning     prometheus.Gauge

	// Run metrics.
	Runs        *prometheus.CounterVec // labels: outcome={success,error}
	RunDuration prometheus.Histogram
	StoreSize   prometheus.Gauge

	// Model metrics.
	ModelRequests     *prometheus.CounterVec // labels: outcome={success,error,empty}
	ModelCache        *prometheus.CounterVec // labels: result={hit,miss}
	ModelCallDuration prometheus.Histogram

	EventsPublished prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.PostsLoaded,
		m.UnresolvedTimestamp,
		m.UndeterminedDropped,
		m.ExtractionFailures,
		m.PipelineRunning,
		m.Runs,
		m.RunDuration,
		m.StoreSize,
		m.ModelRequests,
		m.ModelCache,
		m.ModelCallDuration,
		m.EventsPublished,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PostsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_loaded_total",
			Help:      "Total posts read from the post file.",
		}),
		UnresolvedTimestamp: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_unresolved_timestamp_total",
			Help:      "Posts whose creation date could not be resolved.",
		}),
		UndeterminedDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "undetermined_dropped_total",
			Help:      "Events dropped because no location was determined.",
		}),
		ExtractionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_failures_total",
			Help:      "Posts that fell back to the failure tuple, by reason.",
		}, []string{"reason"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed pipeline runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-extract-merge run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		StoreSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_events",
			Help:      "Number of events in the store after the last successful run.",
		}),
		ModelRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_requests_total",
			Help:      "Text model API requests by outcome.",
		}, []string{"outcome"}),
		ModelCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_cache_total",
			Help:      "Model response cache lookups by result.",
		}, []string{"result"}),
		ModelCallDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_call_duration_seconds",
			Help:      "Text model API request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Newly stored events written to the event topic.",
		}),
	}
}
