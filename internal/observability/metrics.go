package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	PipelineRunning prometheus.Gauge
	StageDuration   *prometheus.HistogramVec // label: stage={fetch,aggregate,qa,archive,publish}

	// Store access metrics.
	ChunksFetched    prometheus.Counter
	ChunksMissing    prometheus.Counter
	ChunkFetchErrors prometheus.Counter
	BytesFetched     prometheus.Counter
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter

	// Aggregation and QA metrics.
	TimestepsAggregated prometheus.Counter
	MissingTimesteps    prometheus.Gauge
	QAViolations        *prometheus.GaugeVec // label: check={range,missing,time}
	QAPassed            prometheus.Gauge

	// Artifact and publishing metrics.
	ArtifactBytes      *prometheus.CounterVec // label: artifact={subset,series,report}
	SummariesPublished prometheus.Counter
	PublishErrors      prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aorc_etl",
			Name:      "pipeline_running",
			Help:      "1 while the pipeline run is active, 0 once finished.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aorc_etl",
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration of each pipeline stage.",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 60, 300, 1200},
		}, []string{"stage"}),
		ChunksFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aorc_etl",
			Name:      "chunks_fetched_total",
			Help:      "Zarr chunks fetched and decoded from the store.",
		}),
		ChunksMissing: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aorc_etl",
			Name:      "chunks_missing_total",
			Help:      "Chunk keys absent from the store (treated as all-fill).",
		}),
		ChunkFetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aorc_etl",
			Name:      "chunk_fetch_errors_total",
			Help:      "Chunk fetches that failed with a real error.",
		}),
		BytesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aorc_etl",
			Name:      "bytes_fetched_total",
			Help:      "Compressed bytes fetched from the store.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aorc_etl",
			Name:      "store_cache_hits_total",
			Help:      "Store reads served from the in-memory cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aorc_etl",
			Name:      "store_cache_misses_total",
			Help:      "Store reads that went through to the backing store.",
		}),
		TimestepsAggregated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aorc_etl",
			Name:      "timesteps_aggregated_total",
			Help:      "Timesteps reduced to an area mean.",
		}),
		MissingTimesteps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aorc_etl",
			Name:      "missing_timesteps",
			Help:      "Timesteps in the last run whose area mean is missing.",
		}),
		QAViolations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "aorc_etl",
			Name:      "qa_violations",
			Help:      "Violations counted by the last run's QA checks.",
		}, []string{"check"}),
		QAPassed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aorc_etl",
			Name:      "qa_passed",
			Help:      "1 when every QA check passed in the last run, 0 otherwise.",
		}),
		ArtifactBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aorc_etl",
			Name:      "artifact_bytes_total",
			Help:      "Bytes written per output artifact.",
		}, []string{"artifact"}),
		SummariesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aorc_etl",
			Name:      "summaries_published_total",
			Help:      "Run summaries published to the summary topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aorc_etl",
			Name:      "publish_errors_total",
			Help:      "Run summary publish failures.",
		}),
	}

	prometheus.MustRegister(
		m.PipelineRunning,
		m.StageDuration,
		m.ChunksFetched,
		m.ChunksMissing,
		m.ChunkFetchErrors,
		m.BytesFetched,
		m.CacheHits,
		m.CacheMisses,
		m.TimestepsAggregated,
		m.MissingTimesteps,
		m.QAViolations,
		m.QAPassed,
		m.ArtifactBytes,
		m.SummariesPublished,
		m.PublishErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		PipelineRunning:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "aorc_etl", Name: "pipeline_running"}),
		StageDuration:       prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "aorc_etl", Name: "stage_duration_seconds"}, []string{"stage"}),
		ChunksFetched:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "aorc_etl", Name: "chunks_fetched_total"}),
		ChunksMissing:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "aorc_etl", Name: "chunks_missing_total"}),
		ChunkFetchErrors:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "aorc_etl", Name: "chunk_fetch_errors_total"}),
		BytesFetched:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "aorc_etl", Name: "bytes_fetched_total"}),
		CacheHits:           prometheus.NewCounter(prometheus.CounterOpts{Namespace: "aorc_etl", Name: "store_cache_hits_total"}),
		CacheMisses:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "aorc_etl", Name: "store_cache_misses_total"}),
		TimestepsAggregated: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "aorc_etl", Name: "timesteps_aggregated_total"}),
		MissingTimesteps:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "aorc_etl", Name: "missing_timesteps"}),
		QAViolations:        prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "aorc_etl", Name: "qa_violations"}, []string{"check"}),
		QAPassed:            prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "aorc_etl", Name: "qa_passed"}),
		ArtifactBytes:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "aorc_etl", Name: "artifact_bytes_total"}, []string{"artifact"}),
		SummariesPublished:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "aorc_etl", Name: "summaries_published_total"}),
		PublishErrors:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "aorc_etl", Name: "publish_errors_total"}),
	}
}
