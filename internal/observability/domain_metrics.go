package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	pipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tifai_pipeline_runs_total",
			Help: "Total number of pipeline runs by outcome.",
		},
		[]string{"database", "outcome"},
	)
	pipelineStageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tifai_pipeline_stage_duration_seconds",
			Help:    "Duration of individual pipeline stages.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)
	providerAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tifai_provider_attempts_total",
			Help: "Total number of model provider attempts by result.",
		},
		[]string{"provider", "operation", "result"},
	)
	validationRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tifai_validation_rejections_total",
			Help: "Total number of generated statements rejected by the validator.",
		},
		[]string{"reason"},
	)
	catalogBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tifai_catalog_builds_total",
			Help: "Total number of schema catalog builds by result.",
		},
		[]string{"database", "result"},
	)
	catalogCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tifai_catalog_cache_hits_total",
			Help: "Total number of schema catalog cache hits.",
		},
	)
	queryRowsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tifai_query_rows_returned",
			Help:    "Number of rows returned per executed query.",
			Buckets: []float64{0, 1, 10, 50, 100, 500, 1000, 5000},
		},
	)
)

func init() {
	prometheus.MustRegister(
		pipelineRunsTotal,
		pipelineStageDurationSeconds,
		providerAttemptsTotal,
		validationRejectionsTotal,
		catalogBuildsTotal,
		catalogCacheHitsTotal,
		queryRowsReturned,
	)
}

func ObservePipelineRun(database, outcome string) {
	pipelineRunsTotal.WithLabelValues(database, outcome).Inc()
}

func ObserveStageDuration(stage string, elapsed time.Duration) {
	pipelineStageDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func ObserveProviderAttempt(provider, operation, result string) {
	providerAttemptsTotal.WithLabelValues(provider, operation, result).Inc()
}

func ObserveValidationRejection(reason string) {
	validationRejectionsTotal.WithLabelValues(reason).Inc()
}

func ObserveCatalogBuild(database, result string) {
	catalogBuildsTotal.WithLabelValues(database, result).Inc()
}

func ObserveCatalogCacheHit() {
	catalogCacheHitsTotal.Inc()
}

func ObserveQueryRows(rows int) {
	queryRowsReturned.Observe(float64(rows))
}
