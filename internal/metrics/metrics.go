// Package metrics holds the Prometheus collectors of the review analysis service.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zombar/reviewinsights/pkg/tracing"
)

const namespace = "reviewinsights"

const (
	// OutcomeSuccess labels analyses that produced a result.
	OutcomeSuccess = "success"
	// OutcomeError labels analyses that failed (invalid options, cancellation, storage).
	OutcomeError = "error"
)

// Cache lookup results
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

var (
	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Total number of pipeline runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	analysisDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Pipeline run latency in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	reviewsAnalyzedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_analyzed_total",
			Help:      "Total number of reviews processed by the pipeline.",
		},
	)

	clustersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clusters_total",
			Help:      "Total number of clusters produced, partitioned by kind (feature, bug).",
		},
		[]string{"kind"},
	)

	insightsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insights_total",
			Help:      "Total number of insights generated.",
		},
	)

	cacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Result cache lookups, partitioned by result.",
		},
		[]string{"result"},
	)

	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Job state transitions, partitioned by the state entered.",
		},
		[]string{"status"},
	)
)

// Register attaches the collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		analysesTotal,
		analysisDurationSeconds,
		reviewsAnalyzedTotal,
		clustersTotal,
		insightsTotal,
		cacheRequestsTotal,
		jobsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveAnalysis records a pipeline run. The duration sample carries the
// trace id as an exemplar when ctx holds a sampled span.
func ObserveAnalysis(ctx context.Context, duration time.Duration, outcome string, reviews int) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	analysesTotal.WithLabelValues(label).Inc()
	if label == OutcomeSuccess && reviews > 0 {
		reviewsAnalyzedTotal.Add(float64(reviews))
	}

	if duration < 0 {
		duration = 0
	}
	if traceID := tracing.TraceIDFromContext(ctx); traceID != "" {
		if eo, ok := analysisDurationSeconds.(prometheus.ExemplarObserver); ok {
			eo.ObserveWithExemplar(duration.Seconds(), prometheus.Labels{"trace_id": traceID})
			return
		}
	}
	analysisDurationSeconds.Observe(duration.Seconds())
}

// ObserveClusters counts the clusters of one kind produced by a run
func ObserveClusters(kind string, n int) {
	if n > 0 {
		clustersTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// ObserveInsights counts generated insights
func ObserveInsights(n int) {
	if n > 0 {
		insightsTotal.Add(float64(n))
	}
}

// ObserveCache records a cache lookup result
func ObserveCache(result string) {
	cacheRequestsTotal.WithLabelValues(result).Inc()
}

// ObserveJob records a job entering status
func ObserveJob(status string) {
	jobsTotal.WithLabelValues(status).Inc()
}
