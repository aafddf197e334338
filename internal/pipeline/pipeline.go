// Package pipeline runs the review analytics stages in order: per-review
// analysis, phrase clustering and classification, then aggregation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zombar/reviewinsights/internal/aggregator"
	"github.com/zombar/reviewinsights/internal/analyzer"
	"github.com/zombar/reviewinsights/internal/classifier"
	"github.com/zombar/reviewinsights/internal/cluster"
	"github.com/zombar/reviewinsights/internal/ids"
	"github.com/zombar/reviewinsights/internal/jobs"
	"github.com/zombar/reviewinsights/internal/metrics"
	"github.com/zombar/reviewinsights/internal/models"
	"github.com/zombar/reviewinsights/pkg/tracing"
)

// Cluster kinds used for metrics and span attributes
const (
	KindFeature = "feature"
	KindBug     = "bug"
)

// Request is the input of one run
type Request struct {
	Reviews       []models.RawReview `json:"reviews"`
	KnownVersions []string           `json:"known_versions,omitempty"`
	Options       models.Options     `json:"options"`
	// Now anchors date defaults and trend buckets; zero means the current time.
	Now time.Time `json:"-"`
}

// ProgressFunc is told about each stage as the run enters it
type ProgressFunc func(ctx context.Context, stage jobs.Status)

// Pipeline wires the stages together. It holds no per-run state and can be
// shared by concurrent runs.
type Pipeline struct {
	analyzer   *analyzer.Analyzer
	classifier *classifier.Classifier
	aggregator *aggregator.Aggregator
	logger     *slog.Logger
}

// New creates a new Pipeline around an analyzer
func New(a *analyzer.Analyzer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if a == nil {
		a = analyzer.New(nil, logger)
	}
	gen := ids.New()
	return &Pipeline{
		analyzer:   a,
		classifier: classifier.New(gen),
		aggregator: aggregator.New(gen, logger),
		logger:     logger,
	}
}

// Run executes every stage. Invalid options fail before any review is touched;
// cancellation is honoured between clustering merges.
func (p *Pipeline) Run(ctx context.Context, req Request, progress ProgressFunc) (*models.AggregatedResult, error) {
	start := time.Now()
	ctx, span := tracing.Tracer().Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.Int("reviews.count", len(req.Reviews)),
			attribute.Int("known_versions.count", len(req.KnownVersions)),
		),
	)
	defer span.End()

	result, err := p.run(ctx, req, progress)
	duration := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.ObserveAnalysis(ctx, duration, metrics.OutcomeError, len(req.Reviews))
		p.logger.Warn("analysis failed",
			"error", err,
			"reviews", len(req.Reviews),
			"duration_ms", duration.Milliseconds())
		return nil, err
	}

	metrics.ObserveAnalysis(ctx, duration, metrics.OutcomeSuccess, len(req.Reviews))
	metrics.ObserveClusters(KindFeature, len(result.Trends.Features))
	metrics.ObserveClusters(KindBug, len(result.Trends.Bugs))
	metrics.ObserveInsights(len(result.Insights))
	span.SetAttributes(
		attribute.Int("insights.count", len(result.Insights)),
		attribute.String("trend.direction", result.Trends.Overall.Direction),
	)

	p.logger.Info("analysis complete",
		"reviews", len(req.Reviews),
		"features", len(result.Trends.Features),
		"bugs", len(result.Trends.Bugs),
		"insights", len(result.Insights),
		"duration_ms", duration.Milliseconds(),
		"trace_id", tracing.TraceIDFromContext(ctx))

	return result, nil
}

func (p *Pipeline) run(ctx context.Context, req Request, progress ProgressFunc) (*models.AggregatedResult, error) {
	opts, err := req.Options.Normalize()
	if err != nil {
		return nil, err
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	report := func(stage jobs.Status) {
		if progress != nil {
			progress(ctx, stage)
		}
	}

	report(jobs.StatusAnalyzing)
	_, analyzeSpan := tracing.Tracer().Start(ctx, "pipeline.analyze")
	analysis := p.analyzer.Analyze(req.Reviews, opts, now)
	analyzeSpan.SetAttributes(attribute.Int("keywords.count", len(analysis.Keywords)))
	analyzeSpan.End()

	report(jobs.StatusClassifying)
	clusterOpts := cluster.Options{
		Threshold:        opts.ClusterThreshold,
		MinClusterSize:   opts.MinClusterSize,
		MaxClusters:      opts.MaxClusters,
		MinKeywordLength: opts.MinKeywordLength,
	}

	featureGroups, err := p.clusterPhrases(ctx, KindFeature, featurePhrases(analysis.Comments), analysis.Corpus, clusterOpts)
	if err != nil {
		return nil, err
	}
	bugGroups, err := p.clusterPhrases(ctx, KindBug, bugPhrases(analysis.Comments), analysis.Corpus, clusterOpts)
	if err != nil {
		return nil, err
	}
	features := p.classifier.Features(featureGroups, analysis.Comments, opts)
	bugs := p.classifier.Bugs(bugGroups, analysis.Comments, req.KnownVersions, opts)

	report(jobs.StatusAggregating)
	_, aggSpan := tracing.Tracer().Start(ctx, "pipeline.aggregate")
	result, err := p.aggregator.Aggregate(aggregator.Input{
		Comments:  analysis.Comments,
		Sentiment: analysis.Sentiment,
		Keywords:  analysis.Keywords,
		Features:  features,
		Bugs:      bugs,
		Options:   opts,
		Now:       now,
	})
	aggSpan.End()
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}

	return &result, nil
}

func (p *Pipeline) clusterPhrases(ctx context.Context, kind string, phrases []cluster.Phrase, corpus *analyzer.Corpus, opts cluster.Options) ([]cluster.Group, error) {
	ctx, span := tracing.Tracer().Start(ctx, "pipeline.cluster",
		trace.WithAttributes(
			attribute.String("cluster.kind", kind),
			attribute.Int("phrases.count", len(phrases)),
		),
	)
	defer span.End()

	groups, err := cluster.Cluster(ctx, phrases, corpus, opts)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("cluster %s phrases: %w", kind, err)
	}
	span.SetAttributes(attribute.Int("clusters.count", len(groups)))
	return groups, nil
}

func featurePhrases(comments []models.AnalyzedComment) []cluster.Phrase {
	var out []cluster.Phrase
	for i, c := range comments {
		for _, text := range c.FeatureRequests {
			out = append(out, cluster.Phrase{Text: text, CommentIndex: i})
		}
	}
	return out
}

func bugPhrases(comments []models.AnalyzedComment) []cluster.Phrase {
	var out []cluster.Phrase
	for i, c := range comments {
		for _, text := range c.BugReports {
			out = append(out, cluster.Phrase{Text: text, CommentIndex: i})
		}
	}
	return out
}
