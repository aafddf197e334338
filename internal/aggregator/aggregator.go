// Package aggregator buckets analysed reviews into trend windows, derives
// trends and insights, and renders the export blobs.
package aggregator

import (
	"log/slog"
	"time"

	"github.com/zombar/reviewinsights/internal/classifier"
	"github.com/zombar/reviewinsights/internal/ids"
	"github.com/zombar/reviewinsights/internal/models"
)

// Aggregator builds the final result of a run
type Aggregator struct {
	ids    *ids.Generator
	logger *slog.Logger
}

// New creates a new Aggregator
func New(gen *ids.Generator, logger *slog.Logger) *Aggregator {
	if gen == nil {
		gen = ids.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{ids: gen, logger: logger}
}

// Input is everything the earlier stages produced for one run
type Input struct {
	Comments  []models.AnalyzedComment
	Sentiment models.SentimentDistribution
	Keywords  []models.KeywordStat
	Features  []models.FeatureCluster
	Bugs      []models.BugCluster
	Options   models.Options
	Now       time.Time
}

// Aggregate assembles the result. Options must already be normalized.
// Trend series cover every cluster; the ranked lists are capped.
func (a *Aggregator) Aggregate(in Input) (models.AggregatedResult, error) {
	opts := in.Options
	comments := in.Comments
	if comments == nil {
		comments = []models.AnalyzedComment{}
	}

	window := NewWindow(in.Now, opts.TimePeriod, opts.MaxDataPoints)
	overall := overallTrend(comments, window)

	summary := Summarize(comments, in.Sentiment, in.Keywords)

	rankedFeatures := classifier.RankFeatures(in.Features, len(in.Features))
	rankedBugs := classifier.RankBugs(in.Bugs, len(in.Bugs))

	result := models.AggregatedResult{
		Summary: summary,
		Trends: models.TrendBlock{
			Overall:  overall,
			Features: featureTrends(in.Features, window),
			Bugs:     bugTrends(in.Bugs, window),
		},
		TopFeatures:  classifier.RankFeatures(rankedFeatures, opts.MaxFeatures),
		CriticalBugs: classifier.RankBugs(rankedBugs, opts.MaxBugs),
		Insights:     a.buildInsights(overall, rankedFeatures, rankedBugs, summary, opts.MaxInsights),
		Comments:     comments,
		Options:      opts,
		GeneratedAt:  in.Now.UTC(),
	}

	var err error
	if result.Exports.CSV, err = ExportCSV(comments, opts.StandardCSV); err != nil {
		return models.AggregatedResult{}, err
	}
	if result.Exports.JSON, err = ExportJSON(summary, comments); err != nil {
		return models.AggregatedResult{}, err
	}

	a.logger.Debug("aggregation complete",
		"buckets", window.Len(),
		"trend", overall.Direction,
		"insights", len(result.Insights))

	return result, nil
}
