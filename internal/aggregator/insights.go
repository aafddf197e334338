package aggregator

import (
	"fmt"
	"sort"

	"github.com/zombar/reviewinsights/internal/models"
)

const (
	topClusterInsights    = 3
	competitorMinMentions = 5
	segmentSkewFactor     = 2
)

// buildInsights assembles the digest from the trend, the ranked clusters, the
// competitor counts and the segment distribution, most important first
func (a *Aggregator) buildInsights(trend models.TrendAnalysis, features []models.FeatureCluster, bugs []models.BugCluster, summary models.Summary, limit int) []models.Insight {
	insights := make([]models.Insight, 0, limit)

	if trend.Direction != models.DirectionStable {
		in := models.Insight{
			ID:     a.ids.Next(),
			Type:   models.InsightSentimentTrend,
			Metric: trend.PercentChange,
			Description: fmt.Sprintf("Average rating moved from %.2f to %.2f (%+.1f%%) across the analysed periods",
				trend.EarlierAverage, trend.LaterAverage, trend.PercentChange),
		}
		if trend.Direction == models.DirectionDeclining {
			in.Priority = models.LevelHigh
			in.Title = "Ratings are declining"
		} else {
			in.Priority = models.LevelMedium
			in.Title = "Ratings are improving"
		}
		insights = append(insights, in)
	}

	added := 0
	for _, f := range features {
		if added == topClusterInsights {
			break
		}
		if f.Priority != models.LevelHigh {
			continue
		}
		insights = append(insights, models.Insight{
			ID:          a.ids.Next(),
			Type:        models.InsightFeature,
			Priority:    models.LevelHigh,
			Title:       fmt.Sprintf("Frequently requested: %s", f.Name),
			Description: fmt.Sprintf("%d reviews ask for this (average rating %.1f)", f.Count, f.AverageRating),
			ClusterID:   f.ID,
			Metric:      float64(f.Count),
		})
		added++
	}

	added = 0
	for _, b := range bugs {
		if added == topClusterInsights {
			break
		}
		if b.Impact != models.LevelHigh {
			continue
		}
		insights = append(insights, models.Insight{
			ID:          a.ids.Next(),
			Type:        models.InsightBug,
			Priority:    models.LevelHigh,
			Title:       fmt.Sprintf("Critical bug: %s", b.Name),
			Description: fmt.Sprintf("%d reviews report this (severity %s, average rating %.1f)", b.Count, b.Severity, b.AverageRating),
			ClusterID:   b.ID,
			Metric:      float64(b.Count),
		})
		added++
	}

	for _, c := range summary.CompetitorMentions {
		if c.Count < competitorMinMentions {
			continue
		}
		insights = append(insights, models.Insight{
			ID:          a.ids.Next(),
			Type:        models.InsightCompetitor,
			Priority:    models.LevelMedium,
			Title:       fmt.Sprintf("Users compare the app with %s", c.Name),
			Description: fmt.Sprintf("%d reviews mention %s (average rating %.1f)", c.Count, c.Name, c.AverageRating),
			Metric:      float64(c.Count),
		})
	}

	if in, ok := a.segmentInsight(summary.SegmentDistribution); ok {
		insights = append(insights, in)
	}

	sort.SliceStable(insights, func(i, j int) bool {
		return models.LevelRank(insights[i].Priority) > models.LevelRank(insights[j].Priority)
	})
	if len(insights) > limit {
		insights = insights[:limit]
	}
	return insights
}

// segmentInsight reports when the largest known segment outnumbers the
// smallest non-empty one more than twofold. A lone segment always counts.
func (a *Aggregator) segmentInsight(d models.SegmentDistribution) (models.Insight, bool) {
	type segment struct {
		name  string
		count int
	}
	segments := []segment{
		{models.SegmentNew, d.New},
		{models.SegmentPower, d.Power},
		{models.SegmentReturning, d.Returning},
	}
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].count > segments[j].count
	})

	top := segments[0]
	smallest := segment{}
	for _, s := range segments[1:] {
		if s.count > 0 {
			smallest = s
		}
	}
	if top.count == 0 || top.count <= segmentSkewFactor*smallest.count {
		return models.Insight{}, false
	}
	if smallest.name == "" {
		smallest = segments[1]
	}

	return models.Insight{
		ID:          a.ids.Next(),
		Type:        models.InsightUserSegment,
		Priority:    models.LevelLow,
		Title:       fmt.Sprintf("Feedback is dominated by %s users", top.name),
		Description: fmt.Sprintf("%d reviews come from %s users versus %d from %s users", top.count, top.name, smallest.count, smallest.name),
		Metric:      float64(top.count),
	}, true
}
