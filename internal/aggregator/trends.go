package aggregator

import (
	"github.com/zombar/reviewinsights/internal/models"
)

// changeThreshold is the percent change beyond which a trend is not stable
const changeThreshold = 5.0

// weightedMean weights later positions more: weight = position + 1
func weightedMean(values []float64) float64 {
	var sum, weights float64
	for i, v := range values {
		w := float64(i + 1)
		sum += v * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return sum / weights
}

// halfSplit compares the weighted means of the earlier and later halves of values
func halfSplit(values []float64) (earlier, later, percent float64) {
	mid := len(values) / 2
	earlier = weightedMean(values[:mid])
	later = weightedMean(values[mid:])
	switch {
	case earlier != 0:
		percent = (later - earlier) / earlier * 100
	case later > 0:
		percent = 100
	}
	return earlier, later, percent
}

func direction(percent float64, up, down string) string {
	switch {
	case percent > changeThreshold:
		return up
	case percent < -changeThreshold:
		return down
	default:
		return models.DirectionStable
	}
}

// ratingSplit splits the bucket sequence at its midpoint and compares the
// weighted mean ratings of the two halves. Within a half only rated buckets
// contribute, each weighted by its position in the half plus one. ok is
// false when either half has no rated bucket.
func ratingSplit(ratings []float64, rated []bool) (earlier, later, percent float64, ok bool) {
	mid := len(ratings) / 2
	var okEarlier, okLater bool
	earlier, okEarlier = ratedMean(ratings[:mid], rated[:mid])
	later, okLater = ratedMean(ratings[mid:], rated[mid:])
	if !okEarlier || !okLater {
		return 0, 0, 0, false
	}
	if earlier != 0 {
		percent = (later - earlier) / earlier * 100
	} else if later > 0 {
		percent = 100
	}
	return earlier, later, percent, true
}

func ratedMean(values []float64, rated []bool) (float64, bool) {
	var sum, weights float64
	for i, v := range values {
		if !rated[i] {
			continue
		}
		w := float64(i + 1)
		sum += v * w
		weights += w
	}
	if weights == 0 {
		return 0, false
	}
	return sum / weights, true
}

// overallTrend buckets every comment and derives the rating trend.
// Comments outside the window are left out of the data points.
func overallTrend(comments []models.AnalyzedComment, w Window) models.TrendAnalysis {
	points := make([]models.TrendDataPoint, w.Len())
	ratingSums := make([]float64, w.Len())
	for i, s := range w.Starts {
		points[i] = models.TrendDataPoint{Period: w.Keys[i], PeriodStart: s}
	}

	for _, c := range comments {
		i, ok := w.Bucket(c.Date)
		if !ok {
			continue
		}
		p := &points[i]
		p.Total++
		ratingSums[i] += float64(c.Score)
		switch c.Sentiment {
		case models.SentimentPositive:
			p.Positive++
		case models.SentimentNegative:
			p.Negative++
		default:
			p.Neutral++
		}
	}

	ratings := make([]float64, len(points))
	rated := make([]bool, len(points))
	for i := range points {
		if points[i].Total == 0 {
			continue
		}
		points[i].AverageRating = ratingSums[i] / float64(points[i].Total)
		ratings[i] = points[i].AverageRating
		rated[i] = true
	}

	trend := models.TrendAnalysis{Direction: models.DirectionStable, DataPoints: points}
	if len(points) < 2 {
		return trend
	}
	earlier, later, percent, ok := ratingSplit(ratings, rated)
	if !ok {
		return trend
	}
	trend.EarlierAverage, trend.LaterAverage, trend.PercentChange = earlier, later, percent
	trend.Direction = direction(percent, models.DirectionImproving, models.DirectionDeclining)
	return trend
}

// clusterSeries counts the comments of one cluster per bucket, zeros included
func clusterSeries(comments []models.AnalyzedComment, w Window) []models.PeriodCount {
	series := make([]models.PeriodCount, w.Len())
	for i := range w.Starts {
		series[i] = models.PeriodCount{Period: w.Keys[i]}
	}
	for _, c := range comments {
		if i, ok := w.Bucket(c.Date); ok {
			series[i].Count++
		}
	}
	return series
}

func countTrend(clusterID, name string, series []models.PeriodCount) models.ClusterTrend {
	trend := models.ClusterTrend{
		ClusterID: clusterID,
		Name:      name,
		Series:    series,
		Direction: models.DirectionStable,
	}
	if len(series) < 2 {
		return trend
	}
	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = float64(p.Count)
	}
	_, _, trend.PercentChange = halfSplit(values)
	trend.Direction = direction(trend.PercentChange, models.DirectionIncreasing, models.DirectionDecreasing)
	return trend
}

// bugStatus labels a bug series: new when only the latest bucket has reports
func bugStatus(trend models.ClusterTrend) string {
	n := len(trend.Series)
	if n > 0 && trend.Series[n-1].Count > 0 {
		onlyLatest := true
		for _, p := range trend.Series[:n-1] {
			if p.Count > 0 {
				onlyLatest = false
				break
			}
		}
		if onlyLatest {
			return models.BugStatusNew
		}
	}
	switch trend.Direction {
	case models.DirectionIncreasing:
		return models.BugStatusIncreasing
	case models.DirectionDecreasing:
		return models.BugStatusDecreasing
	default:
		return models.BugStatusRecurring
	}
}

func featureTrends(features []models.FeatureCluster, w Window) []models.ClusterTrend {
	out := make([]models.ClusterTrend, 0, len(features))
	for _, f := range features {
		out = append(out, countTrend(f.ID, f.Name, clusterSeries(f.Comments, w)))
	}
	return out
}

func bugTrends(bugs []models.BugCluster, w Window) []models.ClusterTrend {
	out := make([]models.ClusterTrend, 0, len(bugs))
	for _, b := range bugs {
		t := countTrend(b.ID, b.Name, clusterSeries(b.Comments, w))
		t.Status = bugStatus(t)
		out = append(out, t)
	}
	return out
}
