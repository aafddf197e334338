package aggregator

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/reviewinsights/internal/models"
)

var testNow = time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)

func reviewAt(id string, at time.Time, score int, sentiment string) models.AnalyzedComment {
	return models.AnalyzedComment{
		ID:          id,
		UserName:    "user-" + id,
		Content:     "content " + id,
		Score:       score,
		Date:        at,
		Sentiment:   sentiment,
		UserSegment: models.SegmentUnknown,
		Intentions:  []string{},
		Keywords:    []string{},
	}
}

// fourteenDayCorpus spreads ten reviews evenly over the fourteen days ending
// at now: the five newest are negative 2-star, the five oldest positive 5-star.
func fourteenDayCorpus(now time.Time) []models.AnalyzedComment {
	step := 14 * 24 * time.Hour / 9
	comments := make([]models.AnalyzedComment, 0, 10)
	for i := 0; i < 10; i++ {
		at := now.Add(-time.Duration(i) * step)
		if i < 5 {
			comments = append(comments, reviewAt(fmt.Sprintf("n%d", i), at, 2, models.SentimentNegative))
		} else {
			comments = append(comments, reviewAt(fmt.Sprintf("p%d", i), at, 5, models.SentimentPositive))
		}
	}
	return comments
}

func TestAggregate_TwoWeekWindow(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	comments := fourteenDayCorpus(now)
	comments = append(comments, reviewAt("old", now.AddDate(0, 0, -20), 1, models.SentimentNegative))
	opts := models.DefaultOptions()
	opts.MaxDataPoints = 2

	result, err := New(nil, nil).Aggregate(Input{
		Comments:  comments,
		Sentiment: models.SentimentDistribution{Positive: 5, Negative: 6},
		Options:   opts,
		Now:       now,
	})
	require.NoError(t, err)

	points := result.Trends.Overall.DataPoints
	require.Len(t, points, 2)
	assert.Equal(t, "2026-10-05", points[0].Period)
	assert.Equal(t, "2026-10-12", points[1].Period)
	assert.True(t, points[1].PeriodStart.Equal(now.AddDate(0, 0, -7)))
	assert.Equal(t, 10, points[0].Total+points[1].Total, "every review of the last fourteen days is bucketed")
	assert.Equal(t, 5, points[0].Total)
	assert.Equal(t, 5, points[0].Positive)
	assert.Equal(t, 5, points[1].Total)
	assert.Equal(t, 5, points[1].Negative)
	assert.InDelta(t, 5.0, points[0].AverageRating, 1e-9)
	assert.InDelta(t, 2.0, points[1].AverageRating, 1e-9)

	assert.Equal(t, 11, result.Summary.TotalReviews, "the old review still counts in the summary")
	assert.Equal(t, 1, result.Summary.RatingDistribution[1])

	assert.Equal(t, models.DirectionDeclining, result.Trends.Overall.Direction)
	assert.InDelta(t, -60.0, result.Trends.Overall.PercentChange, 1e-9)

	require.NotEmpty(t, result.Insights)
	assert.Equal(t, models.InsightSentimentTrend, result.Insights[0].Type)
	assert.Equal(t, models.LevelHigh, result.Insights[0].Priority)

	rows := strings.Split(result.Exports.CSV, "\n")
	assert.Len(t, rows, len(comments)+1)
	assert.True(t, result.GeneratedAt.Equal(now))
}

func TestAggregate_EmptyBucketsStillEmitted(t *testing.T) {
	opts := models.DefaultOptions()

	result, err := New(nil, nil).Aggregate(Input{Options: opts, Now: testNow})
	require.NoError(t, err)

	assert.Len(t, result.Trends.Overall.DataPoints, models.DefaultMaxDataPoints)
	assert.Equal(t, models.DirectionStable, result.Trends.Overall.Direction)
	assert.Equal(t, 0, result.Summary.TotalReviews)
	assert.Zero(t, result.Summary.AverageRating)
	assert.Empty(t, result.Insights)
	assert.Equal(t, csvHeader, result.Exports.CSV)
	assert.NotNil(t, result.Comments)
}

func TestAggregate_ClusterTrendsCoverAllClusters(t *testing.T) {
	opts := models.DefaultOptions()
	opts.MaxDataPoints = 3
	opts.MaxFeatures = 1
	opts.MaxBugs = 1

	latest := reviewAt("n1", testNow.Add(-time.Hour), 1, models.SentimentNegative)
	older := reviewAt("o1", testNow.AddDate(0, 0, -14), 3, models.SentimentNeutral)

	features := []models.FeatureCluster{
		{ID: "f1", Name: "dark mode", Priority: models.LevelLow, Count: 1, Comments: []models.AnalyzedComment{older}},
		{ID: "f2", Name: "widgets", Priority: models.LevelHigh, Count: 1, Comments: []models.AnalyzedComment{latest}},
	}
	bugs := []models.BugCluster{
		{ID: "b1", Name: "login", Impact: models.LevelHigh, Severity: models.LevelHigh, Count: 1, Comments: []models.AnalyzedComment{latest}},
		{ID: "b2", Name: "sync", Impact: models.LevelLow, Severity: models.LevelLow, Count: 1, Comments: []models.AnalyzedComment{older}},
	}

	result, err := New(nil, nil).Aggregate(Input{
		Comments: []models.AnalyzedComment{older, latest},
		Features: features,
		Bugs:     bugs,
		Options:  opts,
		Now:      testNow,
	})
	require.NoError(t, err)

	require.Len(t, result.TopFeatures, 1)
	assert.Equal(t, "f2", result.TopFeatures[0].ID)
	require.Len(t, result.CriticalBugs, 1)
	assert.Equal(t, "b1", result.CriticalBugs[0].ID)

	require.Len(t, result.Trends.Features, 2)
	require.Len(t, result.Trends.Bugs, 2)
	assert.Equal(t, []models.PeriodCount{
		{Period: "2024-05-22", Count: 1},
		{Period: "2024-05-29", Count: 0},
		{Period: "2024-06-05", Count: 0},
	}, result.Trends.Features[0].Series)

	assert.Equal(t, models.BugStatusNew, result.Trends.Bugs[0].Status)
	assert.Equal(t, models.BugStatusDecreasing, result.Trends.Bugs[1].Status)
}

func TestAggregate_JSONExport(t *testing.T) {
	opts := models.DefaultOptions()
	comments := []models.AnalyzedComment{reviewAt("a", testNow, 4, models.SentimentPositive)}

	result, err := New(nil, nil).Aggregate(Input{Comments: comments, Options: opts, Now: testNow})
	require.NoError(t, err)

	var decoded struct {
		Summary models.Summary           `json:"summary"`
		Reviews []models.AnalyzedComment `json:"reviews"`
	}
	require.NoError(t, json.Unmarshal([]byte(result.Exports.JSON), &decoded))
	assert.Equal(t, 1, decoded.Summary.TotalReviews)
	require.Len(t, decoded.Reviews, 1)
	assert.Equal(t, "a", decoded.Reviews[0].ID)
	assert.Contains(t, result.Exports.JSON, "\n  \"summary\"")
}
