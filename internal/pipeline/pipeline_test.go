package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zombar/reviewinsights/internal/jobs"
	"github.com/zombar/reviewinsights/internal/models"
)

var testNow = time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)

func TestRun_SingleCrashReview(t *testing.T) {
	p := New(nil, nil)

	result, err := p.Run(context.Background(), Request{
		Reviews: []models.RawReview{{
			ID:      "r1",
			Content: "This app is terrible, it keeps crashing and I lost all my data",
			Score:   1,
			Date:    "2024-06-11T10:00:00Z",
		}},
		Now: testNow,
	}, nil)
	require.NoError(t, err)

	require.Len(t, result.Comments, 1)
	c := result.Comments[0]
	assert.Equal(t, models.SentimentNegative, c.Sentiment)
	assert.Equal(t, models.LevelHigh, c.Severity)
	assert.Contains(t, c.Intentions, models.IntentBugReport)
	assert.Contains(t, c.Intentions, models.IntentComplaint)

	assert.Equal(t, 1, result.Summary.TotalReviews)
	assert.Equal(t, 1, result.Summary.BugReportCount)
	assert.Empty(t, result.TopFeatures)
	assert.Empty(t, result.CriticalBugs, "a single bug phrase does not form a cluster")
	assert.Len(t, strings.Split(result.Exports.CSV, "\n"), 2)
}

func TestRun_DuplicateFeatureRequestsCluster(t *testing.T) {
	p := New(nil, nil)

	result, err := p.Run(context.Background(), Request{
		Reviews: []models.RawReview{
			{ID: "r1", Content: "Please add a dark mode option.", Score: 4, Date: "2024-06-10"},
			{ID: "r2", Content: "Please add a dark mode option!", Score: 5, Date: "2024-06-11"},
		},
		Now: testNow,
	}, nil)
	require.NoError(t, err)

	require.Len(t, result.TopFeatures, 1)
	f := result.TopFeatures[0]
	assert.Equal(t, 2, f.Count)
	assert.Equal(t, "a dark mode option", f.Name)
	assert.Equal(t, models.LevelHigh, f.Priority, "average rating 4.5 makes it high priority")
	assert.NotEmpty(t, f.ID)

	require.Len(t, result.Trends.Features, 1)
	assert.Equal(t, f.ID, result.Trends.Features[0].ClusterID)

	var found bool
	for _, in := range result.Insights {
		if in.Type == models.InsightFeature && in.ClusterID == f.ID {
			found = true
		}
	}
	assert.True(t, found, "high priority feature produces an insight")
}

func TestRun_RepeatedReviewIDCountsOnce(t *testing.T) {
	p := New(nil, nil)

	result, err := p.Run(context.Background(), Request{
		Reviews: []models.RawReview{
			{ID: "r1", Content: "Please add a dark mode option.", Score: 4, Date: "2024-06-10"},
			{ID: "r1", Content: "Please add a dark mode option.", Score: 4, Date: "2024-06-10"},
			{ID: "r2", Content: "Please add a dark mode option.", Score: 5, Date: "2024-06-11"},
		},
		Now: testNow,
	}, nil)
	require.NoError(t, err)

	require.Len(t, result.TopFeatures, 1)
	f := result.TopFeatures[0]
	assert.Equal(t, 2, f.Count)
	require.Len(t, f.Comments, 2)
	assert.Equal(t, "r1", f.Comments[0].ID)
	assert.Equal(t, "r2", f.Comments[1].ID)
}

func TestRun_BugClusterWithVersions(t *testing.T) {
	p := New(nil, nil)

	result, err := p.Run(context.Background(), Request{
		Reviews: []models.RawReview{
			{ID: "a", Content: "It crashes when I open the camera on 3.2.0", Score: 1, Date: "2024-06-11"},
			{ID: "b", Content: "Always crashes when I open the camera", Score: 2, Date: "2024-06-12"},
			{ID: "c", Content: "Love the filters", Score: 5, Date: "2024-06-12"},
		},
		KnownVersions: []string{"3.1.0", "3.2.0"},
		Now:           testNow,
	}, nil)
	require.NoError(t, err)

	require.Len(t, result.CriticalBugs, 1)
	b := result.CriticalBugs[0]
	assert.Equal(t, 2, b.Count)
	assert.Equal(t, models.LevelHigh, b.Severity)
	assert.Equal(t, models.LevelHigh, b.Impact)
	assert.Equal(t, []string{"3.2.0"}, b.AffectedVersions)
	assert.Equal(t, models.BugStatusNew, result.Trends.Bugs[0].Status)
}

func TestRun_InvalidOptionsFailEagerly(t *testing.T) {
	p := New(nil, nil)
	var stages []jobs.Status

	_, err := p.Run(context.Background(), Request{
		Reviews: []models.RawReview{{Content: "fine"}},
		Options: models.Options{ClusterThreshold: 1.5},
	}, func(_ context.Context, s jobs.Status) { stages = append(stages, s) })

	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidOptions))
	assert.Empty(t, stages, "no stage starts when options are invalid")
}

func TestRun_ReportsStagesInOrder(t *testing.T) {
	p := New(nil, nil)
	var stages []jobs.Status

	_, err := p.Run(context.Background(), Request{
		Reviews: []models.RawReview{{Content: "great"}},
		Now:     testNow,
	}, func(_ context.Context, s jobs.Status) { stages = append(stages, s) })

	require.NoError(t, err)
	assert.Equal(t, []jobs.Status{jobs.StatusAnalyzing, jobs.StatusClassifying, jobs.StatusAggregating}, stages)
}

func TestRun_Cancelled(t *testing.T) {
	p := New(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, Request{
		Reviews: []models.RawReview{
			{Content: "Please add a dark mode option."},
			{Content: "Please add a dark mode option."},
		},
		Now: testNow,
	}, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRun_EmptyInput(t *testing.T) {
	p := New(nil, nil)

	result, err := p.Run(context.Background(), Request{Now: testNow}, nil)

	require.NoError(t, err)
	assert.Equal(t, 0, result.Summary.TotalReviews)
	assert.Len(t, result.Trends.Overall.DataPoints, models.DefaultMaxDataPoints)
	assert.Empty(t, result.Insights)
	assert.Equal(t, models.DefaultOptions(), result.Options)
}

func TestRun_Deterministic(t *testing.T) {
	p := New(nil, nil)
	reviews := make([]models.RawReview, 0, 30)
	phrases := []string{
		"Please add a dark mode option.",
		"It crashes when I upload a photo.",
		"Would love to see offline sync.",
		"Keeps freezing on the login screen",
	}
	for i := 0; i < 30; i++ {
		reviews = append(reviews, models.RawReview{
			ID:      fmt.Sprintf("r%02d", i),
			Content: phrases[i%len(phrases)],
			Score:   1 + i%5,
			Date:    testNow.AddDate(0, 0, -i).Format(time.RFC3339),
		})
	}

	first, err := p.Run(context.Background(), Request{Reviews: reviews, Now: testNow}, nil)
	require.NoError(t, err)
	second, err := p.Run(context.Background(), Request{Reviews: reviews, Now: testNow}, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Exports.CSV, second.Exports.CSV)
	assert.Equal(t, first.Summary, second.Summary)
	require.Equal(t, len(first.TopFeatures), len(second.TopFeatures))
	for i := range first.TopFeatures {
		assert.Equal(t, first.TopFeatures[i].Name, second.TopFeatures[i].Name)
		assert.Equal(t, first.TopFeatures[i].Count, second.TopFeatures[i].Count)
	}
}

func TestRun_Spans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(noop.NewTracerProvider())

	p := New(nil, nil)
	_, err := p.Run(context.Background(), Request{
		Reviews: []models.RawReview{{Content: "Please add a dark mode option."}},
		Now:     testNow,
	}, nil)
	require.NoError(t, err)

	names := map[string]int{}
	for _, s := range exporter.GetSpans() {
		names[s.Name]++
	}
	assert.Equal(t, 1, names["pipeline.run"])
	assert.Equal(t, 1, names["pipeline.analyze"])
	assert.Equal(t, 2, names["pipeline.cluster"])
	assert.Equal(t, 1, names["pipeline.aggregate"])
}
