package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/reviewinsights/internal/cluster"
	"github.com/zombar/reviewinsights/internal/models"
)

func comment(content string, score int, severity string) models.AnalyzedComment {
	return models.AnalyzedComment{Content: content, Score: score, Severity: severity, SentimentScore: float64(score) - 3}
}

func group(name string, phrases ...cluster.Phrase) cluster.Group {
	return cluster.Group{Name: name, Keywords: []string{"mode"}, Phrases: phrases}
}

func TestFeatures(t *testing.T) {
	comments := []models.AnalyzedComment{
		comment("please add dark mode", 5, models.LevelLow),
		comment("dark mode would be nice", 3, models.LevelMedium),
		comment("need dark mode, dark mode!", 4, models.LevelLow),
		comment("unrelated", 1, models.LevelHigh),
	}
	g := group("dark mode",
		cluster.Phrase{Text: "dark mode", CommentIndex: 0},
		cluster.Phrase{Text: "dark mode", CommentIndex: 1},
		cluster.Phrase{Text: "dark mode", CommentIndex: 2},
		cluster.Phrase{Text: "dark mode", CommentIndex: 2},
	)

	c := New(nil)
	features := c.Features([]cluster.Group{g}, comments, models.DefaultOptions())

	require.Len(t, features, 1)
	f := features[0]
	assert.NotEmpty(t, f.ID)
	assert.Equal(t, "dark mode", f.Name)
	assert.Equal(t, 3, f.Count, "a comment contributing two phrases is counted once")
	assert.Len(t, f.Comments, 3)
	assert.Len(t, f.Phrases, 4)
	assert.InDelta(t, 4.0, f.AverageRating, 1e-9)
	assert.InDelta(t, 1.0, f.AverageSentiment, 1e-9)
	assert.Equal(t, models.LevelMedium, f.Priority)
	assert.Equal(t, []string{"please add dark mode", "need dark mode, dark mode!", "dark mode would be nice"}, f.Examples)
}

func TestFeatures_DuplicateReviewIDsCountOnce(t *testing.T) {
	first := comment("Please add a dark mode option", 5, models.LevelLow)
	first.ID = "r1"
	repeat := comment("Please add a dark mode option", 5, models.LevelLow)
	repeat.ID = "r1"
	other := comment("Please add a dark mode option", 2, models.LevelLow)
	other.ID = "r2"
	comments := []models.AnalyzedComment{first, repeat, other}

	g := group("a dark mode option",
		cluster.Phrase{Text: "a dark mode option", CommentIndex: 0},
		cluster.Phrase{Text: "a dark mode option", CommentIndex: 1},
		cluster.Phrase{Text: "a dark mode option", CommentIndex: 2},
	)

	features := New(nil).Features([]cluster.Group{g}, comments, models.DefaultOptions())

	require.Len(t, features, 1)
	f := features[0]
	assert.Equal(t, 2, f.Count)
	require.Len(t, f.Comments, 2)
	assert.Equal(t, "r1", f.Comments[0].ID)
	assert.Equal(t, "r2", f.Comments[1].ID)
	assert.InDelta(t, 3.5, f.AverageRating, 1e-9)
}

func TestFeaturePriority(t *testing.T) {
	opts := models.DefaultOptions()

	tests := []struct {
		name   string
		count  int
		rating float64
		want   string
	}{
		{"many requests", 10, 1, models.LevelHigh},
		{"loved by requesters", 2, 4.5, models.LevelHigh},
		{"medium count", 5, 1, models.LevelMedium},
		{"medium rating", 2, 3.5, models.LevelMedium},
		{"low", 2, 3.4, models.LevelLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, featurePriority(tt.count, tt.rating, opts))
		})
	}
}

func TestBugs(t *testing.T) {
	comments := []models.AnalyzedComment{
		comment("crashes when opening camera in 2.3.1", 2, models.LevelHigh),
		comment("camera crash", 4, models.LevelMedium),
		comment("crash on camera open", 3, models.LevelLow),
	}
	g := group("crashes when opening camera",
		cluster.Phrase{Text: "opening camera in 2.3.1", CommentIndex: 0},
		cluster.Phrase{Text: "camera open", CommentIndex: 2},
		cluster.Phrase{Text: "camera crash", CommentIndex: 1},
	)

	c := New(nil)
	bugs := c.Bugs([]cluster.Group{g}, comments, []string{"2.3.0", "2.3.1", ""}, models.DefaultOptions())

	require.Len(t, bugs, 1)
	b := bugs[0]
	assert.Equal(t, 3, b.Count)
	assert.Equal(t, models.LevelHigh, b.Severity)
	assert.Equal(t, models.LevelHigh, b.Impact)
	assert.Equal(t, []string{"2.3.1"}, b.AffectedVersions)
	assert.Equal(t, []string{
		"crashes when opening camera in 2.3.1",
		"crash on camera open",
		"camera crash",
	}, b.Examples)
}

func TestBugImpact(t *testing.T) {
	opts := models.DefaultOptions()

	tests := []struct {
		name     string
		count    int
		severity string
		rating   float64
		want     string
	}{
		{"widespread", 10, models.LevelLow, 5, models.LevelHigh},
		{"severe", 2, models.LevelHigh, 5, models.LevelHigh},
		{"angry users", 2, models.LevelLow, 1.5, models.LevelHigh},
		{"medium count", 5, models.LevelLow, 5, models.LevelMedium},
		{"medium severity", 2, models.LevelMedium, 5, models.LevelMedium},
		{"lukewarm users", 2, models.LevelLow, 3, models.LevelMedium},
		{"low", 2, models.LevelLow, 3.1, models.LevelLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, bugImpact(tt.count, tt.severity, tt.rating, opts))
		})
	}
}

func TestExamplesCapAtThree(t *testing.T) {
	members := []models.AnalyzedComment{
		{Content: "a", Score: 1}, {Content: "b", Score: 5}, {Content: "c", Score: 3},
		{Content: "d", Score: 4}, {Content: "e", Score: 2},
	}

	assert.Equal(t, []string{"b", "d", "c"}, examples(members, true))
	assert.Equal(t, []string{"a", "e", "c"}, examples(members, false))
}

func TestRankFeatures(t *testing.T) {
	features := []models.FeatureCluster{
		{Name: "low-big", Priority: models.LevelLow, Count: 50},
		{Name: "high-small", Priority: models.LevelHigh, Count: 2},
		{Name: "medium", Priority: models.LevelMedium, Count: 6},
		{Name: "high-big", Priority: models.LevelHigh, Count: 12},
	}

	ranked := RankFeatures(features, 3)

	require.Len(t, ranked, 3)
	assert.Equal(t, "high-big", ranked[0].Name)
	assert.Equal(t, "high-small", ranked[1].Name)
	assert.Equal(t, "medium", ranked[2].Name)
	assert.Equal(t, "low-big", features[0].Name, "input order is untouched")
}

func TestRankBugs(t *testing.T) {
	bugs := []models.BugCluster{
		{Name: "medium", Impact: models.LevelMedium, Severity: models.LevelHigh, Count: 9},
		{Name: "high-medium", Impact: models.LevelHigh, Severity: models.LevelMedium, Count: 20},
		{Name: "high-high-small", Impact: models.LevelHigh, Severity: models.LevelHigh, Count: 2},
		{Name: "high-high-big", Impact: models.LevelHigh, Severity: models.LevelHigh, Count: 4},
	}

	ranked := RankBugs(bugs, 5)

	require.Len(t, ranked, 4)
	assert.Equal(t, []string{"high-high-big", "high-high-small", "high-medium", "medium"},
		[]string{ranked[0].Name, ranked[1].Name, ranked[2].Name, ranked[3].Name})

	assert.Empty(t, RankBugs(bugs, 0))
}

func TestAggregateCompetitors(t *testing.T) {
	comments := []models.AnalyzedComment{
		{CompetitorMentions: []string{"Spotify"}, Score: 2, SentimentScore: -1},
		{CompetitorMentions: []string{"Apple Music", "Spotify"}, Score: 4, SentimentScore: 1},
		{CompetitorMentions: []string{"Apple Music"}, Score: 5, SentimentScore: 2},
		{CompetitorMentions: []string{"Spotify"}, Score: 3, SentimentScore: 0},
		{},
	}

	mentions := AggregateCompetitors(comments)

	require.Len(t, mentions, 2)
	assert.Equal(t, "Spotify", mentions[0].Name)
	assert.Equal(t, 3, mentions[0].Count)
	assert.InDelta(t, 3.0, mentions[0].AverageRating, 1e-9)
	assert.InDelta(t, 0.0, mentions[0].AverageSentiment, 1e-9)
	assert.Equal(t, "Apple Music", mentions[1].Name)
	assert.Equal(t, 2, mentions[1].Count)
	assert.InDelta(t, 4.5, mentions[1].AverageRating, 1e-9)

	assert.Empty(t, AggregateCompetitors(nil))
}
