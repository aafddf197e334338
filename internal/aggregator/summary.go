package aggregator

import (
	"github.com/zombar/reviewinsights/internal/classifier"
	"github.com/zombar/reviewinsights/internal/models"
)

// Summarize computes the non-trend statistics over every comment of the run
func Summarize(comments []models.AnalyzedComment, sentiment models.SentimentDistribution, keywords []models.KeywordStat) models.Summary {
	s := models.Summary{
		TotalReviews:          len(comments),
		RatingDistribution:    map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
		SentimentDistribution: sentiment,
		IntentionDistribution: make(map[string]int),
		TopKeywords:           keywords,
		CompetitorMentions:    classifier.AggregateCompetitors(comments),
	}
	if s.TopKeywords == nil {
		s.TopKeywords = []models.KeywordStat{}
	}

	var ratingSum float64
	for _, c := range comments {
		ratingSum += float64(c.Score)
		s.RatingDistribution[c.Score]++

		switch c.UserSegment {
		case models.SegmentNew:
			s.SegmentDistribution.New++
		case models.SegmentPower:
			s.SegmentDistribution.Power++
		case models.SegmentReturning:
			s.SegmentDistribution.Returning++
		default:
			s.SegmentDistribution.Unknown++
		}

		for _, intent := range c.Intentions {
			s.IntentionDistribution[intent]++
		}
		if c.HasIntention(models.IntentFeatureRequest) {
			s.FeatureRequestCount++
		}
		if c.HasIntention(models.IntentBugReport) {
			s.BugReportCount++
		}
	}
	if len(comments) > 0 {
		s.AverageRating = ratingSum / float64(len(comments))
	}

	return s
}
