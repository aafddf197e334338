package classifier

import (
	"sort"

	"github.com/zombar/reviewinsights/internal/models"
)

// AggregateCompetitors counts how many comments name each competitor, with
// the mean sentiment and rating of those comments, most mentioned first.
func AggregateCompetitors(comments []models.AnalyzedComment) []models.CompetitorMention {
	type acc struct {
		name      string
		count     int
		sentiment float64
		rating    float64
	}

	index := make(map[string]*acc)
	order := make([]*acc, 0)
	for _, c := range comments {
		for _, name := range c.CompetitorMentions {
			a, ok := index[name]
			if !ok {
				a = &acc{name: name}
				index[name] = a
				order = append(order, a)
			}
			a.count++
			a.sentiment += c.SentimentScore
			a.rating += float64(c.Score)
		}
	}

	mentions := make([]models.CompetitorMention, len(order))
	for i, a := range order {
		mentions[i] = models.CompetitorMention{
			Name:             a.name,
			Count:            a.count,
			AverageSentiment: a.sentiment / float64(a.count),
			AverageRating:    a.rating / float64(a.count),
		}
	}

	sort.SliceStable(mentions, func(i, j int) bool {
		return mentions[i].Count > mentions[j].Count
	})
	return mentions
}
