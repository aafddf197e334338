// Package classifier turns phrase clusters into prioritized feature requests
// and graded bug reports.
package classifier

import (
	"sort"
	"strconv"
	"strings"

	"github.com/zombar/reviewinsights/internal/cluster"
	"github.com/zombar/reviewinsights/internal/ids"
	"github.com/zombar/reviewinsights/internal/models"
)

const (
	maxExamples = 3

	highPriorityRating   = 4.5
	mediumPriorityRating = 3.5
	highImpactRating     = 1.5
	mediumImpactRating   = 3.0
)

// Classifier assigns identifiers, priorities and impact levels to clusters
type Classifier struct {
	ids *ids.Generator
}

// New creates a new Classifier
func New(gen *ids.Generator) *Classifier {
	if gen == nil {
		gen = ids.New()
	}
	return &Classifier{ids: gen}
}

// Features classifies feature-request clusters. Comments are resolved through
// the phrase comment indexes; each comment is linked once per cluster.
func (c *Classifier) Features(groups []cluster.Group, comments []models.AnalyzedComment, opts models.Options) []models.FeatureCluster {
	out := make([]models.FeatureCluster, 0, len(groups))
	for _, g := range groups {
		members := linkedComments(g, comments)
		stats := summarize(members)

		fc := models.FeatureCluster{
			ID:               c.ids.Next(),
			Name:             g.Name,
			Keywords:         g.Keywords,
			Phrases:          g.Texts(),
			Comments:         members,
			Count:            len(members),
			AverageRating:    stats.avgRating,
			AverageSentiment: stats.avgSentiment,
			Examples:         examples(members, true),
		}
		fc.Priority = featurePriority(fc.Count, fc.AverageRating, opts)
		out = append(out, fc)
	}
	return out
}

// Bugs classifies bug-report clusters and detects the affected versions
func (c *Classifier) Bugs(groups []cluster.Group, comments []models.AnalyzedComment, knownVersions []string, opts models.Options) []models.BugCluster {
	out := make([]models.BugCluster, 0, len(groups))
	for _, g := range groups {
		members := linkedComments(g, comments)
		stats := summarize(members)

		bc := models.BugCluster{
			ID:               c.ids.Next(),
			Name:             g.Name,
			Keywords:         g.Keywords,
			Phrases:          g.Texts(),
			Comments:         members,
			Count:            len(members),
			AverageRating:    stats.avgRating,
			AverageSentiment: stats.avgSentiment,
			Severity:         maxSeverity(members),
			AffectedVersions: affectedVersions(g.Texts(), knownVersions),
			Examples:         examples(members, false),
		}
		bc.Impact = bugImpact(bc.Count, bc.Severity, bc.AverageRating, opts)
		out = append(out, bc)
	}
	return out
}

func featurePriority(count int, avgRating float64, opts models.Options) string {
	switch {
	case count >= opts.HighPriorityThreshold || avgRating >= highPriorityRating:
		return models.LevelHigh
	case count >= opts.MediumPriorityThreshold || avgRating >= mediumPriorityRating:
		return models.LevelMedium
	default:
		return models.LevelLow
	}
}

func bugImpact(count int, severity string, avgRating float64, opts models.Options) string {
	switch {
	case count >= opts.HighPriorityThreshold || severity == models.LevelHigh || avgRating <= highImpactRating:
		return models.LevelHigh
	case count >= opts.MediumPriorityThreshold || severity == models.LevelMedium || avgRating <= mediumImpactRating:
		return models.LevelMedium
	default:
		return models.LevelLow
	}
}

// RankFeatures orders features by priority then count and keeps the top limit
func RankFeatures(features []models.FeatureCluster, limit int) []models.FeatureCluster {
	ranked := append([]models.FeatureCluster(nil), features...)
	sort.SliceStable(ranked, func(i, j int) bool {
		pi, pj := models.LevelRank(ranked[i].Priority), models.LevelRank(ranked[j].Priority)
		if pi != pj {
			return pi > pj
		}
		return ranked[i].Count > ranked[j].Count
	})
	if limit >= 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// RankBugs orders bugs by impact, severity and count and keeps the top limit
func RankBugs(bugs []models.BugCluster, limit int) []models.BugCluster {
	ranked := append([]models.BugCluster(nil), bugs...)
	sort.SliceStable(ranked, func(i, j int) bool {
		ii, ij := models.LevelRank(ranked[i].Impact), models.LevelRank(ranked[j].Impact)
		if ii != ij {
			return ii > ij
		}
		si, sj := models.LevelRank(ranked[i].Severity), models.LevelRank(ranked[j].Severity)
		if si != sj {
			return si > sj
		}
		return ranked[i].Count > ranked[j].Count
	})
	if limit >= 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// linkedComments collects the comments behind a group once per review id.
// Comments without an id are told apart by position.
func linkedComments(g cluster.Group, comments []models.AnalyzedComment) []models.AnalyzedComment {
	seen := make(map[string]bool, len(g.Phrases))
	out := make([]models.AnalyzedComment, 0, len(g.Phrases))
	for _, p := range g.Phrases {
		if p.CommentIndex < 0 || p.CommentIndex >= len(comments) {
			continue
		}
		c := comments[p.CommentIndex]
		key := c.ID
		if key == "" {
			key = "#" + strconv.Itoa(p.CommentIndex)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

type memberStats struct {
	avgRating    float64
	avgSentiment float64
}

func summarize(members []models.AnalyzedComment) memberStats {
	if len(members) == 0 {
		return memberStats{}
	}
	var rating, sentiment float64
	for _, m := range members {
		rating += float64(m.Score)
		sentiment += m.SentimentScore
	}
	n := float64(len(members))
	return memberStats{avgRating: rating / n, avgSentiment: sentiment / n}
}

// examples picks up to three member texts, best rated first when descending
func examples(members []models.AnalyzedComment, descending bool) []string {
	sorted := append([]models.AnalyzedComment(nil), members...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if descending {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Score < sorted[j].Score
	})

	out := make([]string, 0, maxExamples)
	for _, m := range sorted {
		if len(out) == maxExamples {
			break
		}
		out = append(out, m.Content)
	}
	return out
}

func maxSeverity(members []models.AnalyzedComment) string {
	severity := models.LevelLow
	for _, m := range members {
		if models.LevelRank(m.Severity) > models.LevelRank(severity) {
			severity = m.Severity
		}
	}
	return severity
}

func affectedVersions(phrases, knownVersions []string) []string {
	out := []string{}
	for _, v := range knownVersions {
		if v == "" {
			continue
		}
		for _, p := range phrases {
			if strings.Contains(p, v) {
				out = append(out, v)
				break
			}
		}
	}
	return out
}
