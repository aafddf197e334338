package analyzer

import (
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/zombar/reviewinsights/internal/models"
)

// AnonymousUser replaces a missing reviewer name
const AnonymousUser = "Anonymous"

// Analyzer enriches raw reviews with sentiment, keywords, intents and entities
type Analyzer struct {
	lexicon *Lexicon
	logger  *slog.Logger
}

// Analysis is the per-review output plus the corpus-level aggregates
type Analysis struct {
	Comments  []models.AnalyzedComment
	Corpus    *Corpus
	Sentiment models.SentimentDistribution
	Keywords  []models.KeywordStat
}

// New creates a new Analyzer. A nil lexicon selects the built-in tables.
func New(lexicon *Lexicon, logger *slog.Logger) *Analyzer {
	if lexicon == nil {
		lexicon = DefaultLexicon()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{lexicon: lexicon, logger: logger}
}

// Lexicon returns the tables this analyzer consults
func (a *Analyzer) Lexicon() *Lexicon {
	return a.lexicon
}

// Analyze processes every review of a run. opts must already be normalized.
// The corpus is built from all raw texts before the first review is scored.
func (a *Analyzer) Analyze(reviews []models.RawReview, opts models.Options, now time.Time) Analysis {
	texts := make([]string, len(reviews))
	for i, r := range reviews {
		texts[i] = r.Content
	}
	corpus := NewCorpus(texts)

	comments := make([]models.AnalyzedComment, len(reviews))
	for i, r := range reviews {
		comments[i] = a.AnalyzeReview(r, corpus, opts, now)
	}

	result := Analysis{
		Comments:  comments,
		Corpus:    corpus,
		Sentiment: sentimentDistribution(comments),
		Keywords:  aggregateKeywords(comments, opts.MinKeywordFrequency, opts.MaxKeywords),
	}

	a.logger.Debug("reviews analyzed",
		"reviews", len(comments),
		"keywords", len(result.Keywords),
		"positive", result.Sentiment.Positive,
		"negative", result.Sentiment.Negative,
		"neutral", result.Sentiment.Neutral)

	return result
}

// AnalyzeReview enriches a single review against a prebuilt corpus
func (a *Analyzer) AnalyzeReview(r models.RawReview, corpus *Corpus, opts models.Options, now time.Time) models.AnalyzedComment {
	c := normalizeReview(r, now)

	s := a.lexicon.ScoreSentiment(c.Content)
	c.Sentiment = s.Category
	c.SentimentScore = s.Value

	c.Keywords = ExtractKeywords(c.Content, corpus, opts.MinKeywordLength, opts.KeywordsPerReview)
	c.Intentions = a.lexicon.ClassifyIntent(c.Content, s.Category)
	c.FeatureRequests = a.lexicon.ExtractFeatureRequests(c.Content)
	c.BugReports = a.lexicon.ExtractBugReports(c.Content)
	c.CompetitorMentions = a.lexicon.DetectCompetitors(c.Content)
	c.UserSegment = a.lexicon.DetectUserSegment(c.Content)
	c.Severity = a.lexicon.DetectSeverity(c.Content, c.Score)

	return c
}

// normalizeReview applies the input defaults: anonymous user, generated id,
// and the current time for missing or unparseable dates.
func normalizeReview(r models.RawReview, now time.Time) models.AnalyzedComment {
	c := models.AnalyzedComment{
		ID:         r.ID,
		UserName:   r.UserName,
		Content:    r.Content,
		Score:      r.Score,
		ThumbsUp:   r.ThumbsUp,
		AppVersion: r.AppVersion,
		Date:       ParseDate(r.Date, now),
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.UserName == "" {
		c.UserName = AnonymousUser
	}
	return c
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate accepts the common review date layouts and falls back to now
func ParseDate(value string, now time.Time) time.Time {
	if value == "" {
		return now.UTC()
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return now.UTC()
}

func sentimentDistribution(comments []models.AnalyzedComment) models.SentimentDistribution {
	var d models.SentimentDistribution
	for _, c := range comments {
		switch c.Sentiment {
		case models.SentimentPositive:
			d.Positive++
		case models.SentimentNegative:
			d.Negative++
		default:
			d.Neutral++
		}
	}
	return d
}

type keywordAccumulator struct {
	keyword      string
	count        int
	docFreq      int
	sentimentSum float64
}

// aggregateKeywords counts per (review, keyword) pair, keeps keywords seen at
// least minFrequency times and returns at most maxKeywords by count.
func aggregateKeywords(comments []models.AnalyzedComment, minFrequency, maxKeywords int) []models.KeywordStat {
	index := make(map[string]*keywordAccumulator)
	order := make([]*keywordAccumulator, 0)

	for _, c := range comments {
		seen := make(map[string]bool, len(c.Keywords))
		for _, kw := range c.Keywords {
			acc, ok := index[kw]
			if !ok {
				acc = &keywordAccumulator{keyword: kw}
				index[kw] = acc
				order = append(order, acc)
			}
			acc.count++
			acc.sentimentSum += c.SentimentScore
			if !seen[kw] {
				seen[kw] = true
				acc.docFreq++
			}
		}
	}

	stats := make([]models.KeywordStat, 0, len(order))
	for _, acc := range order {
		if acc.count < minFrequency {
			continue
		}
		stats = append(stats, models.KeywordStat{
			Keyword:           acc.keyword,
			Count:             acc.count,
			DocumentFrequency: acc.docFreq,
			AverageSentiment:  acc.sentimentSum / float64(acc.count),
		})
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Count > stats[j].Count
	})
	if maxKeywords > 0 && len(stats) > maxKeywords {
		stats = stats[:maxKeywords]
	}
	return stats
}
