package models

import "time"

// Sentiment categories
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// Intentions a review can carry
const (
	IntentFeatureRequest = "feature_request"
	IntentBugReport      = "bug_report"
	IntentPraise         = "praise"
	IntentComplaint      = "complaint"
	IntentQuestion       = "question"
	IntentComparison     = "comparison"
)

// User segments
const (
	SegmentNew       = "new"
	SegmentPower     = "power"
	SegmentReturning = "returning"
	SegmentUnknown   = "unknown"
)

// Levels shared by severity, impact and priority
const (
	LevelHigh   = "high"
	LevelMedium = "medium"
	LevelLow    = "low"
)

// LevelRank orders high > medium > low for sorting.
func LevelRank(level string) int {
	switch level {
	case LevelHigh:
		return 3
	case LevelMedium:
		return 2
	case LevelLow:
		return 1
	default:
		return 0
	}
}

// RawReview is a review record as handed over by the acquisition layer
type RawReview struct {
	ID         string `json:"id"`
	UserName   string `json:"user_name"`
	Content    string `json:"content"`
	Score      int    `json:"score"`
	ThumbsUp   int    `json:"thumbs_up"`
	Date       string `json:"date"`
	AppVersion string `json:"app_version,omitempty"`
}

// AnalyzedComment is one review enriched with everything the analyzer derives
type AnalyzedComment struct {
	ID         string    `json:"id"`
	UserName   string    `json:"user_name"`
	Content    string    `json:"content"`
	Score      int       `json:"score"`
	ThumbsUp   int       `json:"thumbs_up"`
	Date       time.Time `json:"date"`
	AppVersion string    `json:"app_version,omitempty"`

	Sentiment      string  `json:"sentiment"`       // positive, negative, neutral
	SentimentScore float64 `json:"sentiment_score"` // mean lexicon weight of matched words

	Keywords           []string `json:"keywords"`
	Intentions         []string `json:"intentions"`
	UserSegment        string   `json:"user_segment"`
	FeatureRequests    []string `json:"feature_requests"`
	BugReports         []string `json:"bug_reports"`
	CompetitorMentions []string `json:"competitor_mentions"`
	Severity           string   `json:"severity"` // low, medium, high
}

// HasIntention reports whether the comment was tagged with intent
func (c AnalyzedComment) HasIntention(intent string) bool {
	for _, i := range c.Intentions {
		if i == intent {
			return true
		}
	}
	return false
}

// KeywordStat is a corpus-level keyword aggregate
type KeywordStat struct {
	Keyword           string  `json:"keyword"`
	Count             int     `json:"count"`
	DocumentFrequency int     `json:"document_frequency"`
	AverageSentiment  float64 `json:"average_sentiment"`
}

// SentimentDistribution counts comments per sentiment category
type SentimentDistribution struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

// SegmentDistribution counts comments per user segment
type SegmentDistribution struct {
	New       int `json:"new"`
	Power     int `json:"power"`
	Returning int `json:"returning"`
	Unknown   int `json:"unknown"`
}

// CompetitorMention aggregates how often a competitor is named
type CompetitorMention struct {
	Name             string  `json:"name"`
	Count            int     `json:"count"`
	AverageSentiment float64 `json:"average_sentiment"`
	AverageRating    float64 `json:"average_rating"`
}

// FeatureCluster groups similar feature requests
type FeatureCluster struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Keywords         []string          `json:"keywords"`
	Phrases          []string          `json:"phrases"`
	Comments         []AnalyzedComment `json:"comments"`
	Count            int               `json:"count"`
	AverageRating    float64           `json:"average_rating"`
	AverageSentiment float64           `json:"average_sentiment"`
	Priority         string            `json:"priority"`
	Examples         []string          `json:"examples"`
}

// BugCluster groups similar bug reports
type BugCluster struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Keywords         []string          `json:"keywords"`
	Phrases          []string          `json:"phrases"`
	Comments         []AnalyzedComment `json:"comments"`
	Count            int               `json:"count"`
	AverageRating    float64           `json:"average_rating"`
	AverageSentiment float64           `json:"average_sentiment"`
	Severity         string            `json:"severity"`
	Impact           string            `json:"impact"`
	AffectedVersions []string          `json:"affected_versions"`
	Examples         []string          `json:"examples"`
}

// TrendDataPoint is one period bucket of the overall trend
type TrendDataPoint struct {
	Period        string    `json:"period"`
	PeriodStart   time.Time `json:"period_start"`
	Positive      int       `json:"positive"`
	Negative      int       `json:"negative"`
	Neutral       int       `json:"neutral"`
	Total         int       `json:"total"`
	AverageRating float64   `json:"average_rating"`
}

// Trend directions
const (
	DirectionImproving  = "improving"
	DirectionDeclining  = "declining"
	DirectionStable     = "stable"
	DirectionIncreasing = "increasing"
	DirectionDecreasing = "decreasing"
)

// Bug statuses
const (
	BugStatusNew        = "new"
	BugStatusIncreasing = "increasing"
	BugStatusDecreasing = "decreasing"
	BugStatusRecurring  = "recurring"
)

// TrendAnalysis describes the overall rating trend across buckets
type TrendAnalysis struct {
	Direction      string           `json:"direction"` // improving, declining, stable
	PercentChange  float64          `json:"percent_change"`
	EarlierAverage float64          `json:"earlier_average"`
	LaterAverage   float64          `json:"later_average"`
	DataPoints     []TrendDataPoint `json:"data_points"`
}

// PeriodCount is a single bucket of a cluster time series
type PeriodCount struct {
	Period string `json:"period"`
	Count  int    `json:"count"`
}

// ClusterTrend is the time series of one feature or bug cluster
type ClusterTrend struct {
	ClusterID     string        `json:"cluster_id"`
	Name          string        `json:"name"`
	Series        []PeriodCount `json:"series"`
	Direction     string        `json:"direction"` // increasing, decreasing, stable
	PercentChange float64       `json:"percent_change"`
	Status        string        `json:"status,omitempty"` // bugs only: new, increasing, decreasing, recurring
}

// TrendBlock bundles overall and per-cluster trends
type TrendBlock struct {
	Overall  TrendAnalysis  `json:"overall"`
	Features []ClusterTrend `json:"features"`
	Bugs     []ClusterTrend `json:"bugs"`
}

// Insight types
const (
	InsightSentimentTrend = "sentiment_trend"
	InsightFeature        = "feature_request"
	InsightBug            = "bug_report"
	InsightCompetitor     = "competitor"
	InsightUserSegment    = "user_segment"
)

// Insight is one entry of the ranked digest
type Insight struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Priority    string  `json:"priority"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	ClusterID   string  `json:"cluster_id,omitempty"`
	Metric      float64 `json:"metric"`
}

// Summary holds the non-trend corpus statistics
type Summary struct {
	TotalReviews          int                   `json:"total_reviews"`
	AverageRating         float64               `json:"average_rating"`
	RatingDistribution    map[int]int           `json:"rating_distribution"`
	SentimentDistribution SentimentDistribution `json:"sentiment_distribution"`
	SegmentDistribution   SegmentDistribution   `json:"segment_distribution"`
	IntentionDistribution map[string]int        `json:"intention_distribution"`
	TopKeywords           []KeywordStat         `json:"top_keywords"`
	CompetitorMentions    []CompetitorMention   `json:"competitor_mentions"`
	FeatureRequestCount   int                   `json:"feature_request_count"`
	BugReportCount        int                   `json:"bug_report_count"`
}

// Exports carries the rendered export blobs
type Exports struct {
	CSV  string `json:"csv"`
	JSON string `json:"json"`
}

// AggregatedResult is the final output of one analysis run
type AggregatedResult struct {
	Summary      Summary           `json:"summary"`
	Trends       TrendBlock        `json:"trends"`
	TopFeatures  []FeatureCluster  `json:"top_features"`
	CriticalBugs []BugCluster      `json:"critical_bugs"`
	Insights     []Insight         `json:"insights"`
	Comments     []AnalyzedComment `json:"comments"`
	Exports      Exports           `json:"exports"`
	Options      Options           `json:"options"`
	GeneratedAt  time.Time         `json:"generated_at"`
}
