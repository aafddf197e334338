package models

import (
	"errors"
	"fmt"
)

// ErrInvalidOptions is returned when an analysis option bag fails validation
var ErrInvalidOptions = errors.New("invalid analysis options")

// Time period granularities
const (
	PeriodDay     = "day"
	PeriodWeek    = "week"
	PeriodMonth   = "month"
	PeriodQuarter = "quarter"
	PeriodYear    = "year"
)

// Option defaults
const (
	DefaultMinKeywordLength        = 4
	DefaultMaxKeywords             = 50
	DefaultMinKeywordFrequency     = 2
	DefaultKeywordsPerReview       = 10
	DefaultClusterThreshold        = 0.6
	DefaultMinClusterSize          = 2
	DefaultMaxClusters             = 20
	DefaultTimePeriod              = PeriodWeek
	DefaultMaxDataPoints           = 12
	DefaultMaxInsights             = 10
	DefaultMaxFeatures             = 5
	DefaultMaxBugs                 = 5
	DefaultHighPriorityThreshold   = 10
	DefaultMediumPriorityThreshold = 5
)

// Options is the per-run option bag. Zero values select the defaults.
type Options struct {
	MinKeywordLength        int     `json:"min_keyword_length,omitempty"`
	MaxKeywords             int     `json:"max_keywords,omitempty"`
	MinKeywordFrequency     int     `json:"min_keyword_frequency,omitempty"`
	KeywordsPerReview       int     `json:"keywords_per_review,omitempty"`
	ClusterThreshold        float64 `json:"cluster_threshold,omitempty"`
	MinClusterSize          int     `json:"min_cluster_size,omitempty"`
	MaxClusters             int     `json:"max_clusters,omitempty"`
	TimePeriod              string  `json:"time_period,omitempty"`
	MaxDataPoints           int     `json:"max_data_points,omitempty"`
	MaxInsights             int     `json:"max_insights,omitempty"`
	MaxFeatures             int     `json:"max_features,omitempty"`
	MaxBugs                 int     `json:"max_bugs,omitempty"`
	HighPriorityThreshold   int     `json:"high_priority_threshold,omitempty"`
	MediumPriorityThreshold int     `json:"medium_priority_threshold,omitempty"`
	StandardCSV             bool    `json:"standard_csv,omitempty"`
}

// DefaultOptions returns the option bag with every default filled in
func DefaultOptions() Options {
	return Options{
		MinKeywordLength:        DefaultMinKeywordLength,
		MaxKeywords:             DefaultMaxKeywords,
		MinKeywordFrequency:     DefaultMinKeywordFrequency,
		KeywordsPerReview:       DefaultKeywordsPerReview,
		ClusterThreshold:        DefaultClusterThreshold,
		MinClusterSize:          DefaultMinClusterSize,
		MaxClusters:             DefaultMaxClusters,
		TimePeriod:              DefaultTimePeriod,
		MaxDataPoints:           DefaultMaxDataPoints,
		MaxInsights:             DefaultMaxInsights,
		MaxFeatures:             DefaultMaxFeatures,
		MaxBugs:                 DefaultMaxBugs,
		HighPriorityThreshold:   DefaultHighPriorityThreshold,
		MediumPriorityThreshold: DefaultMediumPriorityThreshold,
	}
}

// Normalize validates the options and fills zero values with defaults.
// It fails with ErrInvalidOptions before any per-review work is done.
func (o Options) Normalize() (Options, error) {
	ints := []struct {
		name  string
		value int
	}{
		{"min_keyword_length", o.MinKeywordLength},
		{"max_keywords", o.MaxKeywords},
		{"min_keyword_frequency", o.MinKeywordFrequency},
		{"keywords_per_review", o.KeywordsPerReview},
		{"min_cluster_size", o.MinClusterSize},
		{"max_clusters", o.MaxClusters},
		{"max_data_points", o.MaxDataPoints},
		{"max_insights", o.MaxInsights},
		{"max_features", o.MaxFeatures},
		{"max_bugs", o.MaxBugs},
		{"high_priority_threshold", o.HighPriorityThreshold},
		{"medium_priority_threshold", o.MediumPriorityThreshold},
	}
	for _, field := range ints {
		if field.value < 0 {
			return o, fmt.Errorf("%w: %s must not be negative (got %d)", ErrInvalidOptions, field.name, field.value)
		}
	}
	if o.ClusterThreshold < 0 || o.ClusterThreshold > 1 {
		return o, fmt.Errorf("%w: cluster_threshold must be within [0, 1] (got %g)", ErrInvalidOptions, o.ClusterThreshold)
	}

	n := o
	d := DefaultOptions()
	if n.MinKeywordLength == 0 {
		n.MinKeywordLength = d.MinKeywordLength
	}
	if n.MaxKeywords == 0 {
		n.MaxKeywords = d.MaxKeywords
	}
	if n.MinKeywordFrequency == 0 {
		n.MinKeywordFrequency = d.MinKeywordFrequency
	}
	if n.KeywordsPerReview == 0 {
		n.KeywordsPerReview = d.KeywordsPerReview
	}
	if n.ClusterThreshold == 0 {
		n.ClusterThreshold = d.ClusterThreshold
	}
	if n.MinClusterSize == 0 {
		n.MinClusterSize = d.MinClusterSize
	}
	if n.MaxClusters == 0 {
		n.MaxClusters = d.MaxClusters
	}
	if n.TimePeriod == "" {
		n.TimePeriod = d.TimePeriod
	}
	if n.MaxDataPoints == 0 {
		n.MaxDataPoints = d.MaxDataPoints
	}
	if n.MaxInsights == 0 {
		n.MaxInsights = d.MaxInsights
	}
	if n.MaxFeatures == 0 {
		n.MaxFeatures = d.MaxFeatures
	}
	if n.MaxBugs == 0 {
		n.MaxBugs = d.MaxBugs
	}
	if n.HighPriorityThreshold == 0 {
		n.HighPriorityThreshold = d.HighPriorityThreshold
	}
	if n.MediumPriorityThreshold == 0 {
		n.MediumPriorityThreshold = d.MediumPriorityThreshold
	}

	switch n.TimePeriod {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodQuarter, PeriodYear:
	default:
		return o, fmt.Errorf("%w: unknown time_period %q", ErrInvalidOptions, n.TimePeriod)
	}
	if n.MediumPriorityThreshold > n.HighPriorityThreshold {
		return o, fmt.Errorf("%w: medium_priority_threshold (%d) exceeds high_priority_threshold (%d)",
			ErrInvalidOptions, n.MediumPriorityThreshold, n.HighPriorityThreshold)
	}

	return n, nil
}
