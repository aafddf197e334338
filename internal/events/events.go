// Package events publishes job lifecycle notifications.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zombar/reviewinsights/internal/jobs"
)

// EventAnalysisCompleted is emitted once per completed job
const EventAnalysisCompleted = "review_analysis.completed"

const maxTopInsights = 3

// Publisher delivers an encoded event. partitionKey keeps events of one job ordered.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
	Close() error
}

// AnalysisCompleted is the payload of EventAnalysisCompleted
type AnalysisCompleted struct {
	EventID         string    `json:"event_id"`
	JobID           string    `json:"job_id"`
	CompletedAt     time.Time `json:"completed_at"`
	TotalReviews    int       `json:"total_reviews"`
	AverageRating   float64   `json:"average_rating"`
	FeatureClusters int       `json:"feature_clusters"`
	BugClusters     int       `json:"bug_clusters"`
	InsightCount    int       `json:"insight_count"`
	TopInsights     []string  `json:"top_insights"`
	TraceID         string    `json:"trace_id,omitempty"`
}

// NewAnalysisCompleted builds the event for a completed job
func NewAnalysisCompleted(eventID string, job *jobs.Job, traceID string) (AnalysisCompleted, error) {
	if job.Status != jobs.StatusCompleted || job.Result == nil {
		return AnalysisCompleted{}, fmt.Errorf("job %s has no result (status %s)", job.ID, job.Status)
	}

	evt := AnalysisCompleted{
		EventID:         eventID,
		JobID:           job.ID,
		CompletedAt:     job.UpdatedAt.UTC(),
		TotalReviews:    job.Result.Summary.TotalReviews,
		AverageRating:   job.Result.Summary.AverageRating,
		FeatureClusters: len(job.Result.Trends.Features),
		BugClusters:     len(job.Result.Trends.Bugs),
		InsightCount:    len(job.Result.Insights),
		TopInsights:     []string{},
		TraceID:         traceID,
	}
	if job.CompletedAt != nil {
		evt.CompletedAt = job.CompletedAt.UTC()
	}
	for i, in := range job.Result.Insights {
		if i == maxTopInsights {
			break
		}
		evt.TopInsights = append(evt.TopInsights, in.Title)
	}
	return evt, nil
}

// PublishCompleted encodes and publishes a completion event keyed by job id
func PublishCompleted(ctx context.Context, p Publisher, evt AnalysisCompleted) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode %s: %w", EventAnalysisCompleted, err)
	}
	if err := p.Publish(ctx, EventAnalysisCompleted, payload, evt.JobID); err != nil {
		return fmt.Errorf("publish %s: %w", EventAnalysisCompleted, err)
	}
	return nil
}
