package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Task type constants
const (
	TypeAnalyzeReviews = "reviewinsights:analyze_reviews"
	TypeNarrate        = "reviewinsights:narrate"
)

// Queue names
const (
	QueueAnalysis  = "analysis"
	QueueNarrative = "narrative"
)

// JobPayload is the payload of every task. Reviews stay in the database;
// only the job id travels through Redis.
type JobPayload struct {
	JobID string `json:"job_id"`
	// Tracing and timing fields
	TraceID    string `json:"trace_id,omitempty"`
	SpanID     string `json:"span_id,omitempty"`
	EnqueuedAt int64  `json:"enqueued_at"` // Unix timestamp in nanoseconds
}

// Client wraps the Asynq client for enqueueing tasks
type Client struct {
	client *asynq.Client
}

// ClientConfig contains configuration for the queue client
type ClientConfig struct {
	RedisAddr string
}

// NewClient creates a new queue client
func NewClient(cfg ClientConfig) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr}),
	}
}

// newJobPayload stamps the enqueue time and copies the caller's trace
// context so the worker span joins the same trace.
func newJobPayload(ctx context.Context, taskType, jobID string, now time.Time) JobPayload {
	payload := JobPayload{
		JobID:      jobID,
		EnqueuedAt: now.UnixNano(),
	}

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()
		payload.TraceID = spanCtx.TraceID().String()
		payload.SpanID = spanCtx.SpanID().String()

		span.AddEvent("task_enqueued", trace.WithAttributes(
			attribute.String("task.type", taskType),
			attribute.String("job.id", jobID),
			attribute.Int64("enqueued_at", payload.EnqueuedAt),
		))
	}
	return payload
}

func taskOptions(taskType string) []asynq.Option {
	if taskType == TypeNarrate {
		return []asynq.Option{
			asynq.MaxRetry(10),
			asynq.Timeout(10 * time.Minute),
			asynq.Queue(QueueNarrative),
			asynq.Retention(7 * 24 * time.Hour),
		}
	}
	return []asynq.Option{
		asynq.MaxRetry(3),
		asynq.Timeout(5 * time.Minute),
		asynq.Queue(QueueAnalysis),
		asynq.Retention(7 * 24 * time.Hour),
	}
}

func taskID(taskType, jobID string) string {
	if taskType == TypeNarrate {
		return jobID + "-narrate"
	}
	return jobID
}

func (c *Client) enqueue(ctx context.Context, taskType, jobID string) (string, error) {
	payloadBytes, err := json.Marshal(newJobPayload(ctx, taskType, jobID, time.Now()))
	if err != nil {
		return "", fmt.Errorf("failed to marshal task payload: %w", err)
	}

	task := asynq.NewTask(taskType, payloadBytes, asynq.TaskID(taskID(taskType, jobID)))
	info, err := c.client.EnqueueContext(ctx, task, taskOptions(taskType)...)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s task: %w", taskType, err)
	}
	return info.ID, nil
}

// EnqueueAnalyzeReviews enqueues the analysis of a stored job
func (c *Client) EnqueueAnalyzeReviews(ctx context.Context, jobID string) (string, error) {
	return c.enqueue(ctx, TypeAnalyzeReviews, jobID)
}

// EnqueueNarrate enqueues narrative generation for a completed job
func (c *Client) EnqueueNarrate(ctx context.Context, jobID string) (string, error) {
	return c.enqueue(ctx, TypeNarrate, jobID)
}

// Close closes the client connection
func (c *Client) Close() error {
	return c.client.Close()
}
