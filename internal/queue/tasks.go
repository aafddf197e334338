package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zombar/reviewinsights/internal/database"
	"github.com/zombar/reviewinsights/internal/jobs"
	"github.com/zombar/reviewinsights/internal/models"
	"github.com/zombar/reviewinsights/pkg/tracing"
)

// Processor does the work behind each task type
type Processor interface {
	ProcessJob(ctx context.Context, jobID string) error
	NarrateJob(ctx context.Context, jobID string) error
}

func (w *Worker) handleAnalyzeReviews(ctx context.Context, t *asynq.Task) error {
	return w.handle(ctx, t, w.processor.ProcessJob)
}

func (w *Worker) handleNarrate(ctx context.Context, t *asynq.Task) error {
	return w.handle(ctx, t, w.processor.NarrateJob)
}

func (w *Worker) handle(ctx context.Context, t *asynq.Task, run func(context.Context, string) error) error {
	var payload JobPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		w.logger.Error("failed to unmarshal task payload", "task_type", t.Type(), "error", err)
		return fmt.Errorf("invalid task payload: %w: %w", err, asynq.SkipRetry)
	}

	retryCount, _ := asynq.GetRetryCount(ctx)
	var queueWaitTime time.Duration
	if payload.EnqueuedAt > 0 {
		queueWaitTime = time.Since(time.Unix(0, payload.EnqueuedAt))
	}

	attrs := []attribute.KeyValue{
		attribute.String("task.type", t.Type()),
		attribute.String("job.id", payload.JobID),
		attribute.Int("retry_count", retryCount),
		attribute.Float64("queue.wait_time_seconds", queueWaitTime.Seconds()),
	}

	if parentCtx, ok := tracing.ContextWithRemoteParent(ctx, payload.TraceID, payload.SpanID); ok {
		var span trace.Span
		ctx, span = tracing.Tracer().Start(parentCtx, "asynq.task.process",
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(attrs...),
			trace.WithAttributes(attribute.Int64("enqueued_at", payload.EnqueuedAt)),
		)
		defer span.End()
		span.AddEvent("task_processing_started", trace.WithAttributes(
			attribute.Float64("wait_time_seconds", queueWaitTime.Seconds()),
		))
	} else {
		tracing.SetSpanAttributes(ctx, attrs...)
	}

	w.logger.Info("processing task",
		"task_type", t.Type(),
		"job_id", payload.JobID,
		"retry_count", retryCount,
		"queue_wait_seconds", queueWaitTime.Seconds(),
	)

	if err := run(ctx, payload.JobID); err != nil {
		span := trace.SpanFromContext(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		if isPermanent(err) {
			w.logger.Error("permanent task error",
				"task_type", t.Type(),
				"job_id", payload.JobID,
				"error", err,
			)
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}

		w.logger.Warn("task failed, will retry",
			"task_type", t.Type(),
			"job_id", payload.JobID,
			"error", err,
			"retry_count", retryCount,
			"retriable", isRetriable(err),
		)
		return err
	}

	w.logger.Info("task completed", "task_type", t.Type(), "job_id", payload.JobID)
	return nil
}

// isPermanent reports errors that no retry can fix
func isPermanent(err error) bool {
	return errors.Is(err, database.ErrNotFound) ||
		errors.Is(err, jobs.ErrInvalidTransition) ||
		errors.Is(err, models.ErrInvalidOptions)
}

// isRetriable determines if an error looks transient (connection/timeout)
func isRetriable(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	retriablePatterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"service unavailable",
		"bad gateway",
		"too many requests",
		"context deadline exceeded",
		"database is locked",
		"no such host",
		"network is unreachable",
	}

	for _, pattern := range retriablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
