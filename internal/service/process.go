package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/zombar/reviewinsights/internal/aggregator"
	"github.com/zombar/reviewinsights/internal/events"
	"github.com/zombar/reviewinsights/internal/jobs"
	"github.com/zombar/reviewinsights/internal/metrics"
	"github.com/zombar/reviewinsights/internal/pipeline"
	"github.com/zombar/reviewinsights/pkg/tracing"
)

// ProcessJob is the worker entry point for one job. It is safe to redeliver:
// finished jobs are left alone and a retried job resumes from the stage it
// had reached. Pipeline failures are recorded on the job and are not task
// errors; only storage problems and cancellation are returned for retry.
func (s *Service) ProcessJob(ctx context.Context, jobID string) error {
	if s.store == nil {
		return ErrAsyncUnavailable
	}

	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job.Status.Terminal() {
		s.logger.Info("job already finished, skipping", "job_id", jobID, "status", job.Status)
		return nil
	}

	if err := s.advance(ctx, job, jobs.StatusFetching); err != nil {
		return err
	}
	reviews, err := s.store.GetJobReviews(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job reviews: %w", err)
	}

	result, hit := s.cached(ctx, job.CacheKey)
	if !hit {
		var stageErr error
		progress := func(ctx context.Context, stage jobs.Status) {
			if err := s.advance(ctx, job, stage); err != nil && stageErr == nil {
				stageErr = err
			}
		}

		result, err = s.pipeline.Run(ctx, pipeline.Request{
			Reviews:       reviews,
			KnownVersions: job.KnownVersions,
			Options:       job.Options,
			Now:           aggregator.Anchor(job.CreatedAt, job.Options.TimePeriod),
		}, progress)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			s.fail(ctx, job, err.Error())
			return nil
		}
		if stageErr != nil {
			return stageErr
		}
		s.remember(ctx, job.CacheKey, result)
	}

	job.Result = result
	if err := s.advance(ctx, job, jobs.StatusCompleted); err != nil {
		return err
	}

	s.logger.Info("job completed",
		"job_id", job.ID,
		"reviews", job.ReviewCount,
		"from_cache", hit,
		"trace_id", tracing.TraceIDFromContext(ctx))

	s.publishCompleted(ctx, job)
	s.requestNarrative(ctx, job)
	return nil
}

// advance moves the job forward and persists it. Stages the job has already
// passed are ignored so a retried task can replay them.
func (s *Service) advance(ctx context.Context, job *jobs.Job, to jobs.Status) error {
	if job.Status == to || to.Before(job.Status) {
		return nil
	}
	if err := job.Advance(to, s.now().UTC(), ""); err != nil {
		return fmt.Errorf("advance job %s: %w", job.ID, err)
	}
	if err := s.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	metrics.ObserveJob(string(to))
	return nil
}

// fail records a failure. Storage errors are only logged: the caller is
// already on an error path.
func (s *Service) fail(ctx context.Context, job *jobs.Job, reason string) {
	if err := job.Advance(jobs.StatusFailed, s.now().UTC(), reason); err != nil {
		s.logger.Error("cannot fail job", "job_id", job.ID, "error", err)
		return
	}
	if err := s.store.UpdateJob(ctx, job); err != nil {
		s.logger.Error("failed to save failed job", "job_id", job.ID, "error", err)
	}
	metrics.ObserveJob(string(jobs.StatusFailed))
	s.logger.Warn("job failed", "job_id", job.ID, "reason", reason)
}

func (s *Service) publishCompleted(ctx context.Context, job *jobs.Job) {
	evt, err := events.NewAnalysisCompleted(uuid.NewString(), job, tracing.TraceIDFromContext(ctx))
	if err == nil {
		err = events.PublishCompleted(ctx, s.publisher, evt)
	}
	if err != nil {
		s.logger.Warn("failed to publish completion event", "job_id", job.ID, "error", err)
	}
}

// requestNarrative queues narrative generation when a worker is available
// and writes it inline otherwise.
func (s *Service) requestNarrative(ctx context.Context, job *jobs.Job) {
	if s.narrator == nil {
		return
	}
	if s.enqueuer != nil {
		if _, err := s.enqueuer.EnqueueNarrate(ctx, job.ID); err != nil {
			s.logger.Warn("failed to enqueue narrative", "job_id", job.ID, "error", err)
		}
		return
	}
	if err := s.narrate(ctx, job); err != nil {
		s.logger.Warn("narrative generation failed", "job_id", job.ID, "error", err)
	}
}

// NarrateJob adds an LLM narrative to a completed job. Errors are returned so
// the queue can retry a busy model.
func (s *Service) NarrateJob(ctx context.Context, jobID string) error {
	if s.store == nil {
		return ErrAsyncUnavailable
	}
	if s.narrator == nil {
		return nil
	}
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	return s.narrate(ctx, job)
}

func (s *Service) narrate(ctx context.Context, job *jobs.Job) error {
	if job.Status != jobs.StatusCompleted || job.Result == nil || job.Narrative != "" {
		return nil
	}

	text, err := s.narrator.Narrate(ctx, job.Result)
	if err != nil {
		return fmt.Errorf("narrate job %s: %w", job.ID, err)
	}
	if text == "" {
		return nil
	}

	job.Narrative = text
	job.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("save narrative: %w", err)
	}
	return nil
}
