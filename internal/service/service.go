// Package service exposes the review pipeline to the outside world: it runs
// analyses synchronously through the result cache, and tracks asynchronous
// jobs from submission through the worker to a stored result.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zombar/reviewinsights/internal/aggregator"
	"github.com/zombar/reviewinsights/internal/cache"
	"github.com/zombar/reviewinsights/internal/events"
	"github.com/zombar/reviewinsights/internal/jobs"
	"github.com/zombar/reviewinsights/internal/metrics"
	"github.com/zombar/reviewinsights/internal/models"
	"github.com/zombar/reviewinsights/internal/pipeline"
	"github.com/zombar/reviewinsights/pkg/tracing"
)

var (
	// ErrAsyncUnavailable is returned when jobs are requested but no store or queue is configured
	ErrAsyncUnavailable = errors.New("asynchronous jobs are not configured")
	// ErrJobNotReady is returned when exporting a job that has not completed
	ErrJobNotReady = errors.New("job has not completed")
	// ErrUnsupportedFormat is returned for unknown export formats
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// Store persists jobs and the reviews submitted with them
type Store interface {
	CreateJob(ctx context.Context, job *jobs.Job, reviews []models.RawReview) error
	UpdateJob(ctx context.Context, job *jobs.Job) error
	GetJob(ctx context.Context, id string) (*jobs.Job, error)
	GetJobReviews(ctx context.Context, id string) ([]models.RawReview, error)
}

// Enqueuer hands work to the background worker
type Enqueuer interface {
	EnqueueAnalyzeReviews(ctx context.Context, jobID string) (string, error)
	EnqueueNarrate(ctx context.Context, jobID string) (string, error)
}

// Narrator turns a result into prose
type Narrator interface {
	Narrate(ctx context.Context, result *models.AggregatedResult) (string, error)
}

// Config holds the optional collaborators of a Service. Nil Store or Enqueuer
// disables asynchronous jobs; nil Cache, Publisher and Narrator fall back to
// no-op behaviour.
type Config struct {
	Store     Store
	Cache     cache.Provider
	Enqueuer  Enqueuer
	Publisher events.Publisher
	Narrator  Narrator
	Logger    *slog.Logger
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Service runs analyses and manages jobs
type Service struct {
	pipeline  *pipeline.Pipeline
	store     Store
	cache     cache.Provider
	enqueuer  Enqueuer
	publisher events.Publisher
	narrator  Narrator
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Service around a pipeline
func New(p *pipeline.Pipeline, cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if p == nil {
		p = pipeline.New(nil, cfg.Logger)
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NoopProvider{}
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.NewLoggingPublisher(cfg.Logger)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		pipeline:  p,
		store:     cfg.Store,
		cache:     cfg.Cache,
		enqueuer:  cfg.Enqueuer,
		publisher: cfg.Publisher,
		narrator:  cfg.Narrator,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
}

// AsyncEnabled reports whether Submit can accept jobs
func (s *Service) AsyncEnabled() bool {
	return s.store != nil && s.enqueuer != nil
}

// cacheKey validates the options and digests the request together with the
// trend window a run at now would produce, so results do not outlive it.
func cacheKey(req pipeline.Request, now time.Time) (models.Options, string, error) {
	opts, err := req.Options.Normalize()
	if err != nil {
		return models.Options{}, "", err
	}
	key, err := cache.Key(req.Reviews, req.KnownVersions, opts, aggregator.WindowKey(now, opts.TimePeriod))
	if err != nil {
		return models.Options{}, "", err
	}
	return opts, key, nil
}

// Analyze runs the pipeline synchronously. The second return value reports
// whether the result came from the cache.
func (s *Service) Analyze(ctx context.Context, req pipeline.Request) (*models.AggregatedResult, bool, error) {
	now := s.now()
	opts, key, err := cacheKey(req, now)
	if err != nil {
		return nil, false, err
	}

	if result, ok := s.cached(ctx, key); ok {
		return result, true, nil
	}

	req.Now = aggregator.Anchor(now, opts.TimePeriod)
	result, err := s.pipeline.Run(ctx, req, nil)
	if err != nil {
		return nil, false, err
	}

	s.remember(ctx, key, result)
	return result, false, nil
}

func (s *Service) cached(ctx context.Context, key string) (*models.AggregatedResult, bool) {
	result, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		metrics.ObserveCache(metrics.CacheHit)
		s.logger.Debug("result cache hit", "cache_key", key)
		return result, true
	case errors.Is(err, cache.ErrCacheMiss):
		metrics.ObserveCache(metrics.CacheMiss)
	default:
		metrics.ObserveCache(metrics.CacheError)
		s.logger.Warn("result cache lookup failed", "cache_key", key, "error", err)
	}
	return nil, false
}

func (s *Service) remember(ctx context.Context, key string, result *models.AggregatedResult) {
	if err := s.cache.Set(ctx, key, result); err != nil {
		s.logger.Warn("failed to cache result", "cache_key", key, "error", err)
	}
}

// Submit validates and stores a job, then enqueues it for the worker
func (s *Service) Submit(ctx context.Context, req pipeline.Request) (*jobs.Job, error) {
	if !s.AsyncEnabled() {
		return nil, ErrAsyncUnavailable
	}

	now := s.now().UTC()
	opts, key, err := cacheKey(req, now)
	if err != nil {
		return nil, err
	}

	job := &jobs.Job{
		ID:            uuid.NewString(),
		Status:        jobs.StatusPending,
		Progress:      jobs.StatusPending.Progress(),
		ReviewCount:   len(req.Reviews),
		KnownVersions: req.KnownVersions,
		Options:       opts,
		CacheKey:      key,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.CreateJob(ctx, job, req.Reviews); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	metrics.ObserveJob(string(jobs.StatusPending))

	taskID, err := s.enqueuer.EnqueueAnalyzeReviews(ctx, job.ID)
	if err != nil {
		s.fail(ctx, job, fmt.Sprintf("enqueue failed: %v", err))
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	job.TaskID = taskID
	if err := s.store.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("record task id: %w", err)
	}

	s.logger.Info("job submitted",
		"job_id", job.ID,
		"task_id", taskID,
		"reviews", job.ReviewCount,
		"trace_id", tracing.TraceIDFromContext(ctx))
	return job, nil
}

// Job returns the stored state of a job
func (s *Service) Job(ctx context.Context, id string) (*jobs.Job, error) {
	if s.store == nil {
		return nil, ErrAsyncUnavailable
	}
	return s.store.GetJob(ctx, id)
}

// Export is a rendered export of a completed job
type Export struct {
	ContentType string
	Filename    string
	Body        string
}

// Export renders the csv or json export of a completed job
func (s *Service) Export(ctx context.Context, id, format string) (Export, error) {
	job, err := s.Job(ctx, id)
	if err != nil {
		return Export{}, err
	}
	if job.Status != jobs.StatusCompleted || job.Result == nil {
		return Export{}, fmt.Errorf("job %s is %s: %w", id, job.Status, ErrJobNotReady)
	}

	switch format {
	case "", "csv":
		return Export{
			ContentType: "text/csv; charset=utf-8",
			Filename:    "reviews-" + id + ".csv",
			Body:        job.Result.Exports.CSV,
		}, nil
	case "json":
		return Export{
			ContentType: "application/json",
			Filename:    "reviews-" + id + ".json",
			Body:        job.Result.Exports.JSON,
		}, nil
	default:
		return Export{}, fmt.Errorf("%q: %w", format, ErrUnsupportedFormat)
	}
}
