package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Worker wraps the Asynq server for processing tasks
type Worker struct {
	server      *asynq.Server
	mux         *asynq.ServeMux
	processor   Processor
	concurrency int
	logger      *slog.Logger
}

// WorkerConfig contains configuration for the queue worker
type WorkerConfig struct {
	RedisAddr   string
	Concurrency int
}

// queuePriorities weights analysis above narrative generation
var queuePriorities = map[string]int{
	QueueAnalysis:  6,
	QueueNarrative: 2,
}

var (
	// narrativeDelays backs off hard because the LLM is often just busy:
	// 30s, 1m, 2m, 5m, 10m, 20m, 30m, 1h, 2h, 4h.
	narrativeDelays = []time.Duration{
		30 * time.Second,
		1 * time.Minute,
		2 * time.Minute,
		5 * time.Minute,
		10 * time.Minute,
		20 * time.Minute,
		30 * time.Minute,
		1 * time.Hour,
		2 * time.Hour,
		4 * time.Hour,
	}
	analysisDelays = []time.Duration{
		1 * time.Minute,
		5 * time.Minute,
		15 * time.Minute,
	}
)

// retryDelay picks the n-th delay from the table for the task type,
// repeating the last one once the table runs out.
func retryDelay(n int, _ error, task *asynq.Task) time.Duration {
	delays := analysisDelays
	if task.Type() == TypeNarrate {
		delays = narrativeDelays
	}
	if n < len(delays) {
		return delays[n]
	}
	return delays[len(delays)-1]
}

// NewWorker creates a new queue worker
func NewWorker(cfg WorkerConfig, processor Processor, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	serverCfg := asynq.Config{
		Concurrency:     cfg.Concurrency,
		Queues:          queuePriorities,
		StrictPriority:  false,
		RetryDelayFunc:  retryDelay,
		ShutdownTimeout: 30 * time.Second,
		Logger:          newAsynqLogger(logger),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)

			logger.Error("task processing error",
				"task_type", task.Type(),
				"error", err,
				"retry_count", retried,
				"max_retries", maxRetry,
			)
		}),
	}

	w := &Worker{
		server:      asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, serverCfg),
		mux:         asynq.NewServeMux(),
		processor:   processor,
		concurrency: cfg.Concurrency,
		logger:      logger,
	}
	w.registerHandlers()
	return w
}

// registerHandlers registers all task handlers with the worker
func (w *Worker) registerHandlers() {
	w.mux.HandleFunc(TypeAnalyzeReviews, w.handleAnalyzeReviews)
	w.mux.HandleFunc(TypeNarrate, w.handleNarrate)
}

// Start starts processing tasks in the background
func (w *Worker) Start() error {
	w.logger.Info("starting asynq worker",
		"concurrency", w.concurrency,
		"queues", queuePriorities,
	)

	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("asynq server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the worker
func (w *Worker) Shutdown() {
	w.logger.Info("shutting down asynq worker")
	w.server.Shutdown()
}
