package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/zombar/reviewinsights/internal/analyzer"
	"github.com/zombar/reviewinsights/internal/api"
	"github.com/zombar/reviewinsights/internal/cache"
	"github.com/zombar/reviewinsights/internal/database"
	"github.com/zombar/reviewinsights/internal/events"
	"github.com/zombar/reviewinsights/internal/metrics"
	"github.com/zombar/reviewinsights/internal/ollama"
	"github.com/zombar/reviewinsights/internal/pipeline"
	"github.com/zombar/reviewinsights/internal/queue"
	"github.com/zombar/reviewinsights/internal/service"
	"github.com/zombar/reviewinsights/pkg/logging"
	"github.com/zombar/reviewinsights/pkg/tracing"
)

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("reviewinsights service failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config, logger *slog.Logger) error {
	logger.Info("reviewinsights service initializing", "version", "1.0.0")

	tp, err := tracing.InitTracer(cfg.ServiceName)
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Error("error shutting down tracer", "error", err)
			}
		}()
		logger.Info("tracing initialized successfully")
	}

	db, err := database.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database %s: %w", cfg.DBPath, err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	reg, err := newRegistry(db)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	lexicon := analyzer.DefaultLexicon()
	if cfg.LexiconPath != "" {
		lexicon, err = analyzer.LoadLexicon(cfg.LexiconPath)
		if err != nil {
			return fmt.Errorf("load lexicon: %w", err)
		}
		logger.Info("lexicon loaded", "path", cfg.LexiconPath)
	}
	p := pipeline.New(analyzer.New(lexicon, logger), logger)

	svcCfg := service.Config{Logger: logger}

	var worker *queue.Worker
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := cache.Connect(ctx, cfg.RedisAddr)
		cancel()
		if err != nil {
			logger.Warn("redis unavailable, result cache disabled", "error", err, "redis_addr", cfg.RedisAddr)
		} else {
			svcCfg.Cache = cache.NewRedisProvider(client, cfg.CacheTTL)
			defer svcCfg.Cache.Close()
			logger.Info("result cache enabled", "ttl", cfg.CacheTTL)
		}

		queueClient := queue.NewClient(queue.ClientConfig{RedisAddr: cfg.RedisAddr})
		defer queueClient.Close()
		svcCfg.Store = db
		svcCfg.Enqueuer = queueClient
	} else {
		logger.Info("REDIS_ADDR not set, asynchronous jobs disabled")
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, map[string]string{
			events.EventAnalysisCompleted: cfg.KafkaTopic,
		})
		if err != nil {
			return fmt.Errorf("create kafka publisher: %w", err)
		}
		defer publisher.Close()
		svcCfg.Publisher = publisher
		logger.Info("kafka publisher enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	if cfg.UseOllama {
		narrator, err := ollama.New(cfg.OllamaURL, cfg.OllamaModel, logger)
		if err != nil {
			logger.Warn("failed to initialize Ollama client, narratives disabled",
				"error", err,
				"ollama_url", cfg.OllamaURL,
				"ollama_model", cfg.OllamaModel,
			)
		} else {
			svcCfg.Narrator = narrator
			logger.Info("Ollama client initialized", "model", cfg.OllamaModel, "url", cfg.OllamaURL)
		}
	}

	svc := service.New(p, svcCfg)

	if svc.AsyncEnabled() {
		worker = queue.NewWorker(queue.WorkerConfig{
			RedisAddr:   cfg.RedisAddr,
			Concurrency: cfg.WorkerConcurrency,
		}, svc, logger)
		if err := worker.Start(); err != nil {
			return fmt.Errorf("start worker: %w", err)
		}
		defer worker.Shutdown()
	}

	// tracing -> HTTP logging -> handlers, so request logs carry the span ids
	handler := tracing.HTTPMiddleware(cfg.ServiceName)(
		logging.HTTPLoggingMiddleware(logger)(api.NewHandler(svc, reg, logger)),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("reviewinsights service starting",
			"port", cfg.Port,
			"database", cfg.DBPath,
			"async", svc.AsyncEnabled(),
			"ollama_enabled", svcCfg.Narrator != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed to start: %w", err)
	}

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// newRegistry builds the registry served on /metrics: Go runtime and process
// collectors, connection pool stats and the pipeline collectors.
func newRegistry(db *database.DB) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewDBStatsCollector(db.Conn(), "reviewinsights")); err != nil {
		return nil, err
	}
	if err := metrics.Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}
