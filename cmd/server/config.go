package main

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"
)

// config holds the server settings. Every flag defaults to its environment
// variable so containers can be configured without arguments.
type config struct {
	Port              string
	DBPath            string
	RedisAddr         string
	CacheTTL          time.Duration
	WorkerConcurrency int
	KafkaBrokers      []string
	KafkaTopic        string
	OllamaURL         string
	OllamaModel       string
	UseOllama         bool
	LexiconPath       string
	LogLevel          string
	LogFormat         string
	ServiceName       string
}

func parseConfig(args []string) (config, error) {
	var cfg config
	var brokers string

	fs := flag.NewFlagSet("reviewinsights", flag.ContinueOnError)
	fs.StringVar(&cfg.Port, "port", getEnv("PORT", "8080"), "Server port (env: PORT)")
	fs.StringVar(&cfg.DBPath, "db", getEnv("DB_PATH", "reviewinsights.db"), "Database file path (env: DB_PATH)")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", ""), "Redis address for the cache and job queue; empty disables both (env: REDIS_ADDR)")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", getEnvDuration("CACHE_TTL", 24*time.Hour), "Result cache TTL (env: CACHE_TTL)")
	fs.IntVar(&cfg.WorkerConcurrency, "worker-concurrency", getEnvInt("WORKER_CONCURRENCY", 4), "Concurrent background jobs (env: WORKER_CONCURRENCY)")
	fs.StringVar(&brokers, "kafka-brokers", getEnv("KAFKA_BROKERS", ""), "Comma separated Kafka brokers; empty logs events instead (env: KAFKA_BROKERS)")
	fs.StringVar(&cfg.KafkaTopic, "kafka-topic", getEnv("KAFKA_TOPIC", "review-analysis-events"), "Kafka topic for completion events (env: KAFKA_TOPIC)")
	fs.StringVar(&cfg.OllamaURL, "ollama-url", getEnv("OLLAMA_URL", "http://localhost:11434"), "Ollama API URL (env: OLLAMA_URL)")
	fs.StringVar(&cfg.OllamaModel, "ollama-model", getEnv("OLLAMA_MODEL", "gpt-oss:20b"), "Ollama model to use (env: OLLAMA_MODEL)")
	fs.BoolVar(&cfg.UseOllama, "use-ollama", getEnvBool("USE_OLLAMA", false), "Generate narrative summaries with Ollama (env: USE_OLLAMA)")
	fs.StringVar(&cfg.LexiconPath, "lexicon", getEnv("LEXICON_PATH", ""), "YAML lexicon overriding the built-in word lists (env: LEXICON_PATH)")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level (env: LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "json"), "Log format, json or text (env: LOG_FORMAT)")
	fs.StringVar(&cfg.ServiceName, "service-name", getEnv("OTEL_SERVICE_NAME", "reviewinsights"), "Service name reported to tracing (env: OTEL_SERVICE_NAME)")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	cfg.KafkaBrokers = splitList(brokers)
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
