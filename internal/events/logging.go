package events

import (
	"context"
	"log/slog"
)

// LoggingPublisher stands in when no broker is configured
type LoggingPublisher struct {
	logger *slog.Logger
}

// NewLoggingPublisher creates a publisher that only logs
func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPublisher{logger: logger}
}

// Publish logs the event and drops it
func (p *LoggingPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	p.logger.DebugContext(ctx, "event dropped, no broker configured",
		"event_type", eventType,
		"partition_key", partitionKey,
		"payload_bytes", len(payload),
	)
	return nil
}

// Close does nothing
func (p *LoggingPublisher) Close() error { return nil }
