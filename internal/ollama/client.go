package ollama

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/zombar/reviewinsights/internal/models"
)

const (
	DefaultModel   = "gpt-oss:20b"
	DefaultTimeout = 120 * time.Second
)

const maxPromptItems = 5

// Client wraps the Ollama API client
type Client struct {
	client  *api.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a new Ollama client
func New(ollamaURL, model string, logger *slog.Logger) (*Client, error) {
	if ollamaURL == "" {
		ollamaURL = "http://localhost:11434"
	}
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	baseURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid Ollama URL %q: scheme and host required", ollamaURL)
	}

	return &Client{
		client:  api.NewClient(baseURL, http.DefaultClient),
		model:   model,
		timeout: DefaultTimeout,
		logger:  logger,
	}, nil
}

// Ping checks that the Ollama server answers
func (c *Client) Ping(ctx context.Context) error {
	if err := c.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama heartbeat: %w", err)
	}
	return nil
}

// GenerateResponse generates a response from the LLM
func (c *Client) GenerateResponse(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	req := &api.GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: new(bool),
	}

	var response strings.Builder
	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		response.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		c.logger.Warn("ollama generation failed", "model", c.model, "error", err)
		return "", fmt.Errorf("generation failed: %w", err)
	}

	result := strings.TrimSpace(response.String())
	c.logger.Debug("ollama response received",
		"model", c.model,
		"chars", len(result),
		"duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

// Narrate writes a short product-manager summary of an analysis result
func (c *Client) Narrate(ctx context.Context, result *models.AggregatedResult) (string, error) {
	if result == nil || result.Summary.TotalReviews == 0 {
		return "", nil
	}
	return c.GenerateResponse(ctx, narrativePrompt(result))
}

func narrativePrompt(result *models.AggregatedResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Reviews analyzed: %d\n", result.Summary.TotalReviews)
	fmt.Fprintf(&b, "Average rating: %.2f\n", result.Summary.AverageRating)
	s := result.Summary.SentimentDistribution
	fmt.Fprintf(&b, "Sentiment: %d positive, %d negative, %d neutral\n", s.Positive, s.Negative, s.Neutral)
	overall := result.Trends.Overall
	fmt.Fprintf(&b, "Rating trend: %s (%+.1f%%)\n", overall.Direction, overall.PercentChange)

	if len(result.TopFeatures) > 0 {
		b.WriteString("Most requested features:\n")
		for i, f := range result.TopFeatures {
			if i == maxPromptItems {
				break
			}
			fmt.Fprintf(&b, "- %s (%d requests, %s priority)\n", f.Name, f.Count, f.Priority)
		}
	}
	if len(result.CriticalBugs) > 0 {
		b.WriteString("Critical bugs:\n")
		for i, bug := range result.CriticalBugs {
			if i == maxPromptItems {
				break
			}
			fmt.Fprintf(&b, "- %s (%d reports, %s impact)\n", bug.Name, bug.Count, bug.Impact)
		}
	}
	if len(result.Insights) > 0 {
		b.WriteString("Insights:\n")
		for i, in := range result.Insights {
			if i == maxPromptItems {
				break
			}
			fmt.Fprintf(&b, "- [%s] %s\n", in.Priority, in.Title)
		}
	}

	return fmt.Sprintf(`You are helping a product team read app store feedback. Using only the statistics below, write a short briefing.

Requirements:
- Write EXACTLY 3 or 4 short sentences
- Lead with the most urgent problem if there is one
- Mention the top feature request by name if there is one
- Do NOT use numbering or bullet points
- Do NOT invent numbers that are not listed

Statistics:
%s
Briefing:`, b.String())
}
