// Package cache stores finished analysis results keyed by a digest of their input.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zombar/reviewinsights/internal/models"
)

// ErrCacheMiss is returned by Get when nothing is stored under a key
var ErrCacheMiss = errors.New("cache miss")

// Provider is a result cache
type Provider interface {
	Get(ctx context.Context, key string) (*models.AggregatedResult, error)
	Set(ctx context.Context, key string, result *models.AggregatedResult) error
	Close() error
}

type keyInput struct {
	Reviews       []models.RawReview `json:"reviews"`
	KnownVersions []string           `json:"known_versions"`
	Options       models.Options     `json:"options"`
	Period        string             `json:"period"`
}

// Key digests everything a result depends on. period is the key of the
// trend period containing "now", so cached results expire when a new bucket
// opens even if the TTL has not.
func Key(reviews []models.RawReview, knownVersions []string, opts models.Options, period string) (string, error) {
	normalized, err := opts.Normalize()
	if err != nil {
		return "", err
	}
	if reviews == nil {
		reviews = []models.RawReview{}
	}
	if knownVersions == nil {
		knownVersions = []string{}
	}

	data, err := json.Marshal(keyInput{
		Reviews:       reviews,
		KnownVersions: knownVersions,
		Options:       normalized,
		Period:        period,
	})
	if err != nil {
		return "", fmt.Errorf("marshal cache key input: %w", err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// NoopProvider never stores anything
type NoopProvider struct{}

// Get always misses
func (NoopProvider) Get(context.Context, string) (*models.AggregatedResult, error) {
	return nil, ErrCacheMiss
}

// Set discards the result
func (NoopProvider) Set(context.Context, string, *models.AggregatedResult) error { return nil }

// Close does nothing
func (NoopProvider) Close() error { return nil }
