package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/reviewinsights/internal/models"
)

var reviews = []models.RawReview{
	{ID: "r1", Content: "Please add a dark mode option.", Score: 4},
	{ID: "r2", Content: "Crashes on launch", Score: 1},
}

func TestKey(t *testing.T) {
	base, err := Key(reviews, nil, models.Options{}, "2024-06-10")
	require.NoError(t, err)
	assert.Len(t, base, 64)

	tests := []struct {
		name     string
		reviews  []models.RawReview
		versions []string
		opts     models.Options
		period   string
		same     bool
	}{
		{"explicit defaults", reviews, nil, models.DefaultOptions(), "2024-06-10", true},
		{"empty versions", reviews, []string{}, models.Options{}, "2024-06-10", true},
		{"versions differ", reviews, []string{"1.0"}, models.Options{}, "2024-06-10", false},
		{"options differ", reviews, nil, models.Options{MaxInsights: 3}, "2024-06-10", false},
		{"period differs", reviews, nil, models.Options{}, "2024-06-17", false},
		{"order matters", []models.RawReview{reviews[1], reviews[0]}, nil, models.Options{}, "2024-06-10", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := Key(tt.reviews, tt.versions, tt.opts, tt.period)
			require.NoError(t, err)
			if tt.same {
				assert.Equal(t, base, key)
			} else {
				assert.NotEqual(t, base, key)
			}
		})
	}
}

func TestKey_InvalidOptions(t *testing.T) {
	_, err := Key(reviews, nil, models.Options{MaxBugs: -1}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidOptions))
}

func TestNoopProvider(t *testing.T) {
	var p Provider = NoopProvider{}
	ctx := context.Background()

	require.NoError(t, p.Set(ctx, "k", &models.AggregatedResult{}))
	_, err := p.Get(ctx, "k")
	assert.True(t, errors.Is(err, ErrCacheMiss))
	assert.NoError(t, p.Close())
}

func TestRedisProvider(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set, skipping Redis cache test")
	}
	ctx := context.Background()

	client, err := Connect(ctx, addr)
	require.NoError(t, err)
	p := NewRedisProvider(client, time.Minute)
	defer p.Close()

	key := uuid.NewString()
	_, err = p.Get(ctx, key)
	assert.True(t, errors.Is(err, ErrCacheMiss))

	want := &models.AggregatedResult{Summary: models.Summary{TotalReviews: 2, AverageRating: 2.5}}
	require.NoError(t, p.Set(ctx, key, want))

	got, err := p.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Summary.TotalReviews)
	assert.InDelta(t, 2.5, got.Summary.AverageRating, 1e-9)

	ttl, err := client.TTL(ctx, keyPrefix+key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Connect(ctx, "127.0.0.1:1")
	assert.Error(t, err)
}
