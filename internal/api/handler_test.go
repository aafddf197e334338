package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/reviewinsights/internal/cache"
	"github.com/zombar/reviewinsights/internal/database"
	"github.com/zombar/reviewinsights/internal/jobs"
	"github.com/zombar/reviewinsights/internal/models"
	"github.com/zombar/reviewinsights/internal/service"
)

var testNow = time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)

// mockQueueClient records enqueued jobs instead of talking to Redis
type mockQueueClient struct {
	mu      sync.Mutex
	analyze []string
}

func (m *mockQueueClient) EnqueueAnalyzeReviews(_ context.Context, jobID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyze = append(m.analyze, jobID)
	return "mock-task-id", nil
}

func (m *mockQueueClient) EnqueueNarrate(_ context.Context, jobID string) (string, error) {
	return jobID + "-narrate", nil
}

type mapCache struct {
	mu    sync.Mutex
	items map[string]*models.AggregatedResult
}

func (c *mapCache) Get(_ context.Context, key string) (*models.AggregatedResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.items[key]; ok {
		return r, nil
	}
	return nil, cache.ErrCacheMiss
}

func (c *mapCache) Set(_ context.Context, key string, r *models.AggregatedResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = r
	return nil
}

func (c *mapCache) Close() error { return nil }

type testEnv struct {
	handler *Handler
	service *service.Service
	db      *database.DB
	queue   *mockQueueClient
}

func setupTestHandler(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	q := &mockQueueClient{}
	svc := service.New(nil, service.Config{
		Store:    db,
		Cache:    &mapCache{items: map[string]*models.AggregatedResult{}},
		Enqueuer: q,
		Now:      func() time.Time { return testNow },
	})

	return &testEnv{
		handler: newHandler(svc, prometheus.NewRegistry(), nil),
		service: svc,
		db:      db,
		queue:   q,
	}
}

func (e *testEnv) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func sampleReviews() []models.RawReview {
	return []models.RawReview{
		{ID: "r1", Content: "Please add a dark mode option.", Score: 4, Date: "2024-06-10"},
		{ID: "r2", Content: "Please add a dark mode option!", Score: 5, Date: "2024-06-11"},
		{ID: "r3", Content: "It crashes when I open the camera", Score: 1, Date: "2024-06-11"},
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := setupTestHandler(t)

	w := env.do(t, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "ok", response["status"])
	assert.Equal(t, true, response["async"])
}

func TestAnalyzeEndpoint_Sync(t *testing.T) {
	env := setupTestHandler(t)
	body := map[string]interface{}{"reviews": sampleReviews()}

	w := env.do(t, http.MethodPost, "/api/analyze", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "miss", w.Header().Get("X-Cache"))

	var result models.AggregatedResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	assert.Equal(t, 3, result.Summary.TotalReviews)
	assert.Len(t, result.Comments, 3)
	require.NotEmpty(t, result.TopFeatures)
	assert.Equal(t, "a dark mode option", result.TopFeatures[0].Name)

	w = env.do(t, http.MethodPost, "/api/analyze", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hit", w.Header().Get("X-Cache"))
}

func TestAnalyzeEndpoint_Errors(t *testing.T) {
	env := setupTestHandler(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{"reviews": [`, http.StatusBadRequest},
		{"invalid threshold", `{"reviews": [], "options": {"cluster_threshold": 2}}`, http.StatusBadRequest},
		{"invalid async options", `{"async": true, "options": {"max_clusters": -1}}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			env.handler.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			var response map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.NotEmpty(t, response["error"])
		})
	}
}

func TestAnalyzeEndpoint_AsyncLifecycle(t *testing.T) {
	env := setupTestHandler(t)

	w := env.do(t, http.MethodPost, "/api/analyze", map[string]interface{}{
		"reviews": sampleReviews(),
		"async":   true,
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var accepted map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&accepted))
	jobID := accepted["job_id"]
	require.NotEmpty(t, jobID)
	assert.Equal(t, "mock-task-id", accepted["task_id"])
	assert.Equal(t, string(jobs.StatusPending), accepted["status"])
	assert.Equal(t, []string{jobID}, env.queue.analyze)

	w = env.do(t, http.MethodGet, "/api/jobs/"+jobID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pending jobs.Job
	require.NoError(t, json.NewDecoder(w.Body).Decode(&pending))
	assert.Equal(t, jobs.StatusPending, pending.Status)
	assert.Equal(t, 0, pending.Progress)
	assert.Nil(t, pending.Result)

	w = env.do(t, http.MethodGet, "/api/jobs/"+jobID+"/export", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	require.NoError(t, env.service.ProcessJob(context.Background(), jobID))

	w = env.do(t, http.MethodGet, "/api/jobs/"+jobID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var done jobs.Job
	require.NoError(t, json.NewDecoder(w.Body).Decode(&done))
	assert.Equal(t, jobs.StatusCompleted, done.Status)
	assert.Equal(t, 100, done.Progress)
	require.NotNil(t, done.Result)
	assert.Equal(t, 3, done.Result.Summary.TotalReviews)

	w = env.do(t, http.MethodGet, "/api/jobs/"+jobID+"/export?format=csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "reviews-"+jobID+".csv")
	assert.Len(t, strings.Split(w.Body.String(), "\n"), 4)

	w = env.do(t, http.MethodGet, "/api/jobs/"+jobID+"/export?format=json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.True(t, json.Valid(w.Body.Bytes()))

	w = env.do(t, http.MethodGet, "/api/jobs/"+jobID+"/export?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobEndpoint_NotFound(t *testing.T) {
	env := setupTestHandler(t)

	w := env.do(t, http.MethodGet, "/api/jobs/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/jobs/missing/export", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalyzeEndpoint_AsyncUnavailable(t *testing.T) {
	svc := service.New(nil, service.Config{Now: func() time.Time { return testNow }})
	h := newHandler(svc, prometheus.NewRegistry(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze",
		strings.NewReader(`{"reviews": [{"content": "great"}], "async": true}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/jobs/abc", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSchemaEndpoint(t *testing.T) {
	env := setupTestHandler(t)

	w := env.do(t, http.MethodGet, "/api/schema", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/schema+json", w.Header().Get("Content-Type"))

	var schema map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&schema))
	props, ok := schema["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, props, "summary")
	assert.Contains(t, props, "insights")
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "reviewinsights_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	h := newHandler(service.New(nil, service.Config{}), reg, nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "reviewinsights_test_total 1")
}

func TestCORSPreflight(t *testing.T) {
	env := setupTestHandler(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{models.ErrInvalidOptions, http.StatusBadRequest},
		{service.ErrUnsupportedFormat, http.StatusBadRequest},
		{database.ErrNotFound, http.StatusNotFound},
		{service.ErrJobNotReady, http.StatusConflict},
		{service.ErrAsyncUnavailable, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, statusFor(tt.err), tt.err.Error())
	}
}
