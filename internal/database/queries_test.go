package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/reviewinsights/internal/jobs"
	"github.com/zombar/reviewinsights/internal/models"
)

var created = time.Date(2024, 6, 12, 9, 30, 0, 0, time.UTC)

func createTestJob(id string) *jobs.Job {
	return &jobs.Job{
		ID:            id,
		Status:        jobs.StatusPending,
		ReviewCount:   2,
		KnownVersions: []string{"3.1.0", "3.2.0"},
		Options:       models.DefaultOptions(),
		CacheKey:      "abc123",
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func testReviews() []models.RawReview {
	return []models.RawReview{
		{ID: "r1", UserName: "Ann", Content: "Please add a dark mode option.", Score: 4, Date: "2024-06-10"},
		{ID: "r2", Content: "Crashes on launch", Score: 1},
	}
}

func TestCreateAndGetJob(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateJob(ctx, createTestJob("job-1"), testReviews()))

	got, err := db.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusPending, got.Status)
	assert.Equal(t, 2, got.ReviewCount)
	assert.Equal(t, []string{"3.1.0", "3.2.0"}, got.KnownVersions)
	assert.Equal(t, models.DefaultOptions(), got.Options)
	assert.Equal(t, "abc123", got.CacheKey)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.Nil(t, got.Result)
	assert.Nil(t, got.CompletedAt)

	reviews, err := db.GetJobReviews(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, testReviews(), reviews)
}

func TestCreateJob_DuplicateID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateJob(ctx, createTestJob("dup"), nil))
	assert.Error(t, db.CreateJob(ctx, createTestJob("dup"), nil))
}

func TestUpdateJob(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	job := createTestJob("job-2")
	require.NoError(t, db.CreateJob(ctx, job, testReviews()))

	done := created.Add(time.Minute)
	require.NoError(t, job.Advance(jobs.StatusAnalyzing, created.Add(time.Second), ""))
	require.NoError(t, job.Advance(jobs.StatusCompleted, done, ""))
	job.TaskID = "task-9"
	job.Narrative = "Users want dark mode."
	job.Result = &models.AggregatedResult{
		Summary: models.Summary{TotalReviews: 2, AverageRating: 2.5},
		Options: models.DefaultOptions(),
	}
	require.NoError(t, db.UpdateJob(ctx, job))

	got, err := db.GetJob(ctx, "job-2")
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, "task-9", got.TaskID)
	assert.Equal(t, "Users want dark mode.", got.Narrative)
	require.NotNil(t, got.Result)
	assert.Equal(t, 2, got.Result.Summary.TotalReviews)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, done.Equal(*got.CompletedAt))
}

func TestUpdateJob_FailedKeepsError(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	job := createTestJob("job-3")
	require.NoError(t, db.CreateJob(ctx, job, nil))
	require.NoError(t, job.Advance(jobs.StatusClassifying, created, ""))
	require.NoError(t, job.Advance(jobs.StatusFailed, created, "boom"))
	require.NoError(t, db.UpdateJob(ctx, job))

	got, err := db.GetJob(ctx, "job-3")
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
	assert.Equal(t, 70, got.Progress)
}

func TestNotFound(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"get", func() error { _, err := db.GetJob(ctx, "missing"); return err }},
		{"reviews", func() error { _, err := db.GetJobReviews(ctx, "missing"); return err }},
		{"update", func() error { return db.UpdateJob(ctx, createTestJob("missing")) }},
		{"delete", func() error { return db.DeleteJob(ctx, "missing") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestDeleteJob_CascadesReviews(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateJob(ctx, createTestJob("job-4"), testReviews()))
	require.NoError(t, db.DeleteJob(ctx, "job-4"))

	_, err := db.GetJobReviews(ctx, "job-4")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListJobsAndCounts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		job := createTestJob(id)
		job.CreatedAt = created.Add(time.Duration(i) * time.Hour)
		job.UpdatedAt = job.CreatedAt
		require.NoError(t, db.CreateJob(ctx, job, nil))
	}
	failed := createTestJob("d")
	failed.CreatedAt = created.Add(-time.Hour)
	failed.UpdatedAt = failed.CreatedAt
	require.NoError(t, db.CreateJob(ctx, failed, nil))
	require.NoError(t, failed.Advance(jobs.StatusFailed, created, "nope"))
	require.NoError(t, db.UpdateJob(ctx, failed))

	list, err := db.ListJobs(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "b", list[1].ID)

	rest, err := db.ListJobs(ctx, 10, 2)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, "d", rest[1].ID)

	counts, err := db.CountJobsByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[jobs.Status]int{jobs.StatusPending: 3, jobs.StatusFailed: 1}, counts)
}
