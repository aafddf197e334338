package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zombar/reviewinsights/internal/jobs"
	"github.com/zombar/reviewinsights/internal/models"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const jobColumns = `id, task_id, status, progress, error, review_count, known_versions, options,
	cache_key, narrative, result, created_at, updated_at, completed_at`

// CreateJob saves a new job together with the reviews it will analyze
func (db *DB) CreateJob(ctx context.Context, job *jobs.Job, reviews []models.RawReview) error {
	versionsJSON, err := json.Marshal(nonNil(job.KnownVersions))
	if err != nil {
		return fmt.Errorf("failed to marshal known versions: %w", err)
	}
	optionsJSON, err := json.Marshal(job.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}
	reviewsJSON, err := json.Marshal(reviews)
	if err != nil {
		return fmt.Errorf("failed to marshal reviews: %w", err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO jobs (id, task_id, status, progress, error, review_count, known_versions, options,
			cache_key, narrative, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.TaskID, string(job.Status), job.Progress, job.Error, job.ReviewCount,
		string(versionsJSON), string(optionsJSON), job.CacheKey, job.Narrative,
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO job_reviews (job_id, reviews) VALUES (?, ?)`,
		job.ID, string(reviewsJSON))
	if err != nil {
		return fmt.Errorf("failed to insert job reviews: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateJob persists the mutable fields of a job
func (db *DB) UpdateJob(ctx context.Context, job *jobs.Job) error {
	var resultJSON sql.NullString
	if job.Result != nil {
		data, err := json.Marshal(job.Result)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		resultJSON = sql.NullString{String: string(data), Valid: true}
	}

	var completedAt sql.NullString
	if job.CompletedAt != nil {
		completedAt = sql.NullString{String: formatTime(*job.CompletedAt), Valid: true}
	}

	res, err := db.conn.ExecContext(ctx, `
		UPDATE jobs
		SET task_id = ?, status = ?, progress = ?, error = ?, narrative = ?, result = ?,
			updated_at = ?, completed_at = ?
		WHERE id = ?
	`, job.TaskID, string(job.Status), job.Progress, job.Error, job.Narrative, resultJSON,
		formatTime(job.UpdatedAt), completedAt, job.ID)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("job %s: %w", job.ID, ErrNotFound)
	}
	return nil
}

// GetJob retrieves a job by ID
func (db *DB) GetJob(ctx context.Context, id string) (*jobs.Job, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// GetJobReviews retrieves the reviews submitted with a job
func (db *DB) GetJobReviews(ctx context.Context, id string) ([]models.RawReview, error) {
	var reviewsJSON string
	err := db.conn.QueryRowContext(ctx, `SELECT reviews FROM job_reviews WHERE job_id = ?`, id).Scan(&reviewsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reviews for job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job reviews: %w", err)
	}

	var reviews []models.RawReview
	if err := json.Unmarshal([]byte(reviewsJSON), &reviews); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reviews: %w", err)
	}
	return reviews, nil
}

// ListJobs retrieves jobs newest first with pagination
func (db *DB) ListJobs(ctx context.Context, limit, offset int) ([]*jobs.Job, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var list []*jobs.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		list = append(list, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return list, nil
}

// DeleteJob deletes a job and its reviews
func (db *DB) DeleteJob(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, "DELETE FROM jobs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return nil
}

// CountJobsByStatus returns how many jobs sit in each status
func (db *DB) CountJobsByStatus(ctx context.Context) (map[jobs.Status]int, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[jobs.Status]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		counts[jobs.Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return counts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*jobs.Job, error) {
	var (
		job          jobs.Job
		status       string
		versionsJSON string
		optionsJSON  string
		resultJSON   sql.NullString
		createdAt    string
		updatedAt    string
		completedAt  sql.NullString
	)

	err := s.Scan(&job.ID, &job.TaskID, &status, &job.Progress, &job.Error, &job.ReviewCount,
		&versionsJSON, &optionsJSON, &job.CacheKey, &job.Narrative, &resultJSON,
		&createdAt, &updatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if job.Status, err = jobs.ParseStatus(status); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(versionsJSON), &job.KnownVersions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal known versions: %w", err)
	}
	if err := json.Unmarshal([]byte(optionsJSON), &job.Options); err != nil {
		return nil, fmt.Errorf("failed to unmarshal options: %w", err)
	}
	if resultJSON.Valid {
		var result models.AggregatedResult
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
		job.Result = &result
	}

	if job.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if job.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	if completedAt.Valid {
		t, err := time.Parse(timeLayout, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse completed_at: %w", err)
		}
		job.CompletedAt = &t
	}

	return &job, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
