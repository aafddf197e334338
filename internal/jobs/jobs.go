// Package jobs models the lifecycle of an asynchronous analysis job.
package jobs

import (
	"errors"
	"fmt"
	"time"

	"github.com/zombar/reviewinsights/internal/models"
)

// Status is the state of a job
type Status string

// Job states, in lifecycle order
const (
	StatusPending     Status = "pending"
	StatusFetching    Status = "fetching"
	StatusAnalyzing   Status = "analyzing"
	StatusClassifying Status = "classifying"
	StatusAggregating Status = "aggregating"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// ErrInvalidTransition is returned when a job would move backwards or leave a terminal state
var ErrInvalidTransition = errors.New("invalid job transition")

var stageOrder = map[Status]int{
	StatusPending:     0,
	StatusFetching:    1,
	StatusAnalyzing:   2,
	StatusClassifying: 3,
	StatusAggregating: 4,
	StatusCompleted:   5,
}

var stageProgress = map[Status]int{
	StatusPending:     0,
	StatusFetching:    10,
	StatusAnalyzing:   40,
	StatusClassifying: 70,
	StatusAggregating: 90,
	StatusCompleted:   100,
}

// ParseStatus validates a stored status string
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := stageOrder[st]; ok || st == StatusFailed {
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// Terminal reports whether no further transition is possible
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Progress is the percentage shown to clients for a state. A failed job keeps
// the progress it had reached, so it reports -1 here.
func (s Status) Progress() int {
	if p, ok := stageProgress[s]; ok {
		return p
	}
	return -1
}

// Before reports whether s is an earlier stage than o. Failed is never before
// or after anything.
func (s Status) Before(o Status) bool {
	si, okS := stageOrder[s]
	oi, okO := stageOrder[o]
	return okS && okO && si < oi
}

// Transition checks a move from one state to another. Stages only move
// forward (skipping is allowed); failed is reachable from any non-terminal state.
func Transition(from, to Status) error {
	if from.Terminal() {
		return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, from)
	}
	if to == StatusFailed {
		return nil
	}
	fromIdx, okFrom := stageOrder[from]
	toIdx, okTo := stageOrder[to]
	if !okFrom || !okTo || toIdx <= fromIdx {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Job is an asynchronous analysis request and its outcome
type Job struct {
	ID            string                   `json:"job_id"`
	TaskID        string                   `json:"task_id,omitempty"`
	Status        Status                   `json:"status"`
	Progress      int                      `json:"progress"`
	Error         string                   `json:"error,omitempty"`
	ReviewCount   int                      `json:"review_count"`
	KnownVersions []string                 `json:"known_versions,omitempty"`
	Options       models.Options           `json:"options"`
	CacheKey      string                   `json:"cache_key,omitempty"`
	Narrative     string                   `json:"narrative,omitempty"`
	Result        *models.AggregatedResult `json:"result,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
	CompletedAt   *time.Time               `json:"completed_at,omitempty"`
}

// Advance moves the job to a new state and stamps it. Failing keeps the
// progress reached so far and records reason.
func (j *Job) Advance(to Status, now time.Time, reason string) error {
	if err := Transition(j.Status, to); err != nil {
		return err
	}
	j.Status = to
	j.UpdatedAt = now
	if to == StatusFailed {
		j.Error = reason
	} else {
		j.Progress = to.Progress()
	}
	if to.Terminal() {
		completed := now
		j.CompletedAt = &completed
	}
	return nil
}
