package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus int

// Task status values. StatusTodo is the only initial state.
const (
	StatusTodo TaskStatus = iota
	StatusInProgress
	StatusCompleted
	StatusFailed
	StatusSkipped
)

var statusTokens = map[TaskStatus]string{
	StatusTodo:       "todo",
	StatusInProgress: "in_progress",
	StatusCompleted:  "completed",
	StatusFailed:     "failed",
	StatusSkipped:    "skipped",
}

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []TaskStatus{StatusTodo, StatusInProgress, StatusCompleted, StatusFailed, StatusSkipped}

// ErrUnknownStatus is returned when a status token is not recognised.
var ErrUnknownStatus = errors.New("unknown task status")

// String returns the canonical lowercase token for the status.
func (s TaskStatus) String() string {
	if tok, ok := statusTokens[s]; ok {
		return tok
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ParseTaskStatus converts a canonical token into a TaskStatus. Only the
// exact lowercase tokens are accepted.
func ParseTaskStatus(token string) (TaskStatus, error) {
	for status, tok := range statusTokens {
		if tok == token {
			return status, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, token)
}

// MarshalText implements encoding.TextMarshaler.
func (s TaskStatus) MarshalText() ([]byte, error) {
	tok, ok := statusTokens[s]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStatus, int(s))
	}
	return []byte(tok), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *TaskStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseTaskStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// IsTerminal reports whether the status ends a task's run.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusSkipped
}

// Task is one unit of backlog work.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Status      TaskStatus `json:"status"`
	Description string     `json:"description"`
	Acceptance  string     `json:"acceptance"`
	Priority    int        `json:"priority"`
	Tags        []string   `json:"tags"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// Validate checks if the task has all required fields
func (t *Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("task id is required")
	}
	if strings.TrimSpace(t.Title) == "" {
		return errors.New("task title is required")
	}
	return nil
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	out := t
	if t.Tags != nil {
		out.Tags = append([]string(nil), t.Tags...)
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		out.CompletedAt = &ts
	}
	return out
}

// Statistics aggregates task counts by status.
type Statistics struct {
	Total      int `json:"total"`
	Todo       int `json:"todo"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// CountStatuses builds Statistics for a task collection.
func CountStatuses(tasks []Task) Statistics {
	stats := Statistics{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case StatusTodo:
			stats.Todo++
		case StatusInProgress:
			stats.InProgress++
		case StatusCompleted:
			stats.Completed++
		case StatusFailed:
			stats.Failed++
		case StatusSkipped:
			stats.Skipped++
		}
	}
	return stats
}

// Sum adds the per-status buckets.
func (s Statistics) Sum() int {
	return s.Todo + s.InProgress + s.Completed + s.Failed + s.Skipped
}
