package models

import "time"

// TaskResult is the recorded outcome of one task pass, after any retries.
type TaskResult struct {
	TaskID     string    `json:"task_id"`
	Success    bool      `json:"success"`
	Output     string    `json:"output"`
	Error      *string   `json:"error"`
	Duration   float64   `json:"duration"`    // seconds
	RetryCount int       `json:"retry_count"` // retries consumed before this result
	ExecutedAt time.Time `json:"executed_at"`
}

// ErrorText returns the error message or an empty string.
func (r TaskResult) ErrorText() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

// TotalDuration sums result durations.
func TotalDuration(results []TaskResult) time.Duration {
	var total float64
	for _, r := range results {
		total += r.Duration
	}
	return time.Duration(total * float64(time.Second))
}

// LatestByTask maps each task id to its most recent result.
func LatestByTask(results []TaskResult) map[string]TaskResult {
	latest := make(map[string]TaskResult, len(results))
	for _, r := range results {
		latest[r.TaskID] = r
	}
	return latest
}
