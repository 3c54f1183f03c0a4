package executor

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrAborted is returned when the operator chose to abort the run after a
// failure. The run stops before any further task is attempted.
var ErrAborted = errors.New("run aborted by operator")

// TaskError reports a failure to drive a task, as opposed to a failed
// invocation, which is recorded as the task's result.
type TaskError struct {
	TaskID    string    // ID of the task being executed
	Message   string    // Human-readable error message
	Err       error     // Underlying error (optional)
	Timestamp time.Time // When the error occurred
}

// NewTaskError creates a new TaskError with the current timestamp.
func NewTaskError(id, msg string, err error) *TaskError {
	return &TaskError{
		TaskID:    id,
		Message:   msg,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface for TaskError.
func (e *TaskError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("task %s: %s", e.TaskID, e.Message))
	if e.Err != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Err))
	}
	return sb.String()
}

// Unwrap returns the underlying error for error wrapping support.
func (e *TaskError) Unwrap() error {
	return e.Err
}

// IsAborted reports whether err ends a run on the operator's request.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}
