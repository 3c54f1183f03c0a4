package models

import "time"

// RunState is the lifecycle position of a run loop.
type RunState int

// Run states. Every state after RunRunning is terminal.
const (
	RunNotStarted RunState = iota
	RunRunning
	RunCompleted
	RunMaxIterationsReached
	RunAbortedByUser
	RunInterrupted
)

func (s RunState) String() string {
	switch s {
	case RunNotStarted:
		return "not_started"
	case RunRunning:
		return "running"
	case RunCompleted:
		return "completed"
	case RunMaxIterationsReached:
		return "max_iterations_reached"
	case RunAbortedByUser:
		return "aborted_by_user"
	case RunInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the run has stopped.
func (s RunState) IsTerminal() bool {
	return s >= RunCompleted
}

// FailureDetail explains why an attempted task did not complete.
type FailureDetail struct {
	TaskID string
	Title  string
	Status TaskStatus
	Error  string
}

// RunSummary describes a finished run.
type RunSummary struct {
	RunID     string
	State     RunState
	Attempted int // tasks handed to the state machine
	Pending   int // TODO tasks when the run started
	Requeued  []string
	Stats     Statistics // whole backlog after the run
	Duration  time.Duration
	Failures  []FailureDetail
}

// Succeeded reports whether every attempted task completed and the run was
// not cut short by the operator.
func (s RunSummary) Succeeded() bool {
	return len(s.Failures) == 0 && s.State != RunAbortedByUser && s.State != RunInterrupted
}
