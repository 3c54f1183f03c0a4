package executor

import (
	"context"
	"time"

	"github.com/harrison/ralph/internal/claude"
	"github.com/harrison/ralph/internal/models"
)

// TaskStore is the part of the store the executor mutates. Every call
// persists before returning.
type TaskStore interface {
	UpdateStatus(id string, status models.TaskStatus) error
	AddResult(result models.TaskResult) error
}

// Decision is the operator's answer after a failure under the pause policy.
type Decision int

// Operator decisions.
const (
	DecisionRetry Decision = iota
	DecisionSkip
	DecisionAbort
)

func (d Decision) String() string {
	switch d {
	case DecisionRetry:
		return "retry"
	case DecisionSkip:
		return "skip"
	case DecisionAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// Decider asks the operator what to do with a failed task. retries is the
// number of retries already consumed for this task.
type Decider interface {
	Decide(ctx context.Context, task models.Task, outcome claude.Outcome, retries int) (Decision, error)
}

// DeciderFunc adapts a function to the Decider interface.
type DeciderFunc func(ctx context.Context, task models.Task, outcome claude.Outcome, retries int) (Decision, error)

// Decide calls f.
func (f DeciderFunc) Decide(ctx context.Context, task models.Task, outcome claude.Outcome, retries int) (Decision, error) {
	return f(ctx, task, outcome, retries)
}

// Attempt is one invocation of the external tool. Unlike TaskResult, an
// Attempt exists for every retry.
type Attempt struct {
	RunID      string
	TaskID     string
	TaskTitle  string
	WorkingDir string
	Number     int // 1-based
	Success    bool
	Output     string
	Error      string
	Duration   time.Duration
	ExecutedAt time.Time
}

// AttemptRecorder receives every attempt. Recording failures are logged and
// never change the task's outcome.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, attempt Attempt) error
}

// Machine drives a single task through invocation and the error policy.
type Machine struct {
	store    TaskStore
	port     claude.Port
	cfg      models.RunConfig
	decider  Decider
	recorder AttemptRecorder
	logger   Logger
	runID    string
	clock    func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// MachineOption configures optional Machine collaborators.
type MachineOption func(*Machine)

// WithDecider sets the operator prompt used by the pause policy.
func WithDecider(d Decider) MachineOption {
	return func(m *Machine) { m.decider = d }
}

// WithRecorder sets the attempt history sink.
func WithRecorder(r AttemptRecorder) MachineOption {
	return func(m *Machine) { m.recorder = r }
}

// WithLogger sets the logger for attempt and retry events.
func WithLogger(l Logger) MachineOption {
	return func(m *Machine) { m.logger = l }
}

// WithRunID stamps recorded attempts with a run id.
func WithRunID(id string) MachineOption {
	return func(m *Machine) { m.runID = id }
}

// WithSleep replaces the backoff wait. Tests use it to skip real delays.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) MachineOption {
	return func(m *Machine) { m.sleep = fn }
}

// WithClock replaces time.Now for result timestamps.
func WithClock(fn func() time.Time) MachineOption {
	return func(m *Machine) { m.clock = fn }
}

// NewMachine creates a Machine. store and port are required.
func NewMachine(store TaskStore, port claude.Port, cfg models.RunConfig, opts ...MachineOption) *Machine {
	if store == nil {
		panic("task store cannot be nil")
	}
	if port == nil {
		panic("invocation port cannot be nil")
	}
	m := &Machine{
		store: store,
		port:  port,
		cfg:   cfg,
		clock: time.Now,
		sleep: Sleep,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = NoOpLogger{}
	}
	return m
}

// SetRunID changes the run id used for subsequent attempts.
func (m *Machine) SetRunID(id string) {
	m.runID = id
}

// Execute runs task until it reaches a terminal status and returns that
// status. The caller must already have moved the task to in_progress.
//
// The returned error is ErrAborted after an abort decision (the task is
// failed and its result recorded), ctx.Err() after an interrupt (the task
// stays in_progress with no result), or a store error.
func (m *Machine) Execute(ctx context.Context, task models.Task) (models.TaskStatus, error) {
	req := claude.Request{
		Prompt:          claude.BuildPrompt(task),
		Timeout:         m.cfg.Timeout,
		SkipPermissions: m.cfg.SkipPermissions,
		WorkingDir:      m.cfg.WorkingDir,
	}

	retries := 0
	for attempt := 1; ; attempt++ {
		startedAt := m.clock()
		outcome := m.port.Invoke(ctx, req)
		m.record(ctx, task, attempt, startedAt, outcome)

		if ctx.Err() != nil {
			return models.StatusInProgress, ctx.Err()
		}

		if outcome.Success {
			return m.finish(task, models.StatusCompleted, outcome, retries)
		}

		switch m.cfg.OnError {
		case models.PolicyRetry:
			if retries >= m.cfg.MaxRetries {
				return m.finish(task, models.StatusFailed, outcome, retries)
			}
			retries++
			m.logger.LogTaskRetry(task, retries, m.cfg.MaxRetries, outcome.ErrorText())
			if err := m.sleep(ctx, m.cfg.RetryBackoff); err != nil {
				return models.StatusInProgress, err
			}

		case models.PolicyPause:
			decision, err := m.decide(ctx, task, outcome, retries)
			if err != nil {
				if ctx.Err() != nil {
					return models.StatusInProgress, ctx.Err()
				}
				return models.StatusInProgress, NewTaskError(task.ID, "operator decision failed", err)
			}
			switch decision {
			case DecisionRetry:
				retries++
				m.logger.LogTaskRetry(task, retries, 0, outcome.ErrorText())
			case DecisionSkip:
				return m.finish(task, models.StatusSkipped, outcome, retries)
			default:
				status, err := m.finish(task, models.StatusFailed, outcome, retries)
				if err != nil {
					return status, err
				}
				return status, ErrAborted
			}

		default:
			return m.finish(task, models.StatusFailed, outcome, retries)
		}
	}
}

func (m *Machine) decide(ctx context.Context, task models.Task, outcome claude.Outcome, retries int) (Decision, error) {
	if m.decider == nil {
		m.logger.Warnf("No operator available to decide on task %s, aborting run", task.ID)
		return DecisionAbort, nil
	}
	return m.decider.Decide(ctx, task, outcome, retries)
}

// finish persists the terminal status, then the single result for this pass.
func (m *Machine) finish(task models.Task, status models.TaskStatus, outcome claude.Outcome, retries int) (models.TaskStatus, error) {
	result := models.TaskResult{
		TaskID:     task.ID,
		Success:    outcome.Success,
		Output:     outcome.Output,
		Error:      outcome.Error,
		Duration:   outcome.Duration.Seconds(),
		RetryCount: retries,
		ExecutedAt: m.clock(),
	}
	if result.Duration < 0 {
		result.Duration = 0
	}

	if err := m.store.UpdateStatus(task.ID, status); err != nil {
		return models.StatusInProgress, NewTaskError(task.ID, "failed to persist status", err)
	}
	if err := m.store.AddResult(result); err != nil {
		return status, NewTaskError(task.ID, "failed to persist result", err)
	}

	m.logger.LogTaskResult(task, status, result)
	return status, nil
}

func (m *Machine) record(ctx context.Context, task models.Task, number int, startedAt time.Time, outcome claude.Outcome) {
	if m.recorder == nil {
		return
	}
	attempt := Attempt{
		RunID:      m.runID,
		TaskID:     task.ID,
		TaskTitle:  task.Title,
		WorkingDir: m.cfg.WorkingDir,
		Number:     number,
		Success:    outcome.Success,
		Output:     outcome.Output,
		Error:      outcome.ErrorText(),
		Duration:   outcome.Duration,
		ExecutedAt: startedAt,
	}
	// An interrupted attempt is still worth keeping in history.
	if err := m.recorder.RecordAttempt(context.WithoutCancel(ctx), attempt); err != nil {
		GracefulWarn(m.logger, "Failed to record attempt %d of task %s: %v", number, task.ID, err)
	}
}

// Sleep waits for d or until ctx is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
