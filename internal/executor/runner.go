package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/ralph/internal/models"
	"github.com/harrison/ralph/internal/queue"
)

// RunStore is the store surface the run loop needs.
type RunStore interface {
	TaskStore
	Load() ([]models.Task, error)
	LoadResults() ([]models.TaskResult, error)
	RequeueStale() ([]string, error)
	Tasks() []models.Task
	Results() []models.TaskResult
	FindByID(id string) (*models.Task, bool)
	Statistics() models.Statistics
}

// TaskExecutor runs one in_progress task to a terminal status.
type TaskExecutor interface {
	Execute(ctx context.Context, task models.Task) (models.TaskStatus, error)
	SetRunID(id string)
}

// Runner walks the pending queue once, one task at a time.
type Runner struct {
	store   RunStore
	machine TaskExecutor
	cfg     models.RunConfig
	logger  Logger
	clock   func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	newID   func() string
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithDelaySleep replaces the inter-task wait.
func WithDelaySleep(fn func(ctx context.Context, d time.Duration) error) RunnerOption {
	return func(r *Runner) { r.sleep = fn }
}

// WithRunIDFunc replaces the run id generator.
func WithRunIDFunc(fn func() string) RunnerOption {
	return func(r *Runner) { r.newID = fn }
}

// NewRunner creates a Runner. The logger parameter is optional and can be nil.
func NewRunner(store RunStore, machine TaskExecutor, cfg models.RunConfig, logger Logger, opts ...RunnerOption) *Runner {
	if store == nil {
		panic("task store cannot be nil")
	}
	if machine == nil {
		panic("task executor cannot be nil")
	}
	if logger == nil {
		logger = NoOpLogger{}
	}
	r := &Runner{
		store:   store,
		machine: machine,
		cfg:     cfg,
		logger:  logger,
		clock:   time.Now,
		sleep:   Sleep,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run loads the backlog and executes pending tasks in queue order until the
// queue is exhausted, the iteration cap is hit, the operator aborts, or ctx
// is cancelled.
//
// Load failures return a nil summary. An abort is reported through the
// summary state with a nil error. Cancellation returns the summary together
// with ctx.Err().
func (r *Runner) Run(ctx context.Context) (*models.RunSummary, error) {
	start := r.clock()
	summary := &models.RunSummary{
		RunID: r.newID(),
		State: models.RunNotStarted,
	}
	r.machine.SetRunID(summary.RunID)

	tasks, err := r.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	if _, err := r.store.LoadResults(); err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}

	requeued, err := r.store.RequeueStale()
	if err != nil {
		return nil, err
	}
	if len(requeued) > 0 {
		r.logger.Warnf("Requeued %d task(s) left in progress by an earlier run: %v", len(requeued), requeued)
		tasks = r.store.Tasks()
	}
	summary.Requeued = requeued

	pending := queue.PendingInOrder(tasks)
	summary.Pending = len(pending)
	summary.State = models.RunRunning
	r.logger.LogRunStart(summary.RunID, r.cfg, len(pending))

	var attempted []models.Task
	state, runErr := r.loop(ctx, pending, &attempted)

	summary.State = state
	summary.Attempted = len(attempted)
	summary.Stats = r.store.Statistics()
	summary.Failures = r.failures(attempted)
	summary.Duration = r.clock().Sub(start)

	r.logger.LogRunSummary(*summary)
	return summary, runErr
}

func (r *Runner) loop(ctx context.Context, pending []models.Task, attempted *[]models.Task) (models.RunState, error) {
	for i, task := range pending {
		if len(*attempted) >= r.cfg.MaxIterations {
			r.logger.Infof("Reached max iterations (%d)", r.cfg.MaxIterations)
			return models.RunMaxIterationsReached, nil
		}
		if ctx.Err() != nil {
			return models.RunInterrupted, ctx.Err()
		}

		if err := r.store.UpdateStatus(task.ID, models.StatusInProgress); err != nil {
			return models.RunInterrupted, NewTaskError(task.ID, "failed to mark in progress", err)
		}
		task.Status = models.StatusInProgress
		r.logger.LogTaskStart(task, i+1, len(pending))

		_, err := r.machine.Execute(ctx, task)
		*attempted = append(*attempted, task)
		if err != nil {
			switch {
			case IsAborted(err):
				r.logger.Warnf("Run aborted by operator after task %s", task.ID)
				return models.RunAbortedByUser, nil
			case ctx.Err() != nil:
				r.logger.Warnf("Interrupted while running task %s; it stays in progress", task.ID)
				return models.RunInterrupted, ctx.Err()
			default:
				return models.RunInterrupted, err
			}
		}

		more := i+1 < len(pending) && len(*attempted) < r.cfg.MaxIterations
		if more && r.cfg.Delay > 0 {
			if err := r.sleep(ctx, r.cfg.Delay); err != nil {
				return models.RunInterrupted, err
			}
		}
	}
	return models.RunCompleted, nil
}

// failures lists attempted tasks that did not complete, with the error text
// of their latest result.
func (r *Runner) failures(attempted []models.Task) []models.FailureDetail {
	latest := models.LatestByTask(r.store.Results())
	var out []models.FailureDetail
	for _, t := range attempted {
		current, ok := r.store.FindByID(t.ID)
		if !ok || current.Status == models.StatusCompleted {
			continue
		}
		detail := models.FailureDetail{
			TaskID: t.ID,
			Title:  t.Title,
			Status: current.Status,
		}
		if res, ok := latest[t.ID]; ok && current.Status != models.StatusInProgress {
			detail.Error = res.ErrorText()
		}
		out = append(out, detail)
	}
	return out
}
