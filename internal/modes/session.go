// Package modes drives the Claude CLI from operator input instead of a task
// file. Interactive mode runs each entered prompt once; continuous mode keeps
// re-running a prompt until the operator changes it or quits. Neither mode
// touches the task store.
package modes

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/harrison/ralph/internal/claude"
	"github.com/harrison/ralph/internal/display"
	"github.com/harrison/ralph/internal/executor"
	"github.com/harrison/ralph/internal/models"
)

const titleLimit = 50

// Summary totals one session.
type Summary struct {
	RunID       string
	Iterations  int
	Succeeded   int
	Failed      int
	Duration    time.Duration // summed invocation time
	Interrupted bool
}

// Option configures a session.
type Option func(*session)

// WithRecorder records every invocation in the attempt history.
func WithRecorder(r executor.AttemptRecorder) Option {
	return func(s *session) { s.recorder = r }
}

// WithLogger mirrors results to a logger.
func WithLogger(l executor.Logger) Option {
	return func(s *session) { s.logger = l }
}

// WithSleep replaces the delay between continuous iterations.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(s *session) { s.sleep = fn }
}

// WithRunID fixes the session id used in history.
func WithRunID(id string) Option {
	return func(s *session) { s.runID = id }
}

// session holds what both modes share.
type session struct {
	port      claude.Port
	cfg       models.RunConfig
	reader    display.LineReader
	printer   *display.Printer
	recorder  executor.AttemptRecorder
	logger    executor.Logger
	sleep     func(ctx context.Context, d time.Duration) error
	runID     string
	idPrefix  string
	outLimit  int
	iteration int
	results   []models.TaskResult
}

func newSession(port claude.Port, cfg models.RunConfig, reader display.LineReader, printer *display.Printer, prefix string, opts []Option) *session {
	s := &session{
		port:     port,
		cfg:      cfg,
		reader:   reader,
		printer:  printer,
		sleep:    executor.Sleep,
		idPrefix: prefix,
		outLimit: display.OutputLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = executor.NoOpLogger{}
	}
	if s.runID == "" {
		s.runID = uuid.NewString()
	}
	return s
}

// adHocTask wraps operator input in a throwaway task.
func (s *session) adHocTask(input string) models.Task {
	title := input
	if utf8.RuneCountInString(title) > titleLimit {
		title = string([]rune(title)[:titleLimit]) + "..."
	}
	return models.Task{
		ID:          fmt.Sprintf("%s%03d", s.idPrefix, s.iteration+1),
		Title:       title,
		Description: input,
		Status:      models.StatusInProgress,
		CreatedAt:   time.Now(),
	}
}

// execute runs one invocation. It returns ctx.Err() when the operator
// interrupted it, in which case no result is kept.
func (s *session) execute(ctx context.Context, input string) error {
	task := s.adHocTask(input)
	startedAt := time.Now()
	outcome := s.port.Invoke(ctx, claude.Request{
		Prompt:          claude.BuildPrompt(task),
		Timeout:         s.cfg.Timeout,
		SkipPermissions: s.cfg.SkipPermissions,
		WorkingDir:      s.cfg.WorkingDir,
	})
	s.record(ctx, task, startedAt, outcome)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	result := models.TaskResult{
		TaskID:     task.ID,
		Success:    outcome.Success,
		Output:     outcome.Output,
		Error:      outcome.Error,
		Duration:   outcome.Duration.Seconds(),
		ExecutedAt: startedAt,
	}
	s.results = append(s.results, result)
	s.iteration++

	status := models.StatusCompleted
	if !outcome.Success {
		status = models.StatusFailed
	}
	s.logger.LogTaskResult(task, status, result)

	s.printer.TaskOutcome(outcome.Success, result.Duration, outcome.ErrorText())
	s.printer.Output("Claude output", outcome.Output, s.outLimit)
	return nil
}

func (s *session) record(ctx context.Context, task models.Task, startedAt time.Time, outcome claude.Outcome) {
	if s.recorder == nil {
		return
	}
	attempt := executor.Attempt{
		RunID:      s.runID,
		TaskID:     task.ID,
		TaskTitle:  task.Title,
		WorkingDir: s.cfg.WorkingDir,
		Number:     1,
		Success:    outcome.Success,
		Output:     outcome.Output,
		Error:      outcome.ErrorText(),
		Duration:   outcome.Duration,
		ExecutedAt: startedAt,
	}
	if err := s.recorder.RecordAttempt(context.WithoutCancel(ctx), attempt); err != nil {
		executor.GracefulWarn(s.logger, "Failed to record %s: %v", task.ID, err)
	}
}

func (s *session) summary() Summary {
	sum := Summary{RunID: s.runID, Iterations: s.iteration}
	for _, r := range s.results {
		if r.Success {
			sum.Succeeded++
		} else {
			sum.Failed++
		}
	}
	sum.Duration = models.TotalDuration(s.results)
	return sum
}

func (s *session) interrupted() Summary {
	sum := s.summary()
	sum.Interrupted = true
	return sum
}

func (s *session) showSummary(title string, withCap bool) {
	sum := s.summary()
	fmt.Fprintf(s.printer.Writer(), "\n%s\n", title)
	if withCap {
		fmt.Fprintf(s.printer.Writer(), "  Iterations: %d/%d\n", sum.Iterations, s.cfg.MaxIterations)
	} else {
		fmt.Fprintf(s.printer.Writer(), "  Iterations: %d\n", sum.Iterations)
	}
	fmt.Fprintf(s.printer.Writer(), "  Succeeded:  %d\n", sum.Succeeded)
	fmt.Fprintf(s.printer.Writer(), "  Failed:     %d\n", sum.Failed)
	if len(s.results) > 0 {
		fmt.Fprintf(s.printer.Writer(), "  Total time: %.1fs\n", sum.Duration.Seconds())
	}
}

// readInput reads a trimmed line. exit is true when the operator closed the
// prompt.
func (s *session) readInput(ctx context.Context, prompt string) (line string, exit bool, err error) {
	s.reader.SetPrompt(prompt)
	line, err = display.ReadLine(ctx, s.reader)
	if err != nil {
		if display.IsExit(err) {
			return "", true, nil
		}
		return "", false, err
	}
	return strings.TrimSpace(line), false, nil
}

func isQuit(input string) bool {
	switch strings.ToLower(input) {
	case "quit", "exit", "q":
		return true
	}
	return false
}
