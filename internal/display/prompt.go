package display

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"github.com/harrison/ralph/internal/claude"
	"github.com/harrison/ralph/internal/executor"
	"github.com/harrison/ralph/internal/models"
)

// LineReader reads operator input one line at a time. *readline.Instance
// satisfies it.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
	Close() error
}

// terminalReader makes Close safe to call twice: ReadLine closes on cancel
// and the owner closes again on the way out.
type terminalReader struct {
	*readline.Instance
	once sync.Once
	err  error
}

func (r *terminalReader) Close() error {
	r.once.Do(func() { r.err = r.Instance.Close() })
	return r.err
}

// NewLineReader opens a readline session on the terminal. historyFile may be
// empty to disable persistent history.
func NewLineReader(prompt, historyFile string) (LineReader, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            prompt,
		HistoryFile:       historyFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		UniqueEditLine:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize readline: %w", err)
	}
	return &terminalReader{Instance: rl}, nil
}

// ReadLine reads one line, honouring ctx cancellation. Ctrl+C at the prompt
// is reported as readline.ErrInterrupt and Ctrl+D as io.EOF. A cancelled ctx
// closes r so the pending read cannot consume a later line; r is unusable
// afterwards.
func ReadLine(ctx context.Context, r LineReader) (string, error) {
	type lineResult struct {
		line string
		err  error
	}
	ch := make(chan lineResult, 1)
	go func() {
		line, err := r.Readline()
		ch <- lineResult{line, err}
	}()
	select {
	case <-ctx.Done():
		r.Close()
		return "", ctx.Err()
	case res := <-ch:
		return res.line, res.err
	}
}

// IsExit reports whether err means the operator closed the prompt.
func IsExit(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt)
}

// PauseDecider asks the operator to retry, skip or quit after a failed
// invocation. Closing the prompt counts as quit.
type PauseDecider struct {
	reader  LineReader
	printer *Printer
}

// NewPauseDecider creates a PauseDecider reading from reader and writing
// through printer.
func NewPauseDecider(reader LineReader, printer *Printer) *PauseDecider {
	return &PauseDecider{reader: reader, printer: printer}
}

// Decide implements executor.Decider.
func (d *PauseDecider) Decide(ctx context.Context, task models.Task, outcome claude.Outcome, retries int) (executor.Decision, error) {
	d.printer.TaskOutcome(false, outcome.Duration.Seconds(), outcome.ErrorText())
	d.printer.Output("output", outcome.Output, OutputLimit)
	d.printer.printf("Task %s has failed %d time(s).\n", task.ID, retries+1)
	d.reader.SetPrompt("[r]etry / [s]kip / [q]uit > ")

	for {
		line, err := ReadLine(ctx, d.reader)
		if err != nil {
			if IsExit(err) {
				return executor.DecisionAbort, nil
			}
			return executor.DecisionAbort, err
		}
		if decision, ok := ParseDecision(line); ok {
			return decision, nil
		}
		d.printer.Warnf("please answer r, s or q")
	}
}

// ParseDecision maps operator input to a Decision.
func ParseDecision(input string) (executor.Decision, bool) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "r", "retry":
		return executor.DecisionRetry, true
	case "s", "skip":
		return executor.DecisionSkip, true
	case "q", "quit", "abort", "exit":
		return executor.DecisionAbort, true
	default:
		return 0, false
	}
}

var _ executor.Decider = (*PauseDecider)(nil)
