package display

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chzyer/readline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/ralph/internal/claude"
	"github.com/harrison/ralph/internal/executor"
	"github.com/harrison/ralph/internal/history"
	"github.com/harrison/ralph/internal/models"
)

// scriptedReader replays lines, then returns its final error.
type scriptedReader struct {
	lines   []string
	err     error
	prompts []string
	closed  bool
}

func (r *scriptedReader) Readline() (string, error) {
	if len(r.lines) == 0 {
		if r.err == nil {
			return "", io.EOF
		}
		return "", r.err
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func (r *scriptedReader) SetPrompt(p string) { r.prompts = append(r.prompts, p) }

func (r *scriptedReader) Close() error { r.closed = true; return nil }

// blockingReader blocks in Readline until it is closed.
type blockingReader struct {
	release chan struct{}
	once    sync.Once
	reads   chan struct{}
}

func newBlockingReader() *blockingReader {
	return &blockingReader{release: make(chan struct{}), reads: make(chan struct{}, 1)}
}

func (r *blockingReader) Readline() (string, error) {
	<-r.release
	r.reads <- struct{}{}
	return "", io.EOF
}

func (r *blockingReader) SetPrompt(string) {}

func (r *blockingReader) Close() error {
	r.once.Do(func() { close(r.release) })
	return nil
}

func newPrinter() (*Printer, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	p := NewPrinter(buf)
	return p, buf
}

func strPtr(s string) *string { return &s }

func TestNewPrinter_NoColorForBuffers(t *testing.T) {
	p, _ := newPrinter()
	assert.False(t, p.color)
	assert.Equal(t, "x", p.paint("x"))
}

func TestPrinter_ColorForced(t *testing.T) {
	p, buf := newPrinter()
	p.SetColor(true)
	p.Successf("done")
	assert.Contains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), "done")
}

func TestBanner(t *testing.T) {
	p, buf := newPrinter()
	p.Banner("v0.1.0")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], "Ralph loop v0.1.0")
	assert.Contains(t, lines[2], "Claude Code task runner")
	assert.True(t, strings.HasSuffix(lines[1], "│"))
}

func TestTaskTable(t *testing.T) {
	p, buf := newPrinter()
	p.TaskTable([]models.Task{
		{ID: "001", Title: "Create calculator.py", Status: models.StatusCompleted, Priority: 10, Tags: []string{"core", "math"}},
		{ID: "002", Title: strings.Repeat("very long title ", 5), Status: models.StatusTodo},
	})

	out := buf.String()
	assert.Contains(t, out, "ID      Title")
	assert.Contains(t, out, "001     Create calculator.py")
	assert.Contains(t, out, "✓ completed")
	assert.Contains(t, out, "core, math")
	assert.Contains(t, out, "· todo")
	assert.Contains(t, out, "…", "long titles are truncated")

	p2, buf2 := newPrinter()
	p2.TaskTable(nil)
	assert.Contains(t, buf2.String(), "no tasks")
}

func TestSummaryTableAndStatistics(t *testing.T) {
	p, buf := newPrinter()
	tasks := []models.Task{
		{ID: "001", Title: "A", Status: models.StatusCompleted},
		{ID: "002", Title: "B", Status: models.StatusFailed},
		{ID: "003", Title: "C", Status: models.StatusTodo},
	}
	results := []models.TaskResult{
		{TaskID: "001", Success: true, Duration: 1.25},
		{TaskID: "002", Duration: 3, RetryCount: 2},
		{TaskID: "001", Success: true, Duration: 2.5, RetryCount: 1},
	}
	p.SummaryTable(tasks, results)
	p.Statistics(models.CountStatuses(tasks), models.TotalDuration(results).Seconds())

	out := buf.String()
	assert.Regexp(t, `001\s+A\s+✓ completed\s+2\.5s\s+1`, out, "latest result wins")
	assert.Regexp(t, `002\s+B\s+✗ failed\s+3\.0s\s+2`, out)
	assert.Regexp(t, `003\s+C\s+· todo\s+-\s+-`, out)
	assert.Contains(t, out, "Total: completed 1 | failed 1 | skipped 0 | elapsed 6.8s")
}

func TestStatusReport(t *testing.T) {
	p, buf := newPrinter()
	p.StatusReport(models.Statistics{Total: 5, Todo: 1, InProgress: 1, Completed: 1, Failed: 1, Skipped: 1})
	for _, want := range []string{"Total:       5", "In progress: 1", "Completed:   1", "Skipped:     1"} {
		assert.Contains(t, buf.String(), want)
	}
}

func TestRunOutcome(t *testing.T) {
	tests := []struct {
		name    string
		summary models.RunSummary
		want    string
	}{
		{"nothing pending", models.RunSummary{State: models.RunCompleted}, "no pending tasks"},
		{"all good", models.RunSummary{State: models.RunCompleted, Attempted: 2}, "2 task(s) completed"},
		{"with failures", models.RunSummary{State: models.RunCompleted, Attempted: 2,
			Failures: []models.FailureDetail{{TaskID: "002", Title: "B", Status: models.StatusFailed, Error: "boom"}}},
			"002 B (failed): boom"},
		{"cap", models.RunSummary{State: models.RunMaxIterationsReached, Attempted: 1, Stats: models.Statistics{Todo: 3}}, "3 still pending"},
		{"abort", models.RunSummary{State: models.RunAbortedByUser, Attempted: 1}, "aborted by operator"},
		{"interrupt", models.RunSummary{State: models.RunInterrupted}, "requeued next run"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, buf := newPrinter()
			p.RunOutcome(tt.summary)
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestOutputTruncates(t *testing.T) {
	p, buf := newPrinter()
	p.Output("Claude", strings.Repeat("x", 30), 10)
	assert.Contains(t, buf.String(), "xxxxxxxxxx...")
	assert.NotContains(t, buf.String(), strings.Repeat("x", 11))

	p2, buf2 := newPrinter()
	p2.Output("Claude", "\n", 10)
	assert.Empty(t, buf2.String())
}

func TestTaskOutcome(t *testing.T) {
	p, buf := newPrinter()
	p.TaskOutcome(true, 1.234, "")
	p.TaskOutcome(false, 0, "")
	assert.Contains(t, buf.String(), "✓ completed in 1.2s")
	assert.Contains(t, buf.String(), "✗ failed: unknown error")
}

func TestHistoryTables(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	p, buf := newPrinter()
	p.HistoryEntries([]history.Entry{{RunID: "abcdef12-3456", TaskID: "001", TaskTitle: "A", Attempt: 2, Success: false, Error: "timeout", Duration: 1500 * time.Millisecond, ExecutedAt: at}})
	p.HistoryStats([]history.TaskStats{{TaskID: "001", TaskTitle: "A", Attempts: 4, Successes: 3, Failures: 1, TotalDuration: time.Minute, LastRun: at}})
	p.HistoryRuns([]history.RunInfo{{RunID: "run-1", StartedAt: at, Attempts: 3, Successes: 2, Tasks: 2}})

	out := buf.String()
	assert.Regexp(t, `abcdef12\s+001\s+A\s+2\s+failed\s+1\.5s\s+timeout`, out)
	assert.Regexp(t, `001\s+A\s+4\s+3\s+1\s+75%\s+60\.0s`, out)
	assert.Regexp(t, `run-1\s+.*\s+2\s+3\s+2`, out)

	p2, buf2 := newPrinter()
	p2.HistoryEntries(nil)
	p2.HistoryStats(nil)
	p2.HistoryRuns(nil)
	assert.Equal(t, 3, strings.Count(buf2.String(), "no recorded"))
}

func TestWarningDisplay(t *testing.T) {
	var buf bytes.Buffer
	WarnRequeued([]string{"001", "004"}).Display(&buf)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\x1b[33m⚠️  Warning: Requeued interrupted tasks\n"))
	assert.Contains(t, out, "Affected tasks:\n      1. 001\n      2. 004\n")
	assert.Contains(t, out, "Suggestion:")
	assert.True(t, strings.HasSuffix(out, "\x1b[0m"))

	buf.Reset()
	Warning{Title: "Lock held", Items: []string{"prd.json"}, ItemLabel: "file"}.Display(&buf)
	assert.Contains(t, buf.String(), "Affected file:\n      1. prd.json")
	assert.NotContains(t, buf.String(), "Suggestion")
}

func TestProgressIndicator(t *testing.T) {
	var buf bytes.Buffer
	pi := NewProgressIndicator(&buf, "backlog.md", 2)
	pi.Start()
	pi.Step("004", "First")
	pi.Step("005", "Second")
	pi.Complete()

	out := buf.String()
	assert.Contains(t, out, "Importing tasks from backlog.md:")
	assert.Contains(t, out, "[1/2] 004 First")
	assert.Contains(t, out, "[2/2] 005 Second")
	assert.Contains(t, out, "Imported 2 task(s)")
}

func TestParseDecision(t *testing.T) {
	tests := map[string]executor.Decision{
		"r": executor.DecisionRetry, " Retry ": executor.DecisionRetry,
		"s": executor.DecisionSkip, "SKIP": executor.DecisionSkip,
		"q": executor.DecisionAbort, "quit": executor.DecisionAbort, "abort": executor.DecisionAbort,
	}
	for in, want := range tests {
		got, ok := ParseDecision(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "x", "yes"} {
		_, ok := ParseDecision(in)
		assert.False(t, ok, in)
	}
}

func TestPauseDecider(t *testing.T) {
	task := models.Task{ID: "007", Title: "Flaky"}
	outcome := claude.Outcome{Output: "partial", Error: strPtr("exit status 1"), Duration: time.Second}

	tests := []struct {
		name  string
		lines []string
		err   error
		want  executor.Decision
	}{
		{"retry", []string{"r"}, nil, executor.DecisionRetry},
		{"skip after invalid input", []string{"", "maybe", "s"}, nil, executor.DecisionSkip},
		{"quit", []string{"q"}, nil, executor.DecisionAbort},
		{"eof aborts", nil, io.EOF, executor.DecisionAbort},
		{"ctrl-c aborts", nil, readline.ErrInterrupt, executor.DecisionAbort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, buf := newPrinter()
			reader := &scriptedReader{lines: tt.lines, err: tt.err}
			d := NewPauseDecider(reader, p)

			got, err := d.Decide(context.Background(), task, outcome, 1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, buf.String(), "failed: exit status 1")
			assert.Contains(t, buf.String(), "Task 007 has failed 2 time(s).")
			assert.Equal(t, []string{"[r]etry / [s]kip / [q]uit > "}, reader.prompts)
		})
	}
}

func TestPauseDecider_ContextCancelled(t *testing.T) {
	p, _ := newPrinter()
	reader := newBlockingReader()
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPauseDecider(reader, p).Decide(ctx, models.Task{ID: "1"}, claude.Outcome{}, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadLine_CancelClosesReader(t *testing.T) {
	reader := newBlockingReader()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ReadLine(ctx, reader)
	assert.ErrorIs(t, err, context.Canceled)

	select {
	case <-reader.reads:
	case <-time.After(time.Second):
		t.Fatal("pending read was not released by the cancel")
	}
}
