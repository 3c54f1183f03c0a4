package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/ralph/internal/executor"
	"github.com/harrison/ralph/internal/filelock"
	"github.com/harrison/ralph/internal/history"
	"github.com/harrison/ralph/internal/models"
	"github.com/harrison/ralph/internal/store"
)

func runArgs(claudePath string, extra ...string) []string {
	args := []string{"run", "--claude-path", claudePath, "--delay", "0", "--no-file-log"}
	return append(args, extra...)
}

func historyEntries(t *testing.T, root string) []history.Entry {
	t.Helper()
	h, err := history.NewStore(filepath.Join(root, ".ralph", "history.db"))
	require.NoError(t, err)
	defer h.Close()
	entries, err := h.Recent(context.Background(), "", 0)
	require.NoError(t, err)
	return entries
}

func TestRunCommand_CompletesTasks(t *testing.T) {
	root := newProject(t)
	seedTasks(t, root, todo("001", "Low", 1), todo("002", "High", 9))
	claudePath := fakeClaude(t, `echo "done"`)

	out, err := execute(t, "", runArgs(claudePath)...)
	require.NoError(t, err, out)

	tasks := reload(t, root)
	assert.Equal(t, models.StatusCompleted, tasks["001"].Status)
	assert.Equal(t, models.StatusCompleted, tasks["002"].Status)
	assert.NotNil(t, tasks["001"].CompletedAt)

	assert.Contains(t, out, "Loaded 2 task(s)")
	assert.Contains(t, out, "run finished: 2 task(s) completed")
	assert.Contains(t, out, "completed 2")

	results, err := store.New(filepath.Join(root, "prd.json"), filepath.Join(root, "ralph_results.json")).LoadResults()
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "002", results[0].TaskID, "higher priority runs first")

	entries := historyEntries(t, root)
	assert.Len(t, entries, 2)
}

func TestRunCommand_NoHistory(t *testing.T) {
	root := newProject(t)
	seedTasks(t, root, todo("001", "Only", 0))
	claudePath := fakeClaude(t, `echo ok`)

	_, err := execute(t, "", runArgs(claudePath, "--no-history")...)
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(root, ".ralph", "history.db"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunCommand_FailuresExitOne(t *testing.T) {
	root := newProject(t)
	seedTasks(t, root, todo("001", "Broken", 0), todo("002", "Also broken", 0))
	claudePath := fakeClaude(t, `echo "boom" >&2; exit 1`)

	out, err := execute(t, "", runArgs(claudePath)...)
	require.Error(t, err)
	assert.Equal(t, 1, ExitCode(err))
	assert.Contains(t, err.Error(), "2 task(s) did not complete")

	tasks := reload(t, root)
	assert.Equal(t, models.StatusFailed, tasks["001"].Status)
	assert.Equal(t, models.StatusFailed, tasks["002"].Status, "skip policy moves on to the next task")
	assert.Contains(t, out, "boom")
}

func TestRunCommand_RetryPolicy(t *testing.T) {
	root := newProject(t)
	seedTasks(t, root, todo("001", "Flaky", 0))
	claudePath := fakeClaude(t, `echo "nope" >&2; exit 3`)

	_, err := execute(t, "", runArgs(claudePath, "--on-error", "retry", "--max-retries", "2", "--retry-backoff", "0")...)
	require.Error(t, err)
	assert.Equal(t, 1, ExitCode(err))

	entries := historyEntries(t, root)
	require.Len(t, entries, 3, "one attempt plus two retries")
	assert.Equal(t, 3, entries[0].Attempt)
	assert.Equal(t, models.StatusFailed, reload(t, root)["001"].Status)
}

func TestRunCommand_RetryRecovers(t *testing.T) {
	root := newProject(t)
	seedTasks(t, root, todo("001", "Eventually", 0))
	marker := filepath.Join(t.TempDir(), "seen")
	claudePath := fakeClaude(t, `if [ -f "`+marker+`" ]; then echo ok; exit 0; fi
touch "`+marker+`"
echo "first try fails" >&2
exit 1`)

	_, err := execute(t, "", runArgs(claudePath, "--on-error", "retry", "--max-retries", "2", "--retry-backoff", "0")...)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, reload(t, root)["001"].Status)
	assert.Len(t, historyEntries(t, root), 2)
}

func TestRunCommand_PauseSkip(t *testing.T) {
	root := newProject(t)
	seedTasks(t, root, todo("001", "Broken", 5), todo("002", "Fine", 1))
	claudePath := fakeClaude(t, `case "$2" in *Broken*) echo "bad" >&2; exit 1;; esac
echo ok`)
	reader := useScript(t, "maybe", "s")

	out, err := execute(t, "", runArgs(claudePath, "--on-error", "pause")...)
	require.Error(t, err)
	assert.Equal(t, 1, ExitCode(err))

	tasks := reload(t, root)
	assert.Equal(t, models.StatusSkipped, tasks["001"].Status)
	assert.Equal(t, models.StatusCompleted, tasks["002"].Status)
	assert.Contains(t, out, "please answer r, s or q")
	assert.Contains(t, reader.prompts, "[r]etry / [s]kip / [q]uit > ")
	assert.True(t, reader.closed)
}

func TestRunCommand_PauseAbort(t *testing.T) {
	root := newProject(t)
	seedTasks(t, root, todo("001", "Broken", 5), todo("002", "Never reached", 1))
	claudePath := fakeClaude(t, `echo "bad" >&2; exit 1`)
	useScript(t, "q")

	out, err := execute(t, "", runArgs(claudePath, "--on-error", "pause")...)
	require.Error(t, err)
	assert.Equal(t, 2, ExitCode(err))
	assert.ErrorIs(t, err, executor.ErrAborted)

	tasks := reload(t, root)
	assert.Equal(t, models.StatusFailed, tasks["001"].Status)
	assert.Equal(t, models.StatusTodo, tasks["002"].Status)
	assert.Contains(t, out, "run aborted by operator")
}

func TestRunCommand_PauseRetryThenEOF(t *testing.T) {
	root := newProject(t)
	seedTasks(t, root, todo("001", "Broken", 0))
	claudePath := fakeClaude(t, `echo "bad" >&2; exit 1`)
	useScript(t, "r")

	_, err := execute(t, "", runArgs(claudePath, "--on-error", "pause")...)
	assert.Equal(t, 2, ExitCode(err), "closed input aborts")
	assert.Len(t, historyEntries(t, root), 2)
}

func TestRunCommand_RequeuesStaleTasks(t *testing.T) {
	root := newProject(t)
	stale := todo("001", "Left behind", 0)
	stale.Status = models.StatusInProgress
	seedTasks(t, root, stale)
	claudePath := fakeClaude(t, `echo ok`)

	out, err := execute(t, "", runArgs(claudePath)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Requeued interrupted tasks")
	assert.Equal(t, models.StatusCompleted, reload(t, root)["001"].Status)
}

func TestRunCommand_MaxIterations(t *testing.T) {
	root := newProject(t)
	seedTasks(t, root, todo("001", "A", 3), todo("002", "B", 2), todo("003", "C", 1))
	claudePath := fakeClaude(t, `echo ok`)

	out, err := execute(t, "", runArgs(claudePath, "-n", "2")...)
	require.NoError(t, err)
	assert.Contains(t, out, "max iterations reached after 2 task(s); 1 still pending")
	assert.Equal(t, models.StatusTodo, reload(t, root)["003"].Status)
}

func TestRunCommand_NoPendingTasks(t *testing.T) {
	root := newProject(t)
	done := todo("001", "Done", 0)
	done.Status = models.StatusCompleted
	seedTasks(t, root, done)

	out, err := execute(t, "", runArgs(fakeClaude(t, "exit 1"))...)
	require.NoError(t, err)
	assert.Contains(t, out, "no pending tasks")
}

func TestRunCommand_MissingTaskFile(t *testing.T) {
	newProject(t)
	_, err := execute(t, "", runArgs(fakeClaude(t, "echo ok"))...)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 1, ExitCode(err))
}

func TestRunCommand_Locked(t *testing.T) {
	root := newProject(t)
	seedTasks(t, root, todo("001", "A", 0))

	lock, err := filelock.AcquireRunLock(filepath.Join(root, "prd.json"))
	require.NoError(t, err)
	defer lock.Unlock()

	out, err := execute(t, "", runArgs(fakeClaude(t, "echo ok"))...)
	require.Error(t, err)
	assert.ErrorIs(t, err, filelock.ErrLocked)
	assert.Contains(t, out, "Another run is already working on this task file")
	assert.Equal(t, models.StatusTodo, reload(t, root)["001"].Status)
}

func TestRunCommand_InvalidFlags(t *testing.T) {
	root := newProject(t)
	seedTasks(t, root, todo("001", "A", 0))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"on-error", []string{"--on-error", "explode"}, "invalid --on-error"},
		{"delay", []string{"--delay", "soon"}, "invalid --delay"},
		{"max iterations", []string{"--max-iterations=0"}, "invalid configuration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "", append([]string{"run"}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRunExitError(t *testing.T) {
	tests := []struct {
		name    string
		summary models.RunSummary
		runErr  error
		want    int
	}{
		{"completed", models.RunSummary{State: models.RunCompleted}, nil, 0},
		{"failures", models.RunSummary{State: models.RunCompleted, Failures: []models.FailureDetail{{TaskID: "001"}}}, nil, 1},
		{"aborted", models.RunSummary{State: models.RunAbortedByUser}, nil, 2},
		{"interrupted", models.RunSummary{State: models.RunInterrupted}, context.Canceled, 130},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(runExitError(&tt.summary, tt.runErr)))
		})
	}
}
