package cmd

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/ralph/internal/history"
	"github.com/harrison/ralph/internal/models"
)

func TestInteractiveCommand(t *testing.T) {
	root := newProject(t)
	claudePath := fakeClaude(t, `echo "did: $2"`)
	reader := useScript(t, "help", "Refactor the parser", "status", "quit")

	out, err := execute(t, "", "interactive", "--claude-path", claudePath)
	require.NoError(t, err, out)

	assert.Contains(t, out, "Interactive mode")
	assert.Contains(t, out, "Type a task description")
	assert.Contains(t, out, "did: Task: Refactor the parser")
	assert.Contains(t, out, "Succeeded:  1")
	assert.Contains(t, reader.prompts, "task> ")
	assert.True(t, reader.closed)

	h, err := history.NewStore(filepath.Join(root, ".ralph", "history.db"))
	require.NoError(t, err)
	defer h.Close()
	entries, err := h.Recent(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "i001", entries[0].TaskID)
}

func TestInteractiveCommand_MaxIterations(t *testing.T) {
	newProject(t)
	claudePath := fakeClaude(t, `echo ok`)
	useScript(t, "one", "two", "three")

	out, err := execute(t, "", "interactive", "--claude-path", claudePath, "-n", "2", "--no-history")
	require.NoError(t, err)
	assert.Contains(t, out, "max iterations (2) reached")
	assert.Contains(t, out, "Iterations: 2/2")
}

func TestInteractiveCommand_DoesNotTouchTaskFile(t *testing.T) {
	root := newProject(t)
	seedTasks(t, root, todo("001", "Untouched", 0))
	useScript(t, "something")

	_, err := execute(t, "", "interactive", "--claude-path", fakeClaude(t, "echo ok"), "--no-history")
	require.NoError(t, err)
	assert.Equal(t, models.StatusTodo, reload(t, root)["001"].Status)
}

func TestContinuousCommand(t *testing.T) {
	newProject(t)
	claudePath := fakeClaude(t, `echo "ran: $2"`)
	reader := useScript(t, "", "Second prompt", "quit")

	out, err := execute(t, "", "continuous", "First prompt", "--claude-path", claudePath, "--delay", "0", "--no-history")
	require.NoError(t, err, out)

	assert.Contains(t, out, "Continuous mode")
	assert.Equal(t, 2, strings.Count(out, "ran: Task: First prompt"), "empty input repeats the prompt")
	assert.Contains(t, out, "ran: Task: Second prompt")
	assert.Contains(t, out, "Iterations: 3")
	assert.Contains(t, reader.prompts, "next> ")
}

func TestContinuousCommand_AsksForInitialPrompt(t *testing.T) {
	newProject(t)
	reader := useScript(t)

	out, err := execute(t, "", "continuous", "--claude-path", fakeClaude(t, "echo ok"), "--no-history")
	require.NoError(t, err)
	assert.Contains(t, out, "no task entered, exiting")
	assert.Contains(t, reader.prompts, "initial task> ")
}

func TestContinuousCommand_FailuresDoNotStopSession(t *testing.T) {
	newProject(t)
	useScript(t, "quit")

	out, err := execute(t, "", "continuous", "Will fail", "--claude-path", fakeClaude(t, `echo "nope" >&2; exit 1`), "--no-history")
	require.NoError(t, err)
	assert.Contains(t, out, "nope")
	assert.Contains(t, out, "Failed:     1")
}
