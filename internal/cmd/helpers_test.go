package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harrison/ralph/internal/config"
	"github.com/harrison/ralph/internal/display"
	"github.com/harrison/ralph/internal/models"
	"github.com/harrison/ralph/internal/store"
)

// newProject makes a temp dir the project root for the test.
func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv(config.EnvHome, root)
	return root
}

// fakeClaude writes a shell script standing in for the CLI.
func fakeClaude(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "claude")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

// execute runs the root command with args and stdin, returning everything
// written to stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// seedTasks writes tasks to the project's default task file.
func seedTasks(t *testing.T, root string, tasks ...models.Task) *store.Store {
	t.Helper()
	st := store.New(filepath.Join(root, "prd.json"), filepath.Join(root, "ralph_results.json"))
	st.SetTasks(tasks)
	require.NoError(t, st.Save())
	return st
}

func todo(id, title string, priority int) models.Task {
	return models.Task{ID: id, Title: title, Status: models.StatusTodo, Priority: priority}
}

// reload reads the project's task file again.
func reload(t *testing.T, root string) map[string]models.Task {
	t.Helper()
	st := store.New(filepath.Join(root, "prd.json"), filepath.Join(root, "ralph_results.json"))
	tasks, err := st.Load()
	require.NoError(t, err)
	byID := make(map[string]models.Task, len(tasks))
	for _, task := range tasks {
		byID[task.ID] = task
	}
	return byID
}

// scriptedReader answers prompts from a fixed list, then reports EOF.
type scriptedReader struct {
	lines   []string
	prompts []string
	closed  bool
}

func (r *scriptedReader) Readline() (string, error) {
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func (r *scriptedReader) SetPrompt(prompt string) {
	r.prompts = append(r.prompts, prompt)
}

func (r *scriptedReader) Close() error {
	r.closed = true
	return nil
}

// useScript makes newLineReader hand out a scriptedReader for the test.
func useScript(t *testing.T, lines ...string) *scriptedReader {
	t.Helper()
	reader := &scriptedReader{lines: lines}
	orig := newLineReader
	newLineReader = func(string, string) (display.LineReader, error) {
		return reader, nil
	}
	t.Cleanup(func() { newLineReader = orig })
	return reader
}
