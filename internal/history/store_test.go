package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/ralph/internal/executor"
)

func newMemStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func attempt(run, task string, n int, success bool, at time.Duration) executor.Attempt {
	a := executor.Attempt{
		RunID:      run,
		TaskID:     task,
		TaskTitle:  "Title " + task,
		WorkingDir: "/work",
		Number:     n,
		Success:    success,
		Output:     "out",
		Duration:   1500 * time.Millisecond,
		ExecutedAt: base.Add(at),
	}
	if !success {
		a.Error = "failed"
	}
	return a
}

func TestNewStore(t *testing.T) {
	tests := []struct {
		name   string
		dbPath string
	}{
		{name: "in-memory database", dbPath: ":memory:"},
		{name: "file database", dbPath: filepath.Join(t.TempDir(), "history.db")},
		{name: "creates parent directories", dbPath: filepath.Join(t.TempDir(), "nested", "dir", "history.db")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStore(tt.dbPath)
			require.NoError(t, err)
			defer s.Close()

			version, err := s.LatestVersion()
			require.NoError(t, err)
			assert.Equal(t, len(migrations), version)
			assert.Equal(t, tt.dbPath, s.Path())
		})
	}
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, s.RecordAttempt(ctx, attempt("r1", "001", 1, true, 0)))
	require.NoError(t, s.Close())

	s, err = NewStore(path)
	require.NoError(t, err)
	defer s.Close()

	entries, err := s.Recent(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRecordAttemptAndRecent(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordAttempt(ctx, attempt("r1", "001", 1, false, 0)))
	require.NoError(t, s.RecordAttempt(ctx, attempt("r1", "001", 2, true, time.Minute)))
	require.NoError(t, s.RecordAttempt(ctx, attempt("r1", "002", 1, true, 2*time.Minute)))

	all, err := s.Recent(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "002", all[0].TaskID)

	forTask, err := s.Recent(ctx, "001", 0)
	require.NoError(t, err)
	require.Len(t, forTask, 2)
	assert.Equal(t, 2, forTask[0].Attempt)
	assert.True(t, forTask[0].Success)

	first := forTask[1]
	assert.Equal(t, "r1", first.RunID)
	assert.Equal(t, "Title 001", first.TaskTitle)
	assert.Equal(t, "/work", first.WorkingDir)
	assert.False(t, first.Success)
	assert.Equal(t, "failed", first.Error)
	assert.Equal(t, "out", first.Output)
	assert.Equal(t, 1500*time.Millisecond, first.Duration)
	assert.True(t, first.ExecutedAt.Equal(base))

	limited, err := s.Recent(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStats(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordAttempt(ctx, attempt("r1", "002", 1, false, 0)))
	require.NoError(t, s.RecordAttempt(ctx, attempt("r1", "002", 2, false, time.Second)))
	require.NoError(t, s.RecordAttempt(ctx, attempt("r2", "002", 1, true, time.Hour)))
	require.NoError(t, s.RecordAttempt(ctx, attempt("r2", "001", 1, true, 2*time.Hour)))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "001", stats[0].TaskID)
	assert.Equal(t, 1, stats[0].Attempts)
	assert.Equal(t, 1.0, stats[0].SuccessRate())

	second := stats[1]
	assert.Equal(t, "002", second.TaskID)
	assert.Equal(t, 3, second.Attempts)
	assert.Equal(t, 1, second.Successes)
	assert.Equal(t, 2, second.Failures)
	assert.Equal(t, 4500*time.Millisecond, second.TotalDuration)
	assert.True(t, second.LastRun.Equal(base.Add(time.Hour)))
	assert.InDelta(t, 1.0/3.0, second.SuccessRate(), 0.0001)

	assert.Equal(t, 0.0, TaskStats{}.SuccessRate())
}

func TestRuns(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordAttempt(ctx, attempt("old", "001", 1, false, 0)))
	require.NoError(t, s.RecordAttempt(ctx, attempt("old", "001", 2, true, time.Second)))
	require.NoError(t, s.RecordAttempt(ctx, attempt("new", "001", 1, true, time.Hour)))
	require.NoError(t, s.RecordAttempt(ctx, attempt("new", "002", 1, true, time.Hour+time.Second)))

	runs, err := s.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "new", runs[0].RunID)
	assert.Equal(t, 2, runs[0].Attempts)
	assert.Equal(t, 2, runs[0].Tasks)
	assert.True(t, runs[0].StartedAt.Equal(base.Add(time.Hour)))

	assert.Equal(t, "old", runs[1].RunID)
	assert.Equal(t, 2, runs[1].Attempts)
	assert.Equal(t, 1, runs[1].Successes)
	assert.Equal(t, 1, runs[1].Tasks)

	limited, err := s.Runs(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestClear(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordAttempt(ctx, attempt("r1", "001", 1, true, 0)))
	require.NoError(t, s.RecordAttempt(ctx, attempt("r1", "002", 1, true, 0)))

	n, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	entries, err := s.Recent(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_SatisfiesRecorder(t *testing.T) {
	var _ executor.AttemptRecorder = newMemStore(t)
}
