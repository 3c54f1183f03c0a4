// Package history keeps every Claude invocation, retries included, in a
// SQLite database. The JSON results file only holds one result per task pass;
// this is where the individual attempts live.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/ralph/internal/executor"
)

// DefaultDBPath is used when history is enabled without an explicit path.
const DefaultDBPath = ".ralph/history.db"

// timeLayout is fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one recorded attempt.
type Entry struct {
	ID         int64
	RunID      string
	TaskID     string
	TaskTitle  string
	WorkingDir string
	Attempt    int
	Success    bool
	Output     string
	Error      string
	Duration   time.Duration
	ExecutedAt time.Time
}

// TaskStats aggregates attempts for one task across all runs.
type TaskStats struct {
	TaskID        string
	TaskTitle     string
	Attempts      int
	Successes     int
	Failures      int
	TotalDuration time.Duration
	LastRun       time.Time
}

// SuccessRate returns successes/attempts, or 0 with no attempts.
func (s TaskStats) SuccessRate() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Attempts)
}

// RunInfo summarizes one run.
type RunInfo struct {
	RunID     string
	StartedAt time.Time
	Attempts  int
	Successes int
	Tasks     int
}

// Store manages the attempt database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating if needed) the database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// execWithRetry executes a statement with exponential backoff on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordAttempt stores one invocation. It satisfies executor.AttemptRecorder.
func (s *Store) RecordAttempt(ctx context.Context, a executor.Attempt) error {
	executedAt := a.ExecutedAt
	if executedAt.IsZero() {
		executedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO attempts
		(run_id, task_id, task_title, working_dir, attempt, success, output, error_message, duration_ms, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.RunID, a.TaskID, a.TaskTitle, a.WorkingDir, a.Number, a.Success, a.Output, a.Error,
		a.Duration.Milliseconds(), executedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// Recent returns the newest attempts first. An empty taskID matches all
// tasks; limit <= 0 means no limit.
func (s *Store) Recent(ctx context.Context, taskID string, limit int) ([]Entry, error) {
	query := `SELECT id, run_id, task_id, task_title, working_dir, attempt, success,
		COALESCE(output, ''), COALESCE(error_message, ''), duration_ms, executed_at
		FROM attempts`
	var args []interface{}
	if taskID != "" {
		query += ` WHERE task_id = ?`
		args = append(args, taskID)
	}
	query += ` ORDER BY executed_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			durationMs int64
			executedAt string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.TaskID, &e.TaskTitle, &e.WorkingDir, &e.Attempt, &e.Success,
			&e.Output, &e.Error, &durationMs, &executedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		e.Duration = time.Duration(durationMs) * time.Millisecond
		if e.ExecutedAt, err = parseTime(executedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return entries, nil
}

// Stats aggregates attempts per task, ordered by task id.
func (s *Store) Stats(ctx context.Context) ([]TaskStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT task_id, MAX(task_title), COUNT(*),
		SUM(CASE WHEN success THEN 1 ELSE 0 END), SUM(duration_ms), MAX(executed_at)
		FROM attempts GROUP BY task_id ORDER BY task_id`)
	if err != nil {
		return nil, fmt.Errorf("query task stats: %w", err)
	}
	defer rows.Close()

	var stats []TaskStats
	for rows.Next() {
		var (
			st         TaskStats
			durationMs int64
			lastRun    string
		)
		if err := rows.Scan(&st.TaskID, &st.TaskTitle, &st.Attempts, &st.Successes, &durationMs, &lastRun); err != nil {
			return nil, fmt.Errorf("scan task stats: %w", err)
		}
		st.Failures = st.Attempts - st.Successes
		st.TotalDuration = time.Duration(durationMs) * time.Millisecond
		if st.LastRun, err = parseTime(lastRun); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task stats: %w", err)
	}
	return stats, nil
}

// Runs lists runs newest first. limit <= 0 means no limit.
func (s *Store) Runs(ctx context.Context, limit int) ([]RunInfo, error) {
	query := `SELECT run_id, MIN(executed_at), COUNT(*),
		SUM(CASE WHEN success THEN 1 ELSE 0 END), COUNT(DISTINCT task_id)
		FROM attempts GROUP BY run_id ORDER BY MIN(executed_at) DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var (
			r       RunInfo
			started string
		)
		if err := rows.Scan(&r.RunID, &started, &r.Attempts, &r.Successes, &r.Tasks); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Clear deletes every attempt and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM attempts`)
	if err != nil {
		return 0, fmt.Errorf("clear attempts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count cleared attempts: %w", err)
	}
	return n, nil
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t, nil
}
