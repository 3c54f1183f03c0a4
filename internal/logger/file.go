package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/ralph/internal/models"
)

// DefaultLogDir is where run logs are written unless configured otherwise.
const DefaultLogDir = ".ralph/logs"

// FileLogger writes a timestamped log per run, keeps latest.log pointing at
// the newest one, and appends every task pass with its full output to
// tasks/task-<id>.log. It implements executor.Logger.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	tasksDir string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates a FileLogger in logDir at the given level.
func NewFileLogger(logDir, logLevel string) (*FileLogger, error) {
	if logDir == "" {
		logDir = DefaultLogDir
	}
	tasksDir := filepath.Join(logDir, "tasks")
	if err := os.MkdirAll(tasksDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", time.Now().Format("20060102-150405")))
	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	fl := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		tasksDir: tasksDir,
		logLevel: normalizeLogLevel(logLevel),
	}
	fl.writeRunLog("=== Ralph Run Log ===\n")
	fl.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))
	return fl, nil
}

// RunFile returns the path of the current run log.
func (fl *FileLogger) RunFile() string {
	return fl.runFile
}

// TaskFile returns the detail log path for a task.
func (fl *FileLogger) TaskFile(taskID string) string {
	return filepath.Join(fl.tasksDir, fmt.Sprintf("task-%s.log", sanitizeFileName(taskID)))
}

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

func (fl *FileLogger) logWithLevel(level, message string) {
	if !fl.shouldLog(level) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), strings.ToUpper(level), message))
}

// Debugf logs a message at debug level.
func (fl *FileLogger) Debugf(format string, args ...interface{}) {
	fl.logWithLevel("debug", fmt.Sprintf(format, args...))
}

// Infof logs a message at info level.
func (fl *FileLogger) Infof(format string, args ...interface{}) {
	fl.logWithLevel("info", fmt.Sprintf(format, args...))
}

// Warnf logs a message at warn level.
func (fl *FileLogger) Warnf(format string, args ...interface{}) {
	fl.logWithLevel("warn", fmt.Sprintf(format, args...))
}

// Errorf logs a message at error level.
func (fl *FileLogger) Errorf(format string, args ...interface{}) {
	fl.logWithLevel("error", fmt.Sprintf(format, args...))
}

// LogRunStart records the run id and configuration.
func (fl *FileLogger) LogRunStart(runID string, cfg models.RunConfig, pending int) {
	fl.logWithLevel("info", fmt.Sprintf("Run %s started: %d pending, max_iterations=%d, on_error=%s, max_retries=%d, timeout=%s, delay=%s",
		runID, pending, cfg.MaxIterations, cfg.OnError, cfg.MaxRetries, cfg.Timeout, cfg.Delay))
	fl.logWithLevel("info", fmt.Sprintf("Task file %s, results file %s, working dir %s", cfg.TaskFile, cfg.ResultsFile, cfg.WorkingDir))
}

// LogTaskStart records the task about to run.
func (fl *FileLogger) LogTaskStart(task models.Task, index, total int) {
	fl.logWithLevel("info", fmt.Sprintf("[%d/%d] Task %s: %s", index, total, task.ID, task.Title))
}

// LogTaskRetry records a failed attempt that will be retried.
func (fl *FileLogger) LogTaskRetry(task models.Task, retry, maxRetries int, errText string) {
	fl.logWithLevel("warn", fmt.Sprintf("Task %s retry %d/%d: %s", task.ID, retry, maxRetries, errText))
}

// LogTaskResult records the final status and writes the task detail log.
func (fl *FileLogger) LogTaskResult(task models.Task, status models.TaskStatus, result models.TaskResult) {
	level := "info"
	if status == models.StatusFailed {
		level = "error"
	}
	msg := fmt.Sprintf("Task %s %s in %.2fs (retries=%d)", task.ID, status, result.Duration, result.RetryCount)
	if e := result.ErrorText(); e != "" {
		msg += ": " + e
	}
	fl.logWithLevel(level, msg)

	if err := fl.writeTaskLog(task, status, result); err != nil {
		fl.logWithLevel("warn", fmt.Sprintf("failed to write task log for %s: %v", task.ID, err))
	}
}

// LogRunSummary records the run totals and failures.
func (fl *FileLogger) LogRunSummary(summary models.RunSummary) {
	stats := summary.Stats
	var b strings.Builder
	b.WriteString("\n=== Run Summary ===\n")
	fmt.Fprintf(&b, "Run: %s\n", summary.RunID)
	fmt.Fprintf(&b, "State: %s\n", summary.State)
	fmt.Fprintf(&b, "Duration: %s\n", formatDuration(summary.Duration))
	fmt.Fprintf(&b, "Attempted: %d of %d pending\n", summary.Attempted, summary.Pending)
	if len(summary.Requeued) > 0 {
		fmt.Fprintf(&b, "Requeued: %s\n", strings.Join(summary.Requeued, ", "))
	}
	fmt.Fprintf(&b, "Tasks: total=%d todo=%d in_progress=%d completed=%d failed=%d skipped=%d\n",
		stats.Total, stats.Todo, stats.InProgress, stats.Completed, stats.Failed, stats.Skipped)
	for _, f := range summary.Failures {
		fmt.Fprintf(&b, "  - %s %s (%s)", f.TaskID, f.Title, f.Status)
		if f.Error != "" {
			fmt.Fprintf(&b, ": %s", f.Error)
		}
		b.WriteString("\n")
	}
	fl.writeRunLog(b.String())
}

func (fl *FileLogger) writeTaskLog(task models.Task, status models.TaskStatus, result models.TaskResult) error {
	f, err := os.OpenFile(fl.TaskFile(task.ID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	var b strings.Builder
	fmt.Fprintf(&b, "=== Task %s: %s ===\n", task.ID, task.Title)
	fmt.Fprintf(&b, "Executed at: %s\n", result.ExecutedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Status: %s\n", status)
	fmt.Fprintf(&b, "Duration: %.2fs\n", result.Duration)
	fmt.Fprintf(&b, "Retries: %d\n", result.RetryCount)
	if e := result.ErrorText(); e != "" {
		fmt.Fprintf(&b, "Error: %s\n", e)
	}
	b.WriteString("\n--- Output ---\n")
	b.WriteString(result.Output)
	if !strings.HasSuffix(result.Output, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("\n")

	_, err = f.WriteString(b.String())
	return err
}

// writeRunLog writes to the run log under the mutex.
func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.runLog == nil {
		return
	}
	fl.runLog.WriteString(message)
}

// Close flushes and closes the run log. It is safe to call more than once.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.runLog == nil {
		return nil
	}
	err := fl.runLog.Close()
	fl.runLog = nil
	return err
}

func sanitizeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, name)
}
