package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/harrison/ralph/internal/models"
)

// ConsoleLogger logs run progress to a writer with [HH:MM:SS] timestamps.
// Messages below the configured level are dropped. Color output is enabled
// automatically when writing to a terminal.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
	progress    *ProgressBar
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal checks if the writer is a terminal that supports colors.
// color.NoColor is already false when NO_COLOR is set or stdout is not a TTY.
func isTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}
	if w == os.Stdout || w == os.Stderr {
		return !color.NoColor
	}
	return false
}

// SetColor forces color output on or off.
func (cl *ConsoleLogger) SetColor(enabled bool) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.colorOutput = enabled
}

// shouldLog returns true if a message at the given level should be logged.
func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

func (cl *ConsoleLogger) write(level, message string) {
	if cl.writer == nil || !cl.shouldLog(level) {
		return
	}
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.writeLocked(level, message)
}

func (cl *ConsoleLogger) writeLocked(level, message string) {
	label := strings.ToUpper(level)
	if cl.colorOutput {
		label = levelColor(level).Sprint(label)
	}
	fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", timestamp(), label, message)
}

func levelColor(level string) *color.Color {
	switch level {
	case "trace", "debug":
		return color.New(color.FgHiBlack)
	case "warn":
		return color.New(color.FgYellow)
	case "error":
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgCyan)
	}
}

func statusColor(status models.TaskStatus) *color.Color {
	switch status {
	case models.StatusCompleted:
		return color.New(color.FgGreen)
	case models.StatusFailed:
		return color.New(color.FgRed)
	case models.StatusSkipped:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgBlue)
	}
}

func (cl *ConsoleLogger) colorize(c *color.Color, s string) string {
	if !cl.colorOutput {
		return s
	}
	return c.Sprint(s)
}

// Tracef logs a message at trace level.
func (cl *ConsoleLogger) Tracef(format string, args ...interface{}) {
	cl.write("trace", fmt.Sprintf(format, args...))
}

// Debugf logs a message at debug level.
func (cl *ConsoleLogger) Debugf(format string, args ...interface{}) {
	cl.write("debug", fmt.Sprintf(format, args...))
}

// Infof logs a message at info level.
func (cl *ConsoleLogger) Infof(format string, args ...interface{}) {
	cl.write("info", fmt.Sprintf(format, args...))
}

// Warnf logs a message at warn level.
func (cl *ConsoleLogger) Warnf(format string, args ...interface{}) {
	cl.write("warn", fmt.Sprintf(format, args...))
}

// Errorf logs a message at error level.
func (cl *ConsoleLogger) Errorf(format string, args ...interface{}) {
	cl.write("error", fmt.Sprintf(format, args...))
}

// LogRunStart announces a run and resets the progress bar.
func (cl *ConsoleLogger) LogRunStart(runID string, cfg models.RunConfig, pending int) {
	cl.mutex.Lock()
	cl.progress = NewProgressBar(pending, 20, cl.colorOutput)
	cl.mutex.Unlock()

	cl.write("info", fmt.Sprintf("Starting run %s: %d pending task(s), max %d iteration(s), on_error=%s",
		shortID(runID), pending, cfg.MaxIterations, cfg.OnError))
	cl.write("debug", fmt.Sprintf("task file %s, results %s, working dir %s, timeout %s",
		cfg.TaskFile, cfg.ResultsFile, cfg.WorkingDir, formatDuration(cfg.Timeout)))
}

// LogTaskStart logs the task about to run along with queue progress.
func (cl *ConsoleLogger) LogTaskStart(task models.Task, index, total int) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}
	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	progress := fmt.Sprintf("%d/%d", index, total)
	if cl.progress != nil {
		cl.progress.Update(index - 1)
		progress = cl.progress.Render()
	}
	cl.writeLocked("info", fmt.Sprintf("%s Task %s: %s", progress, task.ID, task.Title))
}

// LogTaskRetry logs a failed attempt that will be retried.
func (cl *ConsoleLogger) LogTaskRetry(task models.Task, retry, maxRetries int, errText string) {
	msg := fmt.Sprintf("Task %s failed, retry %d/%d", task.ID, retry, maxRetries)
	if errText != "" {
		msg += ": " + firstLine(errText)
	}
	cl.write("warn", msg)
}

// LogTaskResult logs the final status of a task pass.
func (cl *ConsoleLogger) LogTaskResult(task models.Task, status models.TaskStatus, result models.TaskResult) {
	level := "info"
	if status == models.StatusFailed {
		level = "error"
	}
	if cl.writer == nil || !cl.shouldLog(level) {
		return
	}
	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	label := cl.colorize(statusColor(status), strings.ToUpper(status.String()))
	msg := fmt.Sprintf("Task %s %s in %.1fs", task.ID, label, result.Duration)
	if result.RetryCount > 0 {
		msg += fmt.Sprintf(" after %d retr%s", result.RetryCount, plural(result.RetryCount, "y", "ies"))
	}
	if e := result.ErrorText(); e != "" && !result.Success {
		msg += ": " + firstLine(e)
	}
	cl.writeLocked(level, msg)
}

// LogRunSummary logs the end-of-run totals and each failure.
func (cl *ConsoleLogger) LogRunSummary(summary models.RunSummary) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}
	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	stats := summary.Stats
	cl.writeLocked("info", fmt.Sprintf("Run %s finished: %s after %s", shortID(summary.RunID),
		cl.colorize(runStateColor(summary), summary.State.String()), formatDuration(summary.Duration)))
	cl.writeLocked("info", fmt.Sprintf("Attempted %d of %d pending | %s %d | %s %d | %s %d | todo %d",
		summary.Attempted, summary.Pending,
		cl.colorize(statusColor(models.StatusCompleted), "completed"), stats.Completed,
		cl.colorize(statusColor(models.StatusFailed), "failed"), stats.Failed,
		cl.colorize(statusColor(models.StatusSkipped), "skipped"), stats.Skipped,
		stats.Todo))

	if len(summary.Failures) > 0 && cl.shouldLog("warn") {
		for _, f := range summary.Failures {
			msg := fmt.Sprintf("  %s %s (%s)", f.TaskID, f.Title, f.Status)
			if f.Error != "" {
				msg += ": " + firstLine(f.Error)
			}
			cl.writeLocked("warn", msg)
		}
	}
}

func runStateColor(summary models.RunSummary) *color.Color {
	switch {
	case summary.Succeeded() && summary.State == models.RunCompleted:
		return color.New(color.FgGreen, color.Bold)
	case summary.State == models.RunAbortedByUser || summary.State == models.RunInterrupted:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgYellow, color.Bold)
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
