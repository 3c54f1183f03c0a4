package logger

import (
	"github.com/harrison/ralph/internal/executor"
	"github.com/harrison/ralph/internal/models"
)

// MultiLogger forwards every event to each wrapped logger in order.
type MultiLogger struct {
	loggers []executor.Logger
}

// NewMultiLogger wraps the non-nil loggers.
func NewMultiLogger(loggers ...executor.Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

func (m *MultiLogger) LogRunStart(runID string, cfg models.RunConfig, pending int) {
	for _, l := range m.loggers {
		l.LogRunStart(runID, cfg, pending)
	}
}

func (m *MultiLogger) LogTaskStart(task models.Task, index, total int) {
	for _, l := range m.loggers {
		l.LogTaskStart(task, index, total)
	}
}

func (m *MultiLogger) LogTaskRetry(task models.Task, retry, maxRetries int, errText string) {
	for _, l := range m.loggers {
		l.LogTaskRetry(task, retry, maxRetries, errText)
	}
}

func (m *MultiLogger) LogTaskResult(task models.Task, status models.TaskStatus, result models.TaskResult) {
	for _, l := range m.loggers {
		l.LogTaskResult(task, status, result)
	}
}

func (m *MultiLogger) LogRunSummary(summary models.RunSummary) {
	for _, l := range m.loggers {
		l.LogRunSummary(summary)
	}
}

func (m *MultiLogger) Infof(format string, args ...interface{}) {
	for _, l := range m.loggers {
		l.Infof(format, args...)
	}
}

func (m *MultiLogger) Warnf(format string, args ...interface{}) {
	for _, l := range m.loggers {
		l.Warnf(format, args...)
	}
}

var (
	_ executor.Logger = (*ConsoleLogger)(nil)
	_ executor.Logger = (*FileLogger)(nil)
	_ executor.Logger = (*MultiLogger)(nil)
)
