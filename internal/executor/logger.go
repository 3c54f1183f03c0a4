package executor

import "github.com/harrison/ralph/internal/models"

// Logger receives run and task lifecycle events.
type Logger interface {
	LogRunStart(runID string, cfg models.RunConfig, pending int)
	LogTaskStart(task models.Task, index, total int)
	LogTaskRetry(task models.Task, retry, maxRetries int, errText string)
	LogTaskResult(task models.Task, status models.TaskStatus, result models.TaskResult)
	LogRunSummary(summary models.RunSummary)
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// NoOpLogger discards every event.
type NoOpLogger struct{}

func (NoOpLogger) LogRunStart(string, models.RunConfig, int) {}

func (NoOpLogger) LogTaskStart(models.Task, int, int) {}

func (NoOpLogger) LogTaskRetry(models.Task, int, int, string) {}

func (NoOpLogger) LogTaskResult(models.Task, models.TaskStatus, models.TaskResult) {}

func (NoOpLogger) LogRunSummary(models.RunSummary) {}

func (NoOpLogger) Infof(string, ...interface{}) {}

func (NoOpLogger) Warnf(string, ...interface{}) {}
