package executor

// graceful.go holds the warn-and-continue helpers used for side channels
// (history, logs) whose failure must not change a task's outcome.

// GracefulWarn logs a warning if logger is non-nil.
//
// Usage:
//
//	if err := recorder.RecordAttempt(ctx, a); err != nil {
//	    GracefulWarn(m.logger, "Failed to record attempt: %v", err)
//	}
func GracefulWarn(logger Logger, format string, args ...interface{}) {
	if logger != nil {
		logger.Warnf(format, args...)
	}
}
