package logging

import (
	"log/slog"
)

// CronAdapter adapts an slog.Logger to the logger interface of
// github.com/robfig/cron/v3. Scheduler chatter ("wake", "run") is logged at
// debug level; errors keep their level.
type CronAdapter struct {
	logger *slog.Logger
}

// NewCronAdapter creates a CronAdapter. If logger is nil, slog.Default() is used.
func NewCronAdapter(logger *slog.Logger) *CronAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CronAdapter{logger: logger.With(slog.String(KeyService, "scheduler"))}
}

// Info logs routine scheduler events.
func (a *CronAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug(msg, keysAndValues...)
}

// Error logs scheduler failures, including panics recovered from jobs.
func (a *CronAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	args := append([]interface{}{Err(err)}, keysAndValues...)
	a.logger.Error(msg, args...)
}
