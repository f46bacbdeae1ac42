package worker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jimdaga/accomplish/internal/config"
	"github.com/jimdaga/accomplish/internal/logging"
)

// StartScheduler creates and starts an Asynq Scheduler for the reminder
// pass. Returns a stop function for graceful shutdown.
func StartScheduler(cfg *config.Config) (stop func(), err error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)

	// Due checks are per user timezone, so the schedule itself runs in UTC.
	scheduler := asynq.NewScheduler(
		redisOpt,
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
			Logger:   &asynqLoggerAdapter{logger: logger},
		},
	)

	entryID, err := scheduler.Register(cfg.ReminderSchedule, newReminderTask())
	if err != nil {
		return nil, fmt.Errorf("failed to register reminder schedule: %w", err)
	}

	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	slog.Info(
		"Scheduler started",
		"schedule", cfg.ReminderSchedule,
		"entry_id", entryID,
	)

	return func() { scheduler.Shutdown() }, nil
}
