package worker

import (
	"time"

	"github.com/hibiken/asynq"
)

// TaskReminderDispatch runs one reminder pass over every enabled user.
const TaskReminderDispatch = "reminders:dispatch"

// uniqueWindow stops a second scheduler instance from enqueueing the same
// pass twice. It stays below the shortest sensible schedule period.
const uniqueWindow = 25 * time.Minute

// newReminderTask builds the periodic dispatch task. The payload is empty;
// the handler queries all users itself.
func newReminderTask() *asynq.Task {
	return asynq.NewTask(
		TaskReminderDispatch,
		nil,
		asynq.MaxRetry(2),
		asynq.Timeout(10*time.Minute),
		asynq.Retention(24*time.Hour),
		asynq.Unique(uniqueWindow),
	)
}
