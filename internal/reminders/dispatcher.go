package reminders

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jimdaga/accomplish/internal/analytics"
	"github.com/jimdaga/accomplish/internal/mailer"
	"github.com/jimdaga/accomplish/internal/models"
	"github.com/jimdaga/accomplish/internal/settings"
	"github.com/jimdaga/accomplish/internal/tracking"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize bounds concurrent identity and email calls.
const DefaultBatchSize = 20

// extraAttempts is how many times a failed email lookup or send is retried.
const extraAttempts = 2

// SettingsSource lists reminder-enabled users and records sends.
type SettingsSource interface {
	ListReminderEnabled(ctx context.Context) ([]models.UserSettings, error)
	MarkReminderSent(ctx context.Context, userID string, at time.Time) error
}

// EntryChecker reports whether a user already wrote an entry for a date.
type EntryChecker interface {
	ExistsForDate(ctx context.Context, userID, date string) (bool, error)
}

// EmailResolver finds a user's notification address. "" means none.
type EmailResolver interface {
	Email(ctx context.Context, userID string) (string, error)
}

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// Analytics records product events.
type Analytics interface {
	Capture(ctx context.Context, userID, event string, props map[string]any) error
}

// Summary is the outcome of one run.
type Summary struct {
	Processed int       `json:"processed"`
	Sent      int       `json:"sent"`
	Skipped   int       `json:"skipped"`
	Errors    int       `json:"errors"`
	Timestamp time.Time `json:"timestamp"`
}

// Options tunes a Dispatcher.
type Options struct {
	BatchSize  int
	RetryDelay time.Duration
	AppURL     string
}

// Dispatcher runs one reminder pass over every enabled user.
type Dispatcher struct {
	settings  SettingsSource
	entries   EntryChecker
	emails    EmailResolver
	sender    Sender
	analytics Analytics
	reporter  tracking.Reporter
	opts      Options
	now       func() time.Time
}

func NewDispatcher(st SettingsSource, entries EntryChecker, emails EmailResolver, sender Sender, events Analytics, reporter tracking.Reporter, opts Options) *Dispatcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if reporter == nil {
		reporter = tracking.Nop{}
	}
	return &Dispatcher{
		settings:  st,
		entries:   entries,
		emails:    emails,
		sender:    sender,
		analytics: events,
		reporter:  reporter,
		opts:      opts,
		now:       time.Now,
	}
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSent
)

// Run processes users in sequential batches, in parallel within a batch. A
// failure for one user is logged, reported and counted; it never stops the
// run. Only failing to list users aborts.
func (d *Dispatcher) Run(ctx context.Context) (Summary, error) {
	now := d.now()
	sum := Summary{Timestamp: now.UTC()}

	users, err := d.settings.ListReminderEnabled(ctx)
	if err != nil {
		return sum, fmt.Errorf("list reminder users: %w", err)
	}
	sum.Processed = len(users)

	var mu sync.Mutex
	for start := 0; start < len(users); start += d.opts.BatchSize {
		end := min(start+d.opts.BatchSize, len(users))

		var g errgroup.Group
		for _, st := range users[start:end] {
			st := st
			g.Go(func() error {
				res, err := d.processSafely(ctx, st, now)

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err != nil:
					sum.Errors++
					slog.Error("Failed to process reminder", "user_id", st.UserID, "error", err)
					d.reporter.Capture(ctx, err, map[string]string{"user_id": st.UserID, "job": "reminders"})
				case res == outcomeSent:
					sum.Sent++
				default:
					sum.Skipped++
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	slog.Info("Reminder job completed",
		"processed", sum.Processed,
		"sent", sum.Sent,
		"skipped", sum.Skipped,
		"errors", sum.Errors,
	)
	return sum, nil
}

func (d *Dispatcher) processSafely(ctx context.Context, st models.UserSettings, now time.Time) (res outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic processing user %s: %v", st.UserID, r)
		}
	}()
	return d.process(ctx, st, now)
}

func (d *Dispatcher) process(ctx context.Context, st models.UserSettings, now time.Time) (outcome, error) {
	if ok, reason := Due(st, now); !ok {
		slog.Debug("Reminder skipped", "user_id", st.UserID, "reason", reason)
		return outcomeSkipped, nil
	}

	today := settings.TodayIn(st.ReminderTimezone, now)
	exists, err := d.entries.ExistsForDate(ctx, st.UserID, today)
	if err != nil {
		return outcomeSkipped, err
	}
	if exists {
		slog.Debug("Reminder skipped", "user_id", st.UserID, "reason", ReasonHasEntry)
		return outcomeSkipped, nil
	}

	var email string
	err = d.withRetry(ctx, func(ctx context.Context) error {
		var err error
		email, err = d.emails.Email(ctx, st.UserID)
		return err
	})
	if err != nil {
		return outcomeSkipped, fmt.Errorf("resolve email: %w", err)
	}
	if email == "" {
		slog.Debug("Reminder skipped", "user_id", st.UserID, "reason", ReasonNoEmail)
		return outcomeSkipped, nil
	}

	msg, err := mailer.ReminderMessage(email, d.opts.AppURL)
	if err != nil {
		return outcomeSkipped, err
	}
	if err := d.withRetry(ctx, func(ctx context.Context) error {
		return d.sender.Send(ctx, msg)
	}); err != nil {
		return outcomeSkipped, fmt.Errorf("send reminder: %w", err)
	}

	if err := d.settings.MarkReminderSent(ctx, st.UserID, now); err != nil {
		return outcomeSkipped, fmt.Errorf("mark reminder sent: %w", err)
	}

	if d.analytics != nil {
		props := map[string]any{
			"timezone":      st.ReminderTimezone,
			"reminder_time": st.ReminderTime,
			"skip_weekends": st.SkipWeekends,
		}
		if err := d.analytics.Capture(ctx, st.UserID, analytics.EventReminderSent, props); err != nil {
			slog.Warn("Failed to record reminder event", "user_id", st.UserID, "error", err)
		}
	}
	return outcomeSent, nil
}

// withRetry retries fn up to extraAttempts times, waiting RetryDelay * n
// before the nth retry.
func (d *Dispatcher) withRetry(ctx context.Context, fn func(context.Context) error) error {
	attempt := 0
	linear := retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		return d.opts.RetryDelay * time.Duration(attempt), false
	})
	return retry.Do(ctx, retry.WithMaxRetries(extraAttempts, linear), func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
