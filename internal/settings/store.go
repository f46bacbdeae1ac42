package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jimdaga/accomplish/internal/models"
	"gorm.io/gorm"
)

// Patch carries a partial settings update. Nil fields are left unchanged.
type Patch struct {
	EmailRemindersEnabled *bool
	ReminderTime          *string
	ReminderTimezone      *string
	SkipWeekends          *bool
}

// Store reads and writes user_settings rows.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Get returns the stored row, if any. It never writes.
func (s *Store) Get(ctx context.Context, userID string) (*models.UserSettings, bool, error) {
	var st models.UserSettings
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get settings: %w", err)
	}
	return &st, true, nil
}

// Effective returns the stored row or the defaults, without persisting.
func (s *Store) Effective(ctx context.Context, userID string) (models.UserSettings, error) {
	st, ok, err := s.Get(ctx, userID)
	if err != nil {
		return models.UserSettings{}, err
	}
	if !ok {
		return models.DefaultSettings(userID), nil
	}
	return *st, nil
}

// EnsureWithTimezone creates the defaults row with the given timezone when
// the user has none, then returns the stored row. An existing row keeps
// its timezone.
func (s *Store) EnsureWithTimezone(ctx context.Context, userID, tz string) (*models.UserSettings, error) {
	now := s.now()
	err := s.db.WithContext(ctx).Exec(`
		INSERT INTO user_settings
			(user_id, email_reminders_enabled, reminder_time, reminder_timezone, skip_weekends, created_at, updated_at)
		VALUES (?, true, ?, ?, true, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`,
		userID, models.DefaultReminderTime, NormalizeTimezone(tz), now, now,
	).Error
	if err != nil {
		return nil, fmt.Errorf("ensure settings: %w", err)
	}

	st, ok, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("ensure settings: row for %s vanished", userID)
	}
	return st, nil
}

// Patch applies p in one upsert. A missing row is created with defaults for
// every field p leaves nil.
func (s *Store) Patch(ctx context.Context, userID string, p Patch) (*models.UserSettings, error) {
	if p.ReminderTimezone != nil {
		tz := NormalizeTimezone(*p.ReminderTimezone)
		p.ReminderTimezone = &tz
	}

	var st models.UserSettings
	err := s.db.WithContext(ctx).Raw(`
		INSERT INTO user_settings
			(user_id, email_reminders_enabled, reminder_time, reminder_timezone, skip_weekends, created_at, updated_at)
		VALUES (@user_id,
			COALESCE(CAST(@enabled AS boolean), true),
			COALESCE(CAST(@time AS text), @default_time),
			COALESCE(CAST(@tz AS text), @default_tz),
			COALESCE(CAST(@skip AS boolean), true),
			@now, @now)
		ON CONFLICT (user_id) DO UPDATE SET
			email_reminders_enabled = COALESCE(CAST(@enabled AS boolean), user_settings.email_reminders_enabled),
			reminder_time = COALESCE(CAST(@time AS text), user_settings.reminder_time),
			reminder_timezone = COALESCE(CAST(@tz AS text), user_settings.reminder_timezone),
			skip_weekends = COALESCE(CAST(@skip AS boolean), user_settings.skip_weekends),
			updated_at = EXCLUDED.updated_at
		RETURNING *`,
		map[string]any{
			"user_id":      userID,
			"enabled":      p.EmailRemindersEnabled,
			"time":         p.ReminderTime,
			"tz":           p.ReminderTimezone,
			"skip":         p.SkipWeekends,
			"default_time": models.DefaultReminderTime,
			"default_tz":   models.DefaultReminderTimezone,
			"now":          s.now(),
		},
	).Scan(&st).Error
	if err != nil {
		return nil, fmt.Errorf("patch settings: %w", err)
	}
	return &st, nil
}

// MarkReminderSent records the instant a reminder went out.
func (s *Store) MarkReminderSent(ctx context.Context, userID string, at time.Time) error {
	err := s.db.WithContext(ctx).Exec(
		`UPDATE user_settings SET last_reminder_sent_at = ?, updated_at = ? WHERE user_id = ?`,
		at.UTC(), s.now(), userID,
	).Error
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return nil
}

// ListReminderEnabled returns every row with reminders switched on.
func (s *Store) ListReminderEnabled(ctx context.Context) ([]models.UserSettings, error) {
	var rows []models.UserSettings
	err := s.db.WithContext(ctx).
		Where("email_reminders_enabled = ?", true).
		Order("user_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list reminder settings: %w", err)
	}
	return rows, nil
}
