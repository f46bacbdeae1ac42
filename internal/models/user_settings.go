package models

import "time"

// Reminder defaults applied when a user has no settings row
const (
	DefaultReminderTime     = "18:30"
	DefaultReminderTimezone = "UTC"
)

// UserSettings holds per-user reminder preferences. One row per user at most.
type UserSettings struct {
	UserID                string `gorm:"primaryKey"`
	EmailRemindersEnabled bool   `gorm:"not null"`
	ReminderTime          string `gorm:"not null"` // HH:MM, local to ReminderTimezone
	ReminderTimezone      string `gorm:"not null"`
	SkipWeekends          bool   `gorm:"not null"`
	LastReminderSentAt    *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// TableName implements the GORM tabler interface.
func (UserSettings) TableName() string { return "user_settings" }

// DefaultSettings returns the effective settings for a user without a row
func DefaultSettings(userID string) UserSettings {
	return UserSettings{
		UserID:                userID,
		EmailRemindersEnabled: true,
		ReminderTime:          DefaultReminderTime,
		ReminderTimezone:      DefaultReminderTimezone,
		SkipWeekends:          true,
	}
}
