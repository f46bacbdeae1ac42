package settings

import (
	"strings"
	"time"

	"github.com/jimdaga/accomplish/internal/models"
)

// NormalizeTimezone returns tz when the tz database knows it, else UTC.
func NormalizeTimezone(tz string) string {
	tz = strings.TrimSpace(tz)
	if tz == "" || tz == "Local" {
		return models.DefaultReminderTimezone
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return models.DefaultReminderTimezone
	}
	return tz
}

// Location loads tz, falling back to UTC.
func Location(tz string) *time.Location {
	loc, err := time.LoadLocation(NormalizeTimezone(tz))
	if err != nil {
		return time.UTC
	}
	return loc
}

// TodayIn returns the calendar date of now in tz as YYYY-MM-DD.
func TodayIn(tz string, now time.Time) string {
	return now.In(Location(tz)).Format(models.DateLayout)
}
