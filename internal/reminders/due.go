// Package reminders sends the daily "log your day" email to users who have
// not written an entry yet.
package reminders

import (
	"time"

	"github.com/jimdaga/accomplish/internal/models"
	"github.com/jimdaga/accomplish/internal/request"
	"github.com/jimdaga/accomplish/internal/settings"
)

// Tolerance is how far, either side, from the configured reminder time a
// run may still send.
const Tolerance = 30 * time.Minute

// Skip reasons
const (
	ReasonNotDue      = "not_due"
	ReasonWeekend     = "weekend"
	ReasonAlreadySent = "already_sent"
	ReasonHasEntry    = "has_entry"
	ReasonNoEmail     = "no_email"
)

// Due decides, from settings alone, whether a reminder should go out at now.
// It returns the skip reason when it should not. The window does not wrap
// around midnight.
func Due(st models.UserSettings, now time.Time) (bool, string) {
	local := now.In(settings.Location(st.ReminderTimezone))

	reminderMinutes, ok := minuteOfDay(st.ReminderTime)
	if !ok {
		return false, ReasonNotDue
	}
	nowMinutes := local.Hour()*60 + local.Minute()
	diff := nowMinutes - reminderMinutes
	if diff < 0 {
		diff = -diff
	}
	if time.Duration(diff)*time.Minute > Tolerance {
		return false, ReasonNotDue
	}

	if st.SkipWeekends {
		if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return false, ReasonWeekend
		}
	}

	if st.LastReminderSentAt != nil {
		today := local.Format(models.DateLayout)
		if settings.TodayIn(st.ReminderTimezone, *st.LastReminderSentAt) == today {
			return false, ReasonAlreadySent
		}
	}
	return true, ""
}

func minuteOfDay(hhmm string) (int, bool) {
	if !request.IsClock(hhmm) {
		return 0, false
	}
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
