package settings

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jimdaga/accomplish/internal/apierr"
	"github.com/jimdaga/accomplish/internal/logging"
	"github.com/jimdaga/accomplish/internal/models"
	"github.com/jimdaga/accomplish/internal/request"
)

// Timezone hint headers, in order of preference.
var timezoneHeaders = []string{"x-user-timezone", "x-vercel-ip-timezone"}

// TimezoneHint returns the first timezone header sent by the client.
func TimezoneHint(c *gin.Context) string {
	for _, h := range timezoneHeaders {
		if v := c.GetHeader(h); v != "" {
			return v
		}
	}
	return ""
}

type patchRequest struct {
	EmailRemindersEnabled *bool   `json:"email_reminders_enabled"`
	ReminderTime          *string `json:"reminder_time" binding:"omitempty,hhmm"`
	ReminderTimezone      *string `json:"reminder_timezone"`
	SkipWeekends          *bool   `json:"skip_weekends"`
}

func (r *patchRequest) Normalize() Patch {
	return Patch{
		EmailRemindersEnabled: r.EmailRemindersEnabled,
		ReminderTime:          r.ReminderTime,
		ReminderTimezone:      r.ReminderTimezone,
		SkipWeekends:          r.SkipWeekends,
	}
}

type patchLegacyRequest struct {
	EmailRemindersEnabled *bool   `json:"emailRemindersEnabled"`
	ReminderTime          *string `json:"reminderTime" binding:"omitempty,hhmm"`
	ReminderTimezone      *string `json:"reminderTimezone"`
	SkipWeekends          *bool   `json:"skipWeekends"`
}

func (r *patchLegacyRequest) Normalize() Patch {
	return Patch{
		EmailRemindersEnabled: r.EmailRemindersEnabled,
		ReminderTime:          r.ReminderTime,
		ReminderTimezone:      r.ReminderTimezone,
		SkipWeekends:          r.SkipWeekends,
	}
}

type settingsResponse struct {
	EmailRemindersEnabled bool       `json:"email_reminders_enabled"`
	ReminderTime          string     `json:"reminder_time"`
	ReminderTimezone      string     `json:"reminder_timezone"`
	SkipWeekends          bool       `json:"skip_weekends"`
	UpdatedAt             *time.Time `json:"updated_at,omitempty"`
}

func toResponse(st models.UserSettings, withUpdated bool) settingsResponse {
	resp := settingsResponse{
		EmailRemindersEnabled: st.EmailRemindersEnabled,
		ReminderTime:          st.ReminderTime,
		ReminderTimezone:      st.ReminderTimezone,
		SkipWeekends:          st.SkipWeekends,
	}
	if withUpdated {
		updated := st.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}

// GetSettingsHandler returns the effective settings. A user without a row
// gets the defaults, with the client's timezone hint when it is valid.
// Nothing is persisted.
func GetSettingsHandler(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(logging.UserIDKey)

		st, ok, err := store.Get(c.Request.Context(), userID)
		if err != nil {
			apierr.Respond(c, err)
			return
		}
		if !ok {
			defaults := models.DefaultSettings(userID)
			if hint := TimezoneHint(c); hint != "" {
				defaults.ReminderTimezone = NormalizeTimezone(hint)
			}
			c.JSON(http.StatusOK, toResponse(defaults, false))
			return
		}
		c.JSON(http.StatusOK, toResponse(*st, false))
	}
}

// PatchSettingsHandler applies a partial update, creating the row if needed.
func PatchSettingsHandler(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(logging.UserIDKey)

		patch, err := request.Bind[Patch](c, &patchRequest{}, &patchLegacyRequest{})
		if err != nil {
			apierr.Respond(c, err)
			return
		}

		st, err := store.Patch(c.Request.Context(), userID, patch)
		if err != nil {
			apierr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, toResponse(*st, true))
	}
}
