package reminders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jimdaga/accomplish/internal/mailer"
	"github.com/jimdaga/accomplish/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Friday 2024-03-15 18:30 in New York.
var fridayEvening = time.Date(2024, 3, 15, 22, 30, 0, 0, time.UTC)

func userSettings(id string) models.UserSettings {
	return models.UserSettings{
		UserID:                id,
		EmailRemindersEnabled: true,
		ReminderTime:          "18:30",
		ReminderTimezone:      "America/New_York",
		SkipWeekends:          true,
	}
}

func TestDue(t *testing.T) {
	st := userSettings("u")

	ok, _ := Due(st, fridayEvening)
	assert.True(t, ok)

	ok, _ = Due(st, fridayEvening.Add(30*time.Minute))
	assert.True(t, ok, "edge of tolerance is inclusive")

	ok, reason := Due(st, fridayEvening.Add(31*time.Minute))
	assert.False(t, ok)
	assert.Equal(t, ReasonNotDue, reason)

	ok, _ = Due(st, fridayEvening.Add(-30*time.Minute))
	assert.True(t, ok, "window is inclusive before the reminder time too")

	ok, reason = Due(st, fridayEvening.Add(-31*time.Minute))
	assert.False(t, ok)
	assert.Equal(t, ReasonNotDue, reason)

	ok, reason = Due(st, fridayEvening.AddDate(0, 0, 1))
	assert.False(t, ok)
	assert.Equal(t, ReasonWeekend, reason)

	st.SkipWeekends = false
	ok, _ = Due(st, fridayEvening.AddDate(0, 0, 1))
	assert.True(t, ok)
}

func TestDue_AlreadySentTodayLocal(t *testing.T) {
	st := userSettings("u")

	// 13:00 UTC is 09:00 in New York on the same local day.
	sentToday := time.Date(2024, 3, 15, 13, 0, 0, 0, time.UTC)
	st.LastReminderSentAt = &sentToday
	ok, reason := Due(st, fridayEvening)
	assert.False(t, ok)
	assert.Equal(t, ReasonAlreadySent, reason)

	// 02:00 UTC on the 15th is still the 14th in New York.
	sentYesterday := time.Date(2024, 3, 15, 2, 0, 0, 0, time.UTC)
	st.LastReminderSentAt = &sentYesterday
	ok, _ = Due(st, fridayEvening)
	assert.True(t, ok)
}

func TestDue_InvalidStoredTime(t *testing.T) {
	st := userSettings("u")
	st.ReminderTime = "25:99"
	ok, reason := Due(st, fridayEvening)
	assert.False(t, ok)
	assert.Equal(t, ReasonNotDue, reason)
}

type fakeSettings struct {
	users   []models.UserSettings
	listErr error

	mu     sync.Mutex
	marked map[string]time.Time
}

func (f *fakeSettings) ListReminderEnabled(ctx context.Context) ([]models.UserSettings, error) {
	return f.users, f.listErr
}

func (f *fakeSettings) MarkReminderSent(ctx context.Context, userID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.marked == nil {
		f.marked = map[string]time.Time{}
	}
	f.marked[userID] = at
	return nil
}

type fakeEntries struct {
	withEntry map[string]bool
	dates     sync.Map
}

func (f *fakeEntries) ExistsForDate(ctx context.Context, userID, date string) (bool, error) {
	f.dates.Store(userID, date)
	if userID == "panics" {
		panic("boom")
	}
	return f.withEntry[userID], nil
}

type fakeEmails struct {
	mu       sync.Mutex
	failures map[string]int
	calls    map[string]int
}

func (f *fakeEmails) Email(ctx context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[userID]++
	if f.failures[userID] > 0 {
		f.failures[userID]--
		return "", errors.New("identity provider unavailable")
	}
	if userID == "no-email" {
		return "", nil
	}
	return userID + "@example.com", nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	fail bool
}

func (f *fakeSender) Send(ctx context.Context, msg mailer.Message) error {
	if f.fail {
		return errors.New("ses throttled")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

type fakeAnalytics struct {
	mu     sync.Mutex
	events []string
	props  map[string]any
}

func (f *fakeAnalytics) Capture(ctx context.Context, userID, event string, props map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, userID+":"+event)
	f.props = props
	return nil
}

type fakeReporter struct {
	mu       sync.Mutex
	captured []error
}

func (f *fakeReporter) Capture(ctx context.Context, err error, tags map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captured = append(f.captured, err)
}

func (f *fakeReporter) Flush(time.Duration) bool { return true }

func TestRun_CountsEveryOutcome(t *testing.T) {
	wrote := userSettings("wrote")
	notDue := userSettings("not-due")
	notDue.ReminderTime = "09:00"

	st := &fakeSettings{users: []models.UserSettings{
		userSettings("due"), wrote, notDue, userSettings("no-email"), userSettings("panics"), userSettings("flaky"),
	}}
	entries := &fakeEntries{withEntry: map[string]bool{"wrote": true}}
	emails := &fakeEmails{failures: map[string]int{"flaky": 2}}
	sender := &fakeSender{}
	events := &fakeAnalytics{}
	reporter := &fakeReporter{}

	d := NewDispatcher(st, entries, emails, sender, events, reporter, Options{BatchSize: 2, AppURL: "https://accomplish.today"})
	d.now = func() time.Time { return fridayEvening }

	sum, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, sum.Processed)
	assert.Equal(t, 2, sum.Sent)
	assert.Equal(t, 3, sum.Skipped)
	assert.Equal(t, 1, sum.Errors)
	assert.Equal(t, fridayEvening, sum.Timestamp)

	assert.Len(t, sender.sent, 2)
	assert.Equal(t, fridayEvening, st.marked["due"])
	assert.Equal(t, fridayEvening, st.marked["flaky"])
	assert.Equal(t, 3, emails.calls["flaky"])
	assert.ElementsMatch(t, []string{"due:reminder_sent", "flaky:reminder_sent"}, events.events)
	assert.Equal(t, "America/New_York", events.props["timezone"])
	require.Len(t, reporter.captured, 1)
	assert.ErrorContains(t, reporter.captured[0], "panic")

	date, _ := entries.dates.Load("due")
	assert.Equal(t, "2024-03-15", date)
}

func TestRun_RetriesAreBounded(t *testing.T) {
	st := &fakeSettings{users: []models.UserSettings{userSettings("flaky")}}
	emails := &fakeEmails{failures: map[string]int{"flaky": 5}}
	reporter := &fakeReporter{}

	d := NewDispatcher(st, &fakeEntries{}, emails, &fakeSender{}, nil, reporter, Options{RetryDelay: time.Millisecond})
	d.now = func() time.Time { return fridayEvening }

	sum, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Errors)
	assert.Equal(t, 3, emails.calls["flaky"])
	assert.Empty(t, st.marked)
}

func TestRun_SendFailureIsNotMarked(t *testing.T) {
	st := &fakeSettings{users: []models.UserSettings{userSettings("due")}}
	d := NewDispatcher(st, &fakeEntries{}, &fakeEmails{}, &fakeSender{fail: true}, nil, nil, Options{})
	d.now = func() time.Time { return fridayEvening }

	sum, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Errors)
	assert.Zero(t, sum.Sent)
	assert.Empty(t, st.marked)
}

func TestRun_ListFailureAborts(t *testing.T) {
	st := &fakeSettings{listErr: errors.New("db down")}
	d := NewDispatcher(st, &fakeEntries{}, &fakeEmails{}, &fakeSender{}, nil, nil, Options{})

	_, err := d.Run(context.Background())
	assert.ErrorContains(t, err, "db down")
}

type fakeRunner struct {
	sum Summary
	err error
}

func (f *fakeRunner) Run(ctx context.Context) (Summary, error) { return f.sum, f.err }

func serve(t *testing.T, h ...gin.HandlerFunc) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/cron/reminders", h...)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/cron/reminders", nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestRunHandler(t *testing.T) {
	w, body := serve(t, RunHandler(&fakeRunner{sum: Summary{Processed: 3, Sent: 1, Skipped: 2, Timestamp: fridayEvening}}))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Reminder job completed", body["message"])
	assert.EqualValues(t, 3, body["processed"])
	assert.EqualValues(t, 0, body["errors"])

	w, body = serve(t, RunHandler(nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email service not configured", body["error"])

	w, _ = serve(t, RunHandler(&fakeRunner{err: fmt.Errorf("list reminder users: %w", errors.New("db down"))}))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestDevOnly(t *testing.T) {
	w, body := serve(t, DevOnly(true), RunHandler(&fakeRunner{}))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", body["code"])

	w, _ = serve(t, DevOnly(false), RunHandler(&fakeRunner{}))
	assert.Equal(t, http.StatusOK, w.Code)
}
