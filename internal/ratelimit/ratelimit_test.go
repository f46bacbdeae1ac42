package ratelimit

import (
	"context"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jimdaga/accomplish/internal/database/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const upsertSQL = `ON CONFLICT (user_id, key, window_start) DO UPDATE`

func newTestLimiter(t *testing.T, now time.Time) (*Limiter, sqlmock.Sqlmock) {
	db, mock := dbtest.New(t)
	l := New(db)
	l.now = func() time.Time { return now }
	return l, mock
}

func TestWindowStart(t *testing.T) {
	ts := time.Date(2024, 3, 15, 10, 17, 42, 500, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 15, 10, 17, 0, 0, time.UTC), WindowStart(ts, time.Minute))
	assert.Equal(t, time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC), WindowStart(ts, time.Hour))

	est := ts.In(time.FixedZone("EST", -5*3600))
	assert.True(t, WindowStart(est, time.Minute).Equal(WindowStart(ts, time.Minute)))
}

func TestCheck_AllowsAndReportsRemaining(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 17, 42, 0, time.UTC)
	l, mock := newTestLimiter(t, now)
	start := time.Date(2024, 3, 15, 10, 17, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(upsertSQL)).
		WithArgs("user_1", "ai_enhance", start, now, 10).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	res, err := l.Check(context.Background(), "user_1", AIEnhance)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 6, res.Remaining)
	assert.Equal(t, start.Add(time.Minute), res.ResetAt)
}

func TestCheck_EleventhCallInWindowDenied(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 17, 59, 0, time.UTC)
	l, mock := newTestLimiter(t, now)

	mock.ExpectQuery(regexp.QuoteMeta(upsertSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(10))
	mock.ExpectQuery(regexp.QuoteMeta(upsertSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}))

	res, err := l.Check(context.Background(), "user_1", AIEnhance)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)

	res, err = l.Check(context.Background(), "user_1", AIEnhance)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
}

func TestCheck_NextWindowStartsFresh(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 18, 0, 0, time.UTC)
	l, mock := newTestLimiter(t, now)

	mock.ExpectQuery(regexp.QuoteMeta(upsertSQL)).
		WithArgs("user_1", "ai_enhance", now, now, 10).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	res, err := l.Check(context.Background(), "user_1", AIEnhance)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 9, res.Remaining)
}

func TestCheck_ZeroBudgetDeniesWithoutQuery(t *testing.T) {
	l, _ := newTestLimiter(t, time.Now())
	res, err := l.Check(context.Background(), "user_1", Policy{Key: "off", Max: 0, Window: time.Minute})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestCleanup(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	l, mock := newTestLimiter(t, now)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM rate_limits WHERE window_start < $1`)).
		WithArgs(now.Add(-Retention)).
		WillReturnResult(sqlmock.NewResult(0, 12))

	require.NoError(t, l.Cleanup(context.Background(), Retention))
}

func TestSetHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	SetHeaders(c, Result{Allowed: true, Remaining: 2, ResetAt: time.Unix(1710497880, 0)})
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1710497880", w.Header().Get("X-RateLimit-Reset"))
}
