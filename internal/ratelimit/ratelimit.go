// Package ratelimit implements a fixed-window per-user request counter
// stored in PostgreSQL.
//
// Windows are aligned to the Unix epoch, so a client can spend up to twice
// the nominal budget across a window boundary. That is accepted.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Policy names an action and its budget.
type Policy struct {
	Key    string
	Max    int
	Window time.Duration
}

var (
	AIEnhance      = Policy{Key: "ai_enhance", Max: 10, Window: time.Minute}
	GenerateReview = Policy{Key: "generate_review", Max: 3, Window: time.Minute}
	GenerateResume = Policy{Key: "generate_resume", Max: 3, Window: time.Minute}
)

// Retention is how long windows are kept before Cleanup removes them.
const Retention = 24 * time.Hour

// Result is the outcome of one Check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter counts requests in the rate_limits table.
type Limiter struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Limiter {
	return &Limiter{db: db, now: time.Now}
}

// WindowStart floors t to a multiple of window since the Unix epoch.
func WindowStart(t time.Time, window time.Duration) time.Time {
	ns := t.UnixNano() / int64(window) * int64(window)
	return time.Unix(0, ns).UTC()
}

// Check records one request for userID under p and reports whether it fits
// the budget. The increment and the budget test happen in one statement, so
// concurrent callers can never push the count past p.Max.
func (l *Limiter) Check(ctx context.Context, userID string, p Policy) (Result, error) {
	now := l.now()
	start := WindowStart(now, p.Window)
	res := Result{ResetAt: start.Add(p.Window)}
	if p.Max <= 0 {
		return res, nil
	}

	var counts []int
	err := l.db.WithContext(ctx).Raw(`
		INSERT INTO rate_limits (user_id, key, window_start, count, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT (user_id, key, window_start) DO UPDATE
			SET count = rate_limits.count + 1, updated_at = EXCLUDED.updated_at
			WHERE rate_limits.count < ?
		RETURNING count`,
		userID, p.Key, start, now.UTC(), p.Max,
	).Scan(&counts).Error
	if err != nil {
		return res, fmt.Errorf("rate limit check: %w", err)
	}

	if len(counts) == 0 {
		return res, nil
	}
	res.Allowed = true
	res.Remaining = max(p.Max-counts[0], 0)
	return res, nil
}

// Cleanup deletes windows that started more than olderThan ago.
func (l *Limiter) Cleanup(ctx context.Context, olderThan time.Duration) error {
	cutoff := l.now().Add(-olderThan).UTC()
	if err := l.db.WithContext(ctx).Exec(`DELETE FROM rate_limits WHERE window_start < ?`, cutoff).Error; err != nil {
		return fmt.Errorf("rate limit cleanup: %w", err)
	}
	return nil
}

// SetHeaders exposes the outcome to the client.
func SetHeaders(c *gin.Context, r Result) {
	c.Header("X-RateLimit-Remaining", strconv.Itoa(r.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(r.ResetAt.Unix(), 10))
}
