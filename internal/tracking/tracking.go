// Package tracking forwards errors to an external error tracker.
package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
)

const contextKey = "tracking.reporter"

// Reporter captures errors out of band.
type Reporter interface {
	Capture(ctx context.Context, err error, tags map[string]string)
	Flush(timeout time.Duration) bool
}

// Nop discards everything.
type Nop struct{}

func (Nop) Capture(context.Context, error, map[string]string) {}
func (Nop) Flush(time.Duration) bool                           { return true }

// Sentry reports through the sentry-go SDK.
type Sentry struct{}

// NewSentry initialises the Sentry SDK. An empty DSN returns a Nop reporter.
func NewSentry(dsn, environment, release string) (Reporter, error) {
	if dsn == "" {
		return Nop{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialise sentry: %w", err)
	}
	return Sentry{}, nil
}

func (Sentry) Capture(ctx context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		hub.CaptureException(err)
	})
}

func (Sentry) Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// Middleware makes r available to handlers through From.
func Middleware(r Reporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(contextKey, r)
		c.Next()
	}
}

// From returns the reporter installed by Middleware, or Nop.
func From(c *gin.Context) Reporter {
	if v, ok := c.Get(contextKey); ok {
		if r, ok := v.(Reporter); ok {
			return r
		}
	}
	return Nop{}
}
