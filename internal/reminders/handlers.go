package reminders

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jimdaga/accomplish/internal/apierr"
)

// Runner executes one reminder pass.
type Runner interface {
	Run(ctx context.Context) (Summary, error)
}

// RunHandler triggers a reminder pass. A nil runner means email delivery
// is not configured.
func RunHandler(runner Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		if runner == nil {
			apierr.Respond(c, apierr.BadRequest("Email service not configured"))
			return
		}

		sum, err := runner.Run(c.Request.Context())
		if err != nil {
			apierr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":   "Reminder job completed",
			"processed": sum.Processed,
			"sent":      sum.Sent,
			"skipped":   sum.Skipped,
			"errors":    sum.Errors,
			"timestamp": sum.Timestamp,
		})
	}
}

// DevOnly rejects the request with 403 in production.
func DevOnly(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if production {
			apierr.Respond(c, apierr.Forbidden())
			return
		}
		c.Next()
	}
}
