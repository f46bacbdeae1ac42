// Package account removes everything the service stores about a user.
package account

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jimdaga/accomplish/internal/apierr"
	"github.com/jimdaga/accomplish/internal/logging"
	"github.com/jimdaga/accomplish/internal/tracking"
	"gorm.io/gorm"
)

// userTables are purged in order. Enrichments go with their entries through
// the foreign key cascade.
var userTables = []string{"generated_outputs", "rate_limits", "user_settings", "entries"}

// IdentityDeleter removes the user's identity record.
type IdentityDeleter interface {
	Delete(ctx context.Context, userID string) error
}

// Service deletes accounts.
type Service struct {
	db       *gorm.DB
	identity IdentityDeleter
	reporter tracking.Reporter
}

// NewService builds a Service. A nil identity keeps identity records.
func NewService(db *gorm.DB, identity IdentityDeleter, reporter tracking.Reporter) *Service {
	if reporter == nil {
		reporter = tracking.Nop{}
	}
	return &Service{db: db, identity: identity, reporter: reporter}
}

// Delete removes all of the user's rows in one transaction, then the
// identity record when configured. A failed identity deletion is reported
// but does not fail the call.
func (s *Service) Delete(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range userTables {
			if err := tx.Exec("DELETE FROM "+table+" WHERE user_id = ?", userID).Error; err != nil {
				return fmt.Errorf("delete %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	if s.identity != nil {
		if err := s.identity.Delete(ctx, userID); err != nil {
			slog.Error("Failed to delete identity record", "user_id", userID, "error", err)
			s.reporter.Capture(ctx, err, map[string]string{"scope": "account_delete", "user_id": userID})
		}
	}

	slog.Info("Account deleted", "user_id", userID)
	return nil
}

// DeleteHandler serves DELETE /api/account/delete.
func DeleteHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), c.GetString(logging.UserIDKey)); err != nil {
			apierr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Account deleted"})
	}
}
