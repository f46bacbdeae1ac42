// Package identity keeps the local copy of identity-provider accounts.
package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/jimdaga/accomplish/internal/models"
	"gorm.io/gorm"
)

// Directory reads and writes the users table.
type Directory struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Upsert records a successful login. The provider's user ID is the key, so
// a changed email address updates the existing row.
func (d *Directory) Upsert(ctx context.Context, u models.User) (*models.User, error) {
	now := d.now()
	var out models.User
	err := d.db.WithContext(ctx).Raw(`
		INSERT INTO users (id, email, name, provider, last_login_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			provider = EXCLUDED.provider,
			last_login_at = EXCLUDED.last_login_at,
			updated_at = EXCLUDED.updated_at
		RETURNING *`,
		u.ID, u.Email, u.Name, u.Provider, now, now, now,
	).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return &out, nil
}

// Email returns the user's address, or "" when the user is unknown.
func (d *Directory) Email(ctx context.Context, userID string) (string, error) {
	var emails []string
	err := d.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Limit(1).
		Pluck("email", &emails).Error
	if err != nil {
		return "", fmt.Errorf("lookup user email: %w", err)
	}
	if len(emails) == 0 {
		return "", nil
	}
	return emails[0], nil
}

// Delete removes the local identity record.
func (d *Directory) Delete(ctx context.Context, userID string) error {
	if err := d.db.WithContext(ctx).Where("id = ?", userID).Delete(&models.User{}).Error; err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
