package identity

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jimdaga/accomplish/internal/database/dbtest"
	"github.com/jimdaga/accomplish/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func newDirectory(t *testing.T) (*Directory, sqlmock.Sqlmock) {
	db, mock := dbtest.New(t)
	d := NewDirectory(db)
	d.now = func() time.Time { return fixedNow }
	return d, mock
}

func TestUpsert(t *testing.T) {
	d, mock := newDirectory(t)
	mock.ExpectQuery(regexp.QuoteMeta(`ON CONFLICT (id) DO UPDATE SET`)).
		WithArgs("google-123", "dev@example.com", "Dev", "google", fixedNow, fixedNow, fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "provider", "last_login_at", "created_at", "updated_at"}).
			AddRow("google-123", "dev@example.com", "Dev", "google", fixedNow, fixedNow.Add(-time.Hour), fixedNow))

	u, err := d.Upsert(context.Background(), models.User{ID: "google-123", Email: "dev@example.com", Name: "Dev", Provider: "google"})
	require.NoError(t, err)
	assert.Equal(t, "dev@example.com", u.Email)
	require.NotNil(t, u.LastLoginAt)
}

func TestEmail(t *testing.T) {
	d, mock := newDirectory(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "email" FROM "users" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("dev@example.com"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "email" FROM "users" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"email"}))

	email, err := d.Email(context.Background(), "google-123")
	require.NoError(t, err)
	assert.Equal(t, "dev@example.com", email)

	email, err = d.Email(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, email)
}

func TestDelete(t *testing.T) {
	d, mock := newDirectory(t)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "users" WHERE id = $1`)).
		WithArgs("google-123").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, d.Delete(context.Background(), "google-123"))
}
