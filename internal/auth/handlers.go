package auth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/jimdaga/accomplish/internal/apierr"
	"github.com/jimdaga/accomplish/internal/logging"
	"github.com/jimdaga/accomplish/internal/models"
	"github.com/markbates/goth/gothic"
)

// Session keys
const (
	sessionUserID    = "user_id"
	sessionUserEmail = "user_email"
)

// UserStore records logins.
type UserStore interface {
	Upsert(ctx context.Context, u models.User) (*models.User, error)
}

func withProvider(c *gin.Context) {
	q := c.Request.URL.Query()
	q.Set("provider", ProviderGoogle)
	c.Request.URL.RawQuery = q.Encode()
}

// HandleLogin starts the Google OAuth flow.
func HandleLogin(c *gin.Context) {
	withProvider(c)
	gothic.BeginAuthHandler(c.Writer, c.Request)
}

// HandleCallback completes the OAuth flow, records the user and opens a
// session. appURL is where the browser lands afterwards.
func HandleCallback(users UserStore, appURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		withProvider(c)

		gothUser, err := gothic.CompleteUserAuth(c.Writer, c.Request)
		if err != nil {
			slog.Warn("OAuth callback failed", "error", err)
			c.Redirect(http.StatusFound, appURL+"/login?error=auth_failed")
			return
		}

		if _, err := users.Upsert(c.Request.Context(), models.User{
			ID:       gothUser.UserID,
			Email:    gothUser.Email,
			Name:     gothUser.Name,
			Provider: gothUser.Provider,
		}); err != nil {
			slog.Error("Failed to record user", "user_id", gothUser.UserID, "error", err)
			c.Redirect(http.StatusFound, appURL+"/login?error=user_failed")
			return
		}

		session := sessions.Default(c)
		session.Set(sessionUserID, gothUser.UserID)
		session.Set(sessionUserEmail, gothUser.Email)
		if err := session.Save(); err != nil {
			slog.Error("Session save failed", "error", err)
			c.Redirect(http.StatusFound, appURL+"/login?error=session_failed")
			return
		}

		slog.Info("User authenticated", "user_id", gothUser.UserID)
		c.Redirect(http.StatusFound, appURL+"/dashboard")
	}
}

// HandleLogout clears the session.
func HandleLogout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		slog.Warn("Session clear failed", "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// TokenHandler issues a bearer token for the authenticated user, for API
// clients that cannot hold the session cookie.
func TokenHandler(secret string, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			apierr.Respond(c, apierr.BadRequest("Bearer tokens are not configured"))
			return
		}
		expires := time.Now().Add(ttl)
		token, err := IssueToken(secret, c.GetString(logging.UserIDKey), expires)
		if err != nil {
			apierr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "expires_at": expires.UTC()})
	}
}
