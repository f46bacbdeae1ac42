package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jimdaga/accomplish/internal/apierr"
	"github.com/jimdaga/accomplish/internal/logging"
)

// RequireUser resolves the caller from the session cookie, else from an
// HS256 bearer token whose sub claim is the user ID. Anything else is 401.
func RequireUser(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, ok := sessions.Default(c).Get(sessionUserID).(string); ok && id != "" {
			c.Set(logging.UserIDKey, id)
			c.Next()
			return
		}

		token, ok := bearer(c)
		if !ok || jwtSecret == "" {
			apierr.Respond(c, apierr.Unauthorized())
			return
		}
		userID, err := ParseToken(jwtSecret, token)
		if err != nil {
			apierr.Respond(c, apierr.Unauthorized())
			return
		}
		c.Set(logging.UserIDKey, userID)
		c.Next()
	}
}

// RequireCronSecret admits only "Authorization: Bearer <secret>". With no
// secret configured every request is refused.
func RequireCronSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearer(c)
		if secret == "" || !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			apierr.Respond(c, apierr.Unauthorized())
			return
		}
		c.Next()
	}
}

func bearer(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// IssueToken signs an HS256 token for userID.
func IssueToken(secret, userID string, expires time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates an HS256 token and returns its subject.
func ParseToken(secret, raw string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}
