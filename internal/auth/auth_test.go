package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jimdaga/accomplish/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-jwt-secret"

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(sessions.Sessions("accomplish_session", cookie.NewStore([]byte("session-secret"))))
	r.GET("/session", func(c *gin.Context) {
		s := sessions.Default(c)
		s.Set(sessionUserID, "session-user")
		_ = s.Save()
		c.Status(http.StatusNoContent)
	})
	r.GET("/me", RequireUser(secret), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(logging.UserIDKey))
	})
	return r
}

func get(r http.Handler, path string, header map[string]string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireUser_Bearer(t *testing.T) {
	token, err := IssueToken(secret, "user_42", time.Now().Add(time.Hour))
	require.NoError(t, err)

	w := get(newRouter(), "/me", map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user_42", w.Body.String())
}

func TestRequireUser_Session(t *testing.T) {
	r := newRouter()
	login := get(r, "/session", nil)
	require.NotEmpty(t, login.Result().Cookies())

	w := get(r, "/me", nil, login.Result().Cookies()...)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "session-user", w.Body.String())
}

func TestRequireUser_Rejects(t *testing.T) {
	r := newRouter()
	expired, err := IssueToken(secret, "user_42", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	forged, err := IssueToken("other-secret", "user_42", time.Now().Add(time.Hour))
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}).SignedString([]byte(secret))
	require.NoError(t, err)

	for name, header := range map[string]map[string]string{
		"missing":    nil,
		"not bearer": {"Authorization": "Basic abc"},
		"expired":    {"Authorization": "Bearer " + expired},
		"forged":     {"Authorization": "Bearer " + forged},
		"no subject": {"Authorization": "Bearer " + noSubject},
	} {
		t.Run(name, func(t *testing.T) {
			w := get(r, "/me", header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), `"code":"UNAUTHORIZED"`)
		})
	}
}

func TestRequireCronSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }

	r := gin.New()
	r.GET("/cron", RequireCronSecret("s3cret"), ok)
	assert.Equal(t, http.StatusNoContent, get(r, "/cron", map[string]string{"Authorization": "Bearer s3cret"}).Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/cron", map[string]string{"Authorization": "Bearer wrong"}).Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/cron", nil).Code)

	unconfigured := gin.New()
	unconfigured.GET("/cron", RequireCronSecret(""), ok)
	assert.Equal(t, http.StatusUnauthorized, get(unconfigured, "/cron", map[string]string{"Authorization": "Bearer "}).Code)
}

func TestParseToken_RejectsOtherAlgorithms(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{Subject: "u"}).SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = ParseToken(secret, token)
	assert.Error(t, err)
}
