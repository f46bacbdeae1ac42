// Package server assembles the HTTP surface: middleware, sessions and the
// route table.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/jimdaga/accomplish/internal/account"
	"github.com/jimdaga/accomplish/internal/apierr"
	"github.com/jimdaga/accomplish/internal/auth"
	"github.com/jimdaga/accomplish/internal/config"
	"github.com/jimdaga/accomplish/internal/entries"
	"github.com/jimdaga/accomplish/internal/export"
	"github.com/jimdaga/accomplish/internal/health"
	"github.com/jimdaga/accomplish/internal/logging"
	"github.com/jimdaga/accomplish/internal/models"
	"github.com/jimdaga/accomplish/internal/reminders"
	"github.com/jimdaga/accomplish/internal/reports"
	"github.com/jimdaga/accomplish/internal/settings"
	"github.com/jimdaga/accomplish/internal/tracking"
)

const (
	sessionName = "accomplish_session"
	tokenTTL    = 24 * time.Hour
)

// Deps are the services the routes need. Reminders is nil when email is
// not configured.
type Deps struct {
	Logger    *slog.Logger
	Reporter  tracking.Reporter
	Settings  *settings.Store
	Entries   *entries.Store
	Limiter   entries.Limiter
	Enhancer  entries.Enhancer
	Reports   *reports.Generator
	Outputs   *reports.Store
	Reminders reminders.Runner
	Account   *account.Service
	Users     auth.UserStore
}

// securityHeaders sets the framing, sniffing and referrer policy on every
// response.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

func sessionStore(cfg *config.Config) sessions.Store {
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	return store
}

// NewRouter builds the gin engine.
func NewRouter(cfg *config.Config, d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Reporter == nil {
		d.Reporter = tracking.Nop{}
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		securityHeaders(),
		logging.RequestLogger(d.Logger),
		tracking.Middleware(d.Reporter),
		apierr.Middleware(cfg.IsDevelopment()),
		sessions.Sessions(sessionName, sessionStore(cfg)),
	)
	r.NoRoute(func(c *gin.Context) {
		apierr.Respond(c, apierr.NotFound("Route"))
	})

	r.GET("/auth/login", auth.HandleLogin)
	r.GET("/auth/callback", auth.HandleCallback(d.Users, cfg.AppURL))
	r.POST("/auth/logout", auth.HandleLogout)

	api := r.Group("/api")
	api.GET("/health", gin.WrapF(health.Handler))

	cron := api.Group("/cron")
	cron.POST("/reminders", auth.RequireCronSecret(cfg.CronSecret), reminders.RunHandler(d.Reminders))
	cron.GET("/reminders",
		reminders.DevOnly(cfg.IsProduction()),
		auth.RequireCronSecret(cfg.CronSecret),
		reminders.RunHandler(d.Reminders),
	)

	user := api.Group("", auth.RequireUser(cfg.AuthJWTSecret))
	user.GET("/auth/token", auth.TokenHandler(cfg.AuthJWTSecret, tokenTTL))

	user.GET("/settings", settings.GetSettingsHandler(d.Settings))
	user.PATCH("/settings", settings.PatchSettingsHandler(d.Settings))

	user.GET("/entries/today", entries.TodayHandler(d.Entries, d.Settings))
	user.GET("/entries", entries.ListEntriesHandler(d.Entries))
	user.POST("/entries", entries.CreateEntryHandler(d.Entries, d.Settings))
	user.GET("/entries/:id", entries.GetEntryHandler(d.Entries))
	user.PATCH("/entries/:id", entries.UpdateEntryHandler(d.Entries))
	user.DELETE("/entries/:id", entries.DeleteEntryHandler(d.Entries))
	user.GET("/entries/:id/enrichments", entries.EnrichmentHistoryHandler(d.Entries))

	user.POST("/ai/enhance", entries.EnhanceHandler(d.Entries, d.Limiter, d.Enhancer))

	user.POST("/generate", reports.GenerateTypedHandler(d.Reports))
	user.POST("/generate/review", reports.GenerateHandler(d.Reports, models.OutputTypeReview))
	user.POST("/generate/resume", reports.GenerateHandler(d.Reports, models.OutputTypeResume))
	user.GET("/generate/outputs", reports.ListOutputsHandler(d.Outputs))
	user.GET("/generate/outputs/:id", reports.GetOutputHandler(d.Outputs))

	user.DELETE("/account/delete", account.DeleteHandler(d.Account))
	user.POST("/export/docx", export.DocxHandler)

	return r
}
