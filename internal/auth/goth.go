package auth

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/jimdaga/accomplish/internal/config"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
)

// ProviderGoogle is the only identity provider wired in.
const ProviderGoogle = "google"

// InitProviders configures goth. Without Google credentials login is
// disabled but bearer tokens still work.
func InitProviders(cfg *config.Config) {
	// gothic keeps OAuth state in its own gorilla store, separate from the
	// gin-contrib session. The default Secure=true breaks plain-HTTP localhost.
	gothStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	gothStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
	gothic.Store = gothStore

	if cfg.GoogleClientID == "" {
		slog.Warn("GOOGLE_CLIENT_ID not set, OAuth login is disabled")
		return
	}

	goth.UseProviders(
		google.New(
			cfg.GoogleClientID,
			cfg.GoogleClientSecret,
			cfg.GoogleCallbackURL,
			"email",
			"profile",
		),
	)
	slog.Info("Goth providers initialized", "providers", ProviderGoogle)
}
