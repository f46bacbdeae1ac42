package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jimdaga/accomplish/internal/account"
	"github.com/jimdaga/accomplish/internal/ai"
	"github.com/jimdaga/accomplish/internal/analytics"
	"github.com/jimdaga/accomplish/internal/auth"
	"github.com/jimdaga/accomplish/internal/config"
	"github.com/jimdaga/accomplish/internal/database"
	"github.com/jimdaga/accomplish/internal/entries"
	"github.com/jimdaga/accomplish/internal/health"
	"github.com/jimdaga/accomplish/internal/identity"
	"github.com/jimdaga/accomplish/internal/logging"
	"github.com/jimdaga/accomplish/internal/mailer"
	"github.com/jimdaga/accomplish/internal/prompts"
	"github.com/jimdaga/accomplish/internal/ratelimit"
	"github.com/jimdaga/accomplish/internal/reminders"
	"github.com/jimdaga/accomplish/internal/reports"
	"github.com/jimdaga/accomplish/internal/request"
	"github.com/jimdaga/accomplish/internal/server"
	"github.com/jimdaga/accomplish/internal/settings"
	"github.com/jimdaga/accomplish/internal/tracking"
	"github.com/jimdaga/accomplish/internal/worker"
	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	slog.Info("Starting accomplish", "mode", cfg.Mode, "env", cfg.Env, "version", health.Version)

	reporter, err := tracking.NewSentry(cfg.SentryDSN, cfg.Env, health.Version)
	if err != nil {
		log.Fatalf("Failed to initialise error tracking: %v", err)
	}
	defer reporter.Flush(2 * time.Second)

	db, err := database.Init(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, closeRunner := newReminderRunner(ctx, cfg, db, reporter)
	defer closeRunner()

	switch cfg.Mode {
	case config.ModeWorker:
		if cfg.RedisURL == "" {
			log.Fatal("REDIS_URL is required in worker mode")
		}
		stopScheduler, err := worker.StartScheduler(cfg)
		if err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
		defer stopScheduler()
		if err := worker.Run(cfg, runner); err != nil {
			log.Fatalf("Worker stopped: %v", err)
		}

	case config.ModeServer, config.ModeEmbedded:
		if err := database.RunMigrations(db); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}

		if cfg.Mode == config.ModeEmbedded {
			stopWorker := startEmbeddedWorker(cfg, runner)
			defer stopWorker()
		}

		router, err := newRouter(cfg, db, reporter, logger, runner)
		if err != nil {
			log.Fatalf("Failed to build router: %v", err)
		}
		serve(ctx, cfg, router)

	default:
		log.Fatalf("Unknown MODE %q (expected server, worker or embedded)", cfg.Mode)
	}

	slog.Info("Shutdown complete")
}

// newReminderRunner wires the dispatcher. The returned runner is a true nil
// interface when email is not configured.
func newReminderRunner(ctx context.Context, cfg *config.Config, db *gorm.DB, reporter tracking.Reporter) (reminders.Runner, func()) {
	events, err := analytics.NewPublisher(cfg.RedisURL)
	if err != nil {
		slog.Warn("Analytics stream unavailable", "error", err)
		events = nil
	}
	closer := func() {
		if err := events.Close(); err != nil {
			slog.Warn("Failed to close analytics publisher", "error", err)
		}
	}

	sender, err := mailer.NewSESSender(ctx, cfg.AWSRegion, cfg.EmailFrom)
	if err != nil {
		if errors.Is(err, mailer.ErrNotConfigured) {
			slog.Warn("Email not configured, reminders disabled")
		} else {
			slog.Error("Failed to initialise email sender", "error", err)
		}
		return nil, closer
	}

	dispatcher := reminders.NewDispatcher(
		settings.NewStore(db),
		entries.NewStore(db),
		identity.NewDirectory(db),
		sender,
		events,
		reporter,
		reminders.Options{
			BatchSize:  cfg.ReminderBatchSize,
			RetryDelay: cfg.ReminderRetryDelay,
			AppURL:     cfg.AppURL,
		},
	)
	return dispatcher, closer
}

func startEmbeddedWorker(cfg *config.Config, runner reminders.Runner) func() {
	if cfg.RedisURL == "" {
		slog.Warn("REDIS_URL not set, scheduled reminders disabled")
		return func() {}
	}

	stopScheduler, err := worker.StartScheduler(cfg)
	if err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	stopWorker, err := worker.Start(cfg, runner)
	if err != nil {
		stopScheduler()
		log.Fatalf("Failed to start worker: %v", err)
	}
	return func() {
		stopScheduler()
		stopWorker()
	}
}

func newRouter(cfg *config.Config, db *gorm.DB, reporter tracking.Reporter, logger *slog.Logger, runner reminders.Runner) (http.Handler, error) {
	request.Setup()
	auth.InitProviders(cfg)

	registry, err := prompts.Default()
	if err != nil {
		return nil, err
	}
	enhance := registry.MustGet(prompts.Enhance)

	primary, fallback := ai.ProvidersFromConfig(cfg)
	adapter, err := ai.NewAdapter(primary, fallback, cfg.AITimeout, ai.EnhancePrompt{
		System:    enhance.System,
		MaxTokens: enhance.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	directory := identity.NewDirectory(db)
	var identities account.IdentityDeleter
	if cfg.DeleteIdentityOnAccountDelete {
		identities = directory
	}

	entryStore := entries.NewStore(db)
	limiter := ratelimit.New(db)
	outputs := reports.NewStore(db)

	return server.NewRouter(cfg, server.Deps{
		Logger:    logger,
		Reporter:  reporter,
		Settings:  settings.NewStore(db),
		Entries:   entryStore,
		Limiter:   limiter,
		Enhancer:  adapter,
		Reports:   reports.NewGenerator(entryStore, limiter, adapter, registry, outputs, cfg.AIMaxOutputTokens),
		Outputs:   outputs,
		Reminders: runner,
		Account:   account.NewService(db, identities, reporter),
		Users:     directory,
	}), nil
}

func serve(ctx context.Context, cfg *config.Config, handler http.Handler) {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown failed", "error", err)
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}
}
