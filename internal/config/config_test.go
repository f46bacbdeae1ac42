package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	for _, key := range []string{"ENV", "PORT", "MODE", "SESSION_SECRET", "REMINDER_BATCH_SIZE", "AI_TIMEOUT_S", "REMINDER_RETRY_DELAY"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ModeEmbedded, cfg.Mode)
	assert.NotEmpty(t, cfg.SessionSecret)
	assert.Equal(t, 20, cfg.ReminderBatchSize)
	assert.Equal(t, 10*time.Second, cfg.AITimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.ReminderRetryDelay)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ENV", "production")
	t.Setenv("MODE", "Worker")
	t.Setenv("REMINDER_BATCH_SIZE", "5")
	t.Setenv("AI_TIMEOUT_S", "3")
	t.Setenv("AI_STUB_MODE", "true")
	t.Setenv("REMINDER_RETRY_DELAY", "2s")

	cfg := Load()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, ModeWorker, cfg.Mode)
	assert.Equal(t, 5, cfg.ReminderBatchSize)
	assert.Equal(t, 3*time.Second, cfg.AITimeout)
	assert.True(t, cfg.AIStubMode)
	assert.Equal(t, 2*time.Second, cfg.ReminderRetryDelay)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("REMINDER_BATCH_SIZE", "-3")
	t.Setenv("AI_TIMEOUT_S", "soon")
	t.Setenv("AI_STUB_MODE", "maybe")

	cfg := Load()

	assert.Equal(t, 20, cfg.ReminderBatchSize)
	assert.Equal(t, 10*time.Second, cfg.AITimeout)
	assert.False(t, cfg.AIStubMode)
}

func TestEmailConfigured(t *testing.T) {
	cfg := &Config{EmailFrom: "a@b.c"}
	assert.False(t, cfg.EmailConfigured())
	cfg.AWSRegion = "us-east-1"
	assert.True(t, cfg.EmailConfigured())
}

// chdir changes the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
