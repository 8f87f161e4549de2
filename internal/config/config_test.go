package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "tok")
	t.Setenv("GOOGLE_CREDENTIALS", "creds.json")
	t.Setenv("GOOGLE_SHEET_NAME", "https://docs.google.com/spreadsheets/d/abc/edit")
	t.Setenv("GEMINI_FALLBACK_MODELS", "")
	t.Setenv("SYNC_INTERVAL_MINUTES", "")
	t.Setenv("GEMINI_MODEL", "")
	t.Setenv("DATA_DIR", "")
	t.Setenv("STARTUP_CHECK_SHEET", "")

	cfg := Load()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.Model)
	assert.Equal(t, []string{"gemini-1.5-flash"}, cfg.Gemini.FallbackModels)
	assert.Equal(t, 5*time.Minute, cfg.SyncInterval)
	assert.Equal(t, "data/moviebot.db", cfg.DBPath())
	assert.True(t, cfg.StartupCheckSheet)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GEMINI_FALLBACK_MODELS", "a, b ,,c")
	t.Setenv("GEMINI_MAX_RETRIES", "5")
	t.Setenv("MISTRALAPI", "")
	t.Setenv("MISTRAL_API_KEY", "alias")
	t.Setenv("STARTUP_CHECK_SHEET", "false")
	t.Setenv("SYNC_INTERVAL_MINUTES", "not-a-number")

	cfg := Load()
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Gemini.FallbackModels)
	assert.Equal(t, 5, cfg.Gemini.MaxRetries)
	assert.Equal(t, "alias", cfg.Mistral.APIKey)
	assert.False(t, cfg.StartupCheckSheet)
	assert.Equal(t, 5*time.Minute, cfg.SyncInterval)
}

func TestValidateMissing(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("GOOGLE_CREDENTIALS", "")
	t.Setenv("GOOGLE_SHEET_NAME", "sheet")

	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEGRAM_TOKEN")
	assert.Contains(t, err.Error(), "GOOGLE_CREDENTIALS")
	assert.NotContains(t, err.Error(), "GOOGLE_SHEET_NAME")
}

func TestWarnings(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("MISTRALAPI", "")
	t.Setenv("MISTRAL_API_KEY", "")
	t.Setenv("TMDB_API_KEY", "x")

	warnings := Load().Warnings()
	assert.Len(t, warnings, 2)
}
