package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GOOGLE_AI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	_, err := LoadFromEnv()
	require.Error(t, err)
}

func TestLoadFromEnv_PrefersGoogleAIKey(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/oemforge")
	t.Setenv("GOOGLE_AI_API_KEY", "google-key")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("GEMINI_MODEL", "")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "google-key", cfg.GeminiAPIKey)
	assert.Equal(t, "gemini-2.0-flash", cfg.GeminiModel)
}

func TestLoadFromEnv_FallsBackToGeminiKey(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/oemforge")
	t.Setenv("GOOGLE_AI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "gemini-key")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "gemini-key", cfg.GeminiAPIKey)
}

func TestLoadFromEnv_ModelOverride(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/oemforge")
	t.Setenv("GOOGLE_AI_API_KEY", "google-key")
	t.Setenv("GEMINI_MODEL", "gemini-1.5-pro")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-pro", cfg.GeminiModel)
}
