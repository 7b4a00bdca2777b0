// Package config loads the pipeline's environment-driven configuration
// once at startup, following the teacher's DefaultConfig()+env-override
// pattern but trimmed to the handful of knobs this pipeline exposes.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds every setting the pipeline reads at startup.
type Config struct {
	// DatabaseURL is the Postgres DSN the store connects to.
	DatabaseURL string

	// GeminiAPIKey is read from GOOGLE_AI_API_KEY or GEMINI_API_KEY.
	GeminiAPIKey string

	// GeminiModel defaults to "gemini-2.0-flash".
	GeminiModel string

	// FuzzyThreshold is the canonicalizer/validator acceptance ratio for
	// Ratcliff/Obershelp fuzzy matches. Surfaced as configuration per
	// spec.md §9 ("surface it as configuration so test suites can pin it").
	FuzzyThreshold float64

	// RateLimitInterval is the minimum sleep between successful LLM calls.
	RateLimitInterval time.Duration

	// HTTPMaxRetries bounds the LLM client's inner transient-failure retry
	// loop (HTTP 429/500/503).
	HTTPMaxRetries int

	// HTTPBackoffBase is the base of the exponential backoff:
	// base * 2^attempt seconds.
	HTTPBackoffBase time.Duration

	// ParseMaxAttempts bounds the outer request-reissue loop triggered by
	// unrepairable JSON.
	ParseMaxAttempts int

	// MaxOutputTokens is the default LLM token cap, reducible per call.
	MaxOutputTokens int
}

// Default returns the pipeline's baseline configuration before environment
// overrides are applied.
func Default() *Config {
	return &Config{
		GeminiModel:       "gemini-2.0-flash",
		FuzzyThreshold:    0.80,
		RateLimitInterval: 1500 * time.Millisecond,
		HTTPMaxRetries:    5,
		HTTPBackoffBase:   1 * time.Second,
		ParseMaxAttempts:  2,
		MaxOutputTokens:   16384,
	}
}

// LoadFromEnv builds a Config from environment variables, applying them on
// top of Default(). It is the single point at which the process reads its
// environment (spec.md §6: "read once at startup").
func LoadFromEnv() (*Config, error) {
	c := Default()
	c.applyEnvOverrides()

	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if c.GeminiAPIKey == "" {
		return nil, fmt.Errorf("one of GOOGLE_AI_API_KEY or GEMINI_API_KEY is required")
	}
	return c, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}

	// GOOGLE_AI_API_KEY takes priority, matching the spec's listed order;
	// GEMINI_API_KEY is the fallback.
	if v := os.Getenv("GOOGLE_AI_API_KEY"); v != "" {
		c.GeminiAPIKey = v
	} else if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.GeminiAPIKey = v
	}

	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		c.GeminiModel = v
	}
}
