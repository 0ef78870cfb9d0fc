package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"DB_URL":     "postgres://localhost/astro",
		"JWT_SECRET": "secret",
	}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "astrochat", cfg.JWTIssuer)
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.AllowedOrigins)
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
	assert.False(t, cfg.TriggerOverride)
	assert.Nil(t, cfg.TriggerPrefixes)
	assert.Equal(t, 50*time.Millisecond, cfg.RevealInterval)
	assert.Equal(t, time.Minute, cfg.FreshWindow)
	assert.Equal(t, 50, cfg.HistoryLimit)
	assert.Equal(t, 1, cfg.FreeDailyQuestions)
	assert.Equal(t, 10, cfg.PremiumDailyQuestions)
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"PORT":                    "9090",
		"DB_URL":                  "postgres://localhost/astro",
		"JWT_SECRET":              "secret",
		"ALLOWED_ORIGINS":         "https://a.example, https://b.example,",
		"ORACLE_TRIGGER_OVERRIDE": "true",
		"ORACLE_TRIGGER_PREFIXES": "SELECT, open sesame",
		"REVEAL_INTERVAL":         "10ms",
		"FRESH_WINDOW":            "2m",
		"FREE_DAILY_QUESTIONS":    "3",
		"ASTROLOGER_PANEL_TOKEN":  "panel",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.TriggerOverride)
	assert.Equal(t, []string{"SELECT", "open sesame"}, cfg.TriggerPrefixes)
	assert.Equal(t, 10*time.Millisecond, cfg.RevealInterval)
	assert.Equal(t, 2*time.Minute, cfg.FreshWindow)
	assert.Equal(t, 3, cfg.FreeDailyQuestions)
	assert.Equal(t, "panel", cfg.PanelToken)
}

func TestFromEnvErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"missing_db_url", map[string]string{"JWT_SECRET": "s"}, "DB_URL"},
		{"missing_jwt_secret", map[string]string{"DB_URL": "d"}, "JWT_SECRET"},
		{"bad_bool", map[string]string{"DB_URL": "d", "JWT_SECRET": "s", "ORACLE_TRIGGER_OVERRIDE": "maybe"}, "ORACLE_TRIGGER_OVERRIDE"},
		{"bad_duration", map[string]string{"DB_URL": "d", "JWT_SECRET": "s", "REVEAL_INTERVAL": "-1s"}, "REVEAL_INTERVAL"},
		{"bad_integer", map[string]string{"DB_URL": "d", "JWT_SECRET": "s", "PREMIUM_DAILY_QUESTIONS": "ten"}, "PREMIUM_DAILY_QUESTIONS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(envMap(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
