// Package config loads the application settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the server needs.
type Config struct {
	Port           string
	DBURL          string
	JWTSecret      string
	JWTIssuer      string
	AllowedOrigins []string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	// TriggerOverride enables the hidden trigger phrase that unlocks
	// challenge-gated deep dives.
	TriggerOverride bool
	TriggerPrefixes []string
	RevealInterval  time.Duration
	FreshWindow     time.Duration
	HistoryLimit    int

	FreeDailyQuestions    int
	PremiumDailyQuestions int

	// PanelToken is the bearer token of the astrologer panel. Empty
	// disables the panel.
	PanelToken string
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("failed to load .env file: %+v", err)
	}

	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv. Missing optional values fall back to
// their defaults; missing required values and malformed values are errors.
func FromEnv(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}

	cfg := &Config{
		Port:           p.str("PORT", "8080"),
		DBURL:          p.required("DB_URL"),
		JWTSecret:      p.required("JWT_SECRET"),
		JWTIssuer:      p.str("JWT_ISS", "astrochat"),
		AllowedOrigins: p.list("ALLOWED_ORIGINS", []string{"http://localhost:8080"}),

		GeminiAPIKey:  getenv("GEMINI_API_KEY"),
		GeminiModel:   p.str("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL: getenv("GEMINI_BASE_URL"),

		TriggerOverride: p.boolean("ORACLE_TRIGGER_OVERRIDE", false),
		TriggerPrefixes: p.list("ORACLE_TRIGGER_PREFIXES", nil),
		RevealInterval:  p.duration("REVEAL_INTERVAL", 50*time.Millisecond),
		FreshWindow:     p.duration("FRESH_WINDOW", 60*time.Second),
		HistoryLimit:    p.integer("HISTORY_LIMIT", 50),

		FreeDailyQuestions:    p.integer("FREE_DAILY_QUESTIONS", 1),
		PremiumDailyQuestions: p.integer("PREMIUM_DAILY_QUESTIONS", 10),

		PanelToken: getenv("ASTROLOGER_PANEL_TOKEN"),
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, fmt.Errorf("internal/config: %w", err)
	}

	return cfg, nil
}

type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) required(key string) string {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		p.errs = append(p.errs, fmt.Errorf("%s environment variable is not set", key))
	}
	return v
}

func (p *parser) list(key string, def []string) []string {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}

	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (p *parser) boolean(key string, def bool) bool {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (p *parser) integer(key string, def int) int {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid non-negative integer %q", key, v))
		return def
	}
	return n
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid positive duration %q", key, v))
		return def
	}
	return d
}
