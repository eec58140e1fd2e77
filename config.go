package main

import (
	"crypto/subtle"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Config carries everything the components need. It is built once in main
// and handed to each constructor; nothing reads the environment after startup.
type Config struct {
	Port   string
	DBPath string

	// Exactly one of these should be set. APIKeyHash takes precedence and
	// holds a bcrypt hash of the key so the plaintext never has to live in
	// the environment.
	APIKey     string
	APIKeyHash string

	Timezone     *time.Location
	DailyGoal    int
	StepsPerMile int

	CORSOrigins []string

	FitnessBaseURL string
	FitnessToken   string
}

func loadConfig() (*Config, error) {
	cfg := &Config{
		Port:           envOr("PORT", "8080"),
		DBPath:         envOr("DB_PATH", "./walkabout.db"),
		APIKey:         strings.TrimSpace(os.Getenv("API_KEY")),
		APIKeyHash:     strings.TrimSpace(os.Getenv("API_KEY_HASH")),
		FitnessBaseURL: strings.TrimRight(os.Getenv("FITNESS_BASE_URL"), "/"),
		FitnessToken:   os.Getenv("FITNESS_TOKEN"),
	}

	loc, err := time.LoadLocation(envOr("TIMEZONE", "America/New_York"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Timezone = loc

	if cfg.DailyGoal, err = envIntOr("DAILY_GOAL", 10000); err != nil {
		return nil, err
	}
	if cfg.StepsPerMile, err = envIntOr("STEPS_PER_MILE", 2000); err != nil {
		return nil, err
	}
	if cfg.StepsPerMile <= 0 {
		return nil, fmt.Errorf("STEPS_PER_MILE must be positive, got %d", cfg.StepsPerMile)
	}

	for _, origin := range strings.Split(envOr("CORS_ORIGINS", "http://localhost:5173"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

// Today returns the current calendar day at midnight in the configured
// timezone. Every "today" in the system goes through here; server-local
// time is never used for date math.
func (c *Config) Today() time.Time {
	now := time.Now().In(c.Timezone)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.Timezone)
}

func (c *Config) apiKeyConfigured() bool {
	return c.APIKey != "" || c.APIKeyHash != ""
}

// verifyAPIKey compares the presented key against the configured secret in
// constant time.
func (c *Config) verifyAPIKey(presented string) bool {
	if c.APIKeyHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(c.APIKeyHash), []byte(presented)) == nil
	}
	if c.APIKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(c.APIKey)) == 1
}
