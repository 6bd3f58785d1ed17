// Package config reads service settings from the environment and solver
// profiles from YAML.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Service holds the settings of cmd/api.
type Service struct {
	Port          string
	DatabaseURL   string
	DBMigrate     bool
	MigrationsDir string
	RedisURL      string

	RateRPS   float64
	RateBurst int

	LogLevel  logrus.Level
	LogFormat string

	AuthMode       string
	AuthHMACSecret string
	AuthRoleClaim  string

	ProfilesFile string
	RunTimeout   time.Duration
	MaxStarts    int

	WebhookInterval    time.Duration
	WebhookMaxAttempts int
}

// Load reads .env when present, then the process environment.
func Load() (Service, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, using environment variables")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds Service from getenv, falling back to defaults for unset keys.
func FromEnv(getenv func(string) string) (Service, error) {
	get := func(k, fallback string) string {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return v
		}
		return fallback
	}
	var (
		s   Service
		err error
	)
	s.Port = get("PORT", "8080")
	s.DatabaseURL = get("DATABASE_URL", "")
	s.DBMigrate = get("DB_MIGRATE", "true") != "false"
	s.MigrationsDir = get("DB_MIGRATIONS_DIR", "db/migrations")
	s.RedisURL = get("REDIS_URL", "")
	s.LogFormat = get("LOG_FORMAT", "text")
	s.AuthMode = strings.ToLower(get("AUTH_MODE", "dev"))
	s.AuthHMACSecret = get("AUTH_HMAC_SECRET", "")
	s.AuthRoleClaim = get("AUTH_ROLE_CLAIM", "role")
	s.ProfilesFile = get("SOLVER_PROFILES", "")

	if s.RateRPS, err = strconv.ParseFloat(get("RATE_RPS", "5"), 64); err != nil || s.RateRPS < 0 {
		return Service{}, fmt.Errorf("config: RATE_RPS: invalid value %q", getenv("RATE_RPS"))
	}
	if s.RateBurst, err = strconv.Atoi(get("RATE_BURST", "10")); err != nil || s.RateBurst < 0 {
		return Service{}, fmt.Errorf("config: RATE_BURST: invalid value %q", getenv("RATE_BURST"))
	}
	if s.LogLevel, err = logrus.ParseLevel(get("LOG_LEVEL", "info")); err != nil {
		return Service{}, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	if s.RunTimeout, err = time.ParseDuration(get("RUN_TIMEOUT", "5m")); err != nil {
		return Service{}, fmt.Errorf("config: RUN_TIMEOUT: %w", err)
	}
	if s.MaxStarts, err = strconv.Atoi(get("MAX_STARTS", "16")); err != nil || s.MaxStarts < 1 {
		return Service{}, fmt.Errorf("config: MAX_STARTS: invalid value %q", getenv("MAX_STARTS"))
	}
	if s.WebhookInterval, err = time.ParseDuration(get("WEBHOOK_INTERVAL", "2s")); err != nil {
		return Service{}, fmt.Errorf("config: WEBHOOK_INTERVAL: %w", err)
	}
	if s.WebhookMaxAttempts, err = strconv.Atoi(get("WEBHOOK_MAX_ATTEMPTS", "8")); err != nil || s.WebhookMaxAttempts < 1 {
		return Service{}, fmt.Errorf("config: WEBHOOK_MAX_ATTEMPTS: invalid value %q", getenv("WEBHOOK_MAX_ATTEMPTS"))
	}
	switch s.AuthMode {
	case "dev":
	case "hmac":
		if s.AuthHMACSecret == "" {
			return Service{}, fmt.Errorf("config: AUTH_MODE=hmac needs AUTH_HMAC_SECRET")
		}
	default:
		return Service{}, fmt.Errorf("config: AUTH_MODE: unsupported mode %q", s.AuthMode)
	}
	return s, nil
}

// Keys lists the effective settings without secrets, for /debug/info.
func (s Service) Keys() map[string]string {
	return map[string]string{
		"PORT":                 s.Port,
		"DATABASE":             backend(s.DatabaseURL != "", "postgres", "memory"),
		"BROKER":               backend(s.RedisURL != "", "redis", "memory"),
		"RATE_RPS":             strconv.FormatFloat(s.RateRPS, 'f', -1, 64),
		"RATE_BURST":           strconv.Itoa(s.RateBurst),
		"LOG_LEVEL":            s.LogLevel.String(),
		"AUTH_MODE":            s.AuthMode,
		"RUN_TIMEOUT":          s.RunTimeout.String(),
		"MAX_STARTS":           strconv.Itoa(s.MaxStarts),
		"WEBHOOK_MAX_ATTEMPTS": strconv.Itoa(s.WebhookMaxAttempts),
	}
}

func backend(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

// ConfigureLogger applies level and format to the standard logrus logger.
func (s Service) ConfigureLogger() {
	logrus.SetLevel(s.LogLevel)
	if s.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
