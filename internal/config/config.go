// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidConfig is wrapped by every validation failure so callers can
// tell operator-correctable configuration problems apart from runtime errors.
var ErrInvalidConfig = errors.New("invalid configuration")

// Cooldown modes.
const (
	CooldownModeBlock = "block"
	CooldownModeReset = "reset"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Port               string
	FrontendURL        string
	CORSAllowedOrigins []string
	MaxRequestBodySize int64
	Database           DatabaseConfig
	OpenAI             OpenAIConfig
	Chat               ChatConfig
	RateLimit          RateLimitConfig
}

// DatabaseConfig selects and locates the conversation store.
type DatabaseConfig struct {
	Driver string
	Path   string // sqlite
	URL    string // postgres
}

// OpenAIConfig holds credentials and endpoints for the assistants API.
type OpenAIConfig struct {
	APIKey         string
	AssistantID    string
	Model          string
	Instructions   string
	BaseURL        string
	RequestTimeout time.Duration
}

// ChatConfig controls the conversation policy and the run polling loop.
type ChatConfig struct {
	Cooldown        time.Duration
	CooldownMode    string
	CooldownMessage string
	FallbackMessage string
	PollInterval    time.Duration
	MaxPollAttempts int
	RunTimeout      time.Duration
	IncludeHistory  bool
}

// RateLimitConfig controls per-client request throttling.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		FrontendURL:        getEnv("FRONTEND_URL", ""),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 1<<20)),
		Database: DatabaseConfig{
			Driver: strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
			Path:   getEnv("DB_PATH", "./data/chat.db"),
			URL:    getEnv("DATABASE_URL", ""),
		},
		OpenAI: OpenAIConfig{
			APIKey:         strings.TrimSpace(getEnv("OPENAI_API_KEY", "")),
			AssistantID:    strings.TrimSpace(getEnv("OPENAI_ASSISTANT_ID", "")),
			Model:          strings.TrimSpace(getEnv("OPENAI_MODEL", "")),
			Instructions:   getEnv("OPENAI_INSTRUCTIONS", ""),
			BaseURL:        strings.TrimRight(getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/"),
			RequestTimeout: getEnvDuration("OPENAI_REQUEST_TIMEOUT", 30*time.Second),
		},
		Chat: ChatConfig{
			Cooldown:        getEnvDuration("CHAT_COOLDOWN", 24*time.Hour),
			CooldownMode:    strings.ToLower(getEnv("CHAT_COOLDOWN_MODE", CooldownModeBlock)),
			CooldownMessage: getEnv("CHAT_COOLDOWN_MESSAGE", "You've already had a conversation recently. Please come back later."),
			FallbackMessage: getEnv("CHAT_FALLBACK_MESSAGE", "Sorry, assistant could not complete the request."),
			PollInterval:    getEnvDuration("RUN_POLL_INTERVAL", 1500*time.Millisecond),
			MaxPollAttempts: getEnvInt("RUN_MAX_POLL_ATTEMPTS", 30),
			RunTimeout:      getEnvDuration("RUN_TIMEOUT", 60*time.Second),
			IncludeHistory:  getEnvBool("CHAT_INCLUDE_HISTORY", true),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 20),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return invalid("PORT cannot be empty")
	}
	if c.MaxRequestBodySize <= 0 {
		return invalid("MAX_REQUEST_BODY_BYTES must be > 0")
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return invalid("DB_PATH cannot be empty")
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			return invalid("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return invalid("DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Database.Driver)
	}

	if c.OpenAI.APIKey == "" {
		return invalid("OPENAI_API_KEY is required")
	}
	if c.OpenAI.AssistantID == "" && c.OpenAI.Model == "" {
		return invalid("one of OPENAI_ASSISTANT_ID or OPENAI_MODEL is required")
	}
	if c.OpenAI.BaseURL == "" {
		return invalid("OPENAI_BASE_URL cannot be empty")
	}
	if c.OpenAI.RequestTimeout <= 0 {
		return invalid("OPENAI_REQUEST_TIMEOUT must be > 0")
	}

	if c.Chat.Cooldown < 0 {
		return invalid("CHAT_COOLDOWN cannot be negative")
	}
	// Catches unit-less values such as "24", which parse as milliseconds.
	if c.Chat.Cooldown > 0 && c.Chat.Cooldown < time.Second {
		return invalid("CHAT_COOLDOWN must be 0 or at least 1s, got %v (use a unit, e.g. 24h)", c.Chat.Cooldown)
	}
	if c.Chat.CooldownMode != CooldownModeBlock && c.Chat.CooldownMode != CooldownModeReset {
		return invalid("CHAT_COOLDOWN_MODE must be %q or %q", CooldownModeBlock, CooldownModeReset)
	}
	if c.Chat.PollInterval <= 0 {
		return invalid("RUN_POLL_INTERVAL must be > 0")
	}
	if c.Chat.MaxPollAttempts <= 0 {
		return invalid("RUN_MAX_POLL_ATTEMPTS must be > 0")
	}
	if c.Chat.RunTimeout <= 0 {
		return invalid("RUN_TIMEOUT must be > 0")
	}

	if c.RateLimit.RequestsPerWindow <= 0 {
		return invalid("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.WindowDuration <= 0 {
		return invalid("RATE_LIMIT_WINDOW must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go duration strings ("90s", "24h"); a bare integer
// is read as milliseconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
