// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds application configuration values.
type Config struct {
	Env  string `validate:"required,oneof=dev prod"`
	HTTP struct {
		Addr            string        `validate:"required"`
		ShutdownTimeout time.Duration `validate:"gt=0"`
	}
	Log struct {
		ConsoleLevel string `validate:"required,oneof=debug info warn error"`
		FileLevel    string `validate:"required,oneof=debug info warn error"`
		File         string
	}
	DB struct {
		Driver     string `validate:"required,oneof=sqlite postgres"`
		SQLitePath string `validate:"required_if=Driver sqlite"`
		URL        string `validate:"required_if=Driver postgres"`
	}
	Redis struct {
		URL string
	}
	AI struct {
		Provider    string        `validate:"required,oneof=gemini openai anthropic"`
		Timeout     time.Duration `validate:"gt=0"`
		MaxAttempts int           `validate:"min=1,max=10"` // further capped per error type, see retry.Config
		BaseDelay   time.Duration `validate:"gt=0"`
		MaxDelay    time.Duration `validate:"gtefield=BaseDelay"`
		MaxTokens   int           `validate:"min=1"`
		Gemini      Provider
		OpenAI      Provider
		Anthropic   Provider
	}
	Regen struct {
		DailyLimit int    `validate:"min=1"`
		Timezone   string `validate:"required"`
	}
	Auth struct {
		Header       string `validate:"required"`
		AllowedUsers string
	}
	RateLimit struct {
		RPS   float64 `validate:"gte=0"`
		Burst int     `validate:"min=1"`
	}
	Workers struct {
		Count     int `validate:"min=1,max=64"`
		QueueSize int `validate:"min=1"`
	}
	Prune struct {
		Schedule      string
		RetentionDays int `validate:"min=1"`
	}
}

// Provider holds the credentials of one AI provider.
type Provider struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Selected returns the settings of the configured AI provider.
func (c Config) Selected() Provider {
	switch c.AI.Provider {
	case "openai":
		return c.AI.OpenAI
	case "anthropic":
		return c.AI.Anthropic
	default:
		return c.AI.Gemini
	}
}

// Location returns the regeneration-day time zone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Regen.Timezone)
}

var validate = validator.New()

// Load reads configuration from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	var (
		c Config
		p parser
	)
	c.Env = getenv("ENV", "prod")
	c.HTTP.Addr = getenv("HTTP_ADDR", ":8080")
	c.HTTP.ShutdownTimeout = p.duration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second)
	c.Log.ConsoleLevel = strings.ToLower(getenv("LOG_CONSOLE_LEVEL", "info"))
	c.Log.FileLevel = strings.ToLower(getenv("LOG_FILE_LEVEL", "debug"))
	c.Log.File = getenv("LOG_FILE", "data/logs/smartnotes.log")

	c.DB.Driver = strings.ToLower(getenv("DB_DRIVER", "sqlite"))
	c.DB.SQLitePath = getenv("SQLITE_PATH", "data/smartnotes.db")
	c.DB.URL = os.Getenv("DATABASE_URL")
	c.Redis.URL = os.Getenv("REDIS_URL")

	c.AI.Provider = strings.ToLower(getenv("AI_PROVIDER", "gemini"))
	c.AI.Timeout = p.duration("AI_TIMEOUT", 30*time.Second)
	c.AI.MaxAttempts = p.int("AI_MAX_ATTEMPTS", 3)
	c.AI.BaseDelay = p.duration("AI_BASE_DELAY", time.Second)
	c.AI.MaxDelay = p.duration("AI_MAX_DELAY", 30*time.Second)
	c.AI.MaxTokens = p.int("AI_MAX_TOKENS", 1024)
	c.AI.Gemini = Provider{
		APIKey:  os.Getenv("GEMINI_API_KEY"),
		Model:   getenv("GEMINI_MODEL", "gemini-2.0-flash-001"),
		BaseURL: os.Getenv("GEMINI_BASE_URL"),
	}
	c.AI.OpenAI = Provider{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		Model:   getenv("OPENAI_MODEL", "gpt-4o-mini"),
		BaseURL: getenv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
	}
	c.AI.Anthropic = Provider{
		APIKey: os.Getenv("ANTHROPIC_API_KEY"),
		Model:  getenv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
	}

	c.Regen.DailyLimit = p.int("REGEN_DAILY_LIMIT", 10)
	c.Regen.Timezone = getenv("TIMEZONE", "Asia/Seoul")
	c.Auth.Header = getenv("AUTH_HEADER", "X-User-ID")
	c.Auth.AllowedUsers = os.Getenv("ALLOWED_USERS")
	c.RateLimit.RPS = p.float("RATE_LIMIT_RPS", 5)
	c.RateLimit.Burst = p.int("RATE_LIMIT_BURST", 10)
	c.Workers.Count = p.int("WORKERS", 4)
	c.Workers.QueueSize = p.int("WORKER_QUEUE_SIZE", 100)
	c.Prune.Schedule = getenv("PRUNE_SCHEDULE", "0 30 3 * * *")
	c.Prune.RetentionDays = p.int("RETENTION_DAYS", 30)

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks field constraints and cross-field rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Selected().APIKey == "" {
		return fmt.Errorf("%s_API_KEY required when AI_PROVIDER=%s", strings.ToUpper(c.AI.Provider), c.AI.Provider)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// parser collects conversion errors so Load reports all of them at once.
type parser struct {
	errs []error
}

func (p *parser) int(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", k, err))
		return def
	}
	return n
}

func (p *parser) float(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", k, err))
		return def
	}
	return f
}

func (p *parser) duration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", k, err))
		return def
	}
	return d
}
