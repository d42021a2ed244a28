// Package config loads application settings from the environment.
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

	"jobrelay/internal/adapter/telegram/middleware"
)

// Archive drivers.
const (
	ArchiveNone     = "none"
	ArchiveSQLite   = "sqlite"
	ArchivePostgres = "postgres"
)

// Config holds application configuration values.
type Config struct {
	Env  string `validate:"required,oneof=dev prod"`
	HTTP struct {
		Addr string `validate:"required"`
		// RateLimit is requests per second per client; 0 disables limiting.
		RateLimit       float64       `validate:"gte=0"`
		RateBurst       int           `validate:"gte=0"`
		ShutdownTimeout time.Duration `validate:"gt=0"`
	}
	Log struct {
		ConsoleLevel string `validate:"required,oneof=debug info warn error"`
		FileLevel    string `validate:"required,oneof=debug info warn error"`
		File         string
	}
	Dispatch struct {
		Timeout time.Duration `validate:"gt=0"`
		// MaxBody caps buffered response bodies; 0 means unlimited.
		MaxBody int64 `validate:"gte=0"`
	}
	// Location resolves scheduledTime values.
	Location *time.Location `validate:"required"`
	Archive  struct {
		Driver     string `validate:"required,oneof=none sqlite postgres"`
		SQLitePath string `validate:"required_if=Driver sqlite"`
		PGDSN      string `validate:"required_if=Driver postgres"`
		Queue      int    `validate:"gt=0"`
	}
	Telegram struct {
		Token         string
		WebhookURL    string `validate:"omitempty,url"`
		WebhookSecret string
		AllowedIDs    []int64
		NotifyChatIDs []int64
		Workers       int `validate:"gte=1,lte=64"`
	}
}

var validate = validator.New()

// Load reads configuration from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds and validates a Config using getenv for lookups.
func FromEnv(getenv func(string) string) (Config, error) {
	p := parser{getenv: getenv}

	var c Config
	c.Env = p.str("ENV", "prod")
	c.HTTP.Addr = p.str("HTTP_ADDR", ":8080")
	c.HTTP.RateLimit = p.decimal("API_RATE_LIMIT", 10)
	c.HTTP.RateBurst = p.integer("API_RATE_BURST", 20)
	c.HTTP.ShutdownTimeout = p.duration("SHUTDOWN_TIMEOUT", 10*time.Second)
	c.Log.ConsoleLevel = strings.ToLower(p.str("LOG_CONSOLE_LEVEL", "info"))
	c.Log.FileLevel = strings.ToLower(p.str("LOG_FILE_LEVEL", "debug"))
	c.Log.File = p.str("LOG_FILE", "data/logs/jobrelay.log")
	c.Dispatch.Timeout = p.duration("DISPATCH_TIMEOUT", 30*time.Second)
	c.Dispatch.MaxBody = int64(p.integer("DISPATCH_MAX_BODY", 1<<20))
	c.Location = p.location("TIMEZONE")
	c.Archive.Driver = strings.ToLower(p.str("ARCHIVE_DRIVER", ArchiveNone))
	c.Archive.SQLitePath = p.str("ARCHIVE_SQLITE_PATH", "")
	c.Archive.PGDSN = p.str("ARCHIVE_PG_DSN", "")
	c.Archive.Queue = p.integer("ARCHIVE_QUEUE", 256)
	c.Telegram.Token = p.str("TELEGRAM_BOT_TOKEN", "")
	c.Telegram.WebhookURL = p.str("TELEGRAM_WEBHOOK_URL", "")
	c.Telegram.WebhookSecret = p.str("TELEGRAM_WEBHOOK_SECRET", "")
	c.Telegram.AllowedIDs = p.ids("TELEGRAM_ALLOWED_IDS")
	c.Telegram.NotifyChatIDs = p.ids("TELEGRAM_NOTIFY_CHAT_IDS")
	c.Telegram.Workers = p.integer("TELEGRAM_WORKERS", 8)

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	if err := validate.Struct(c); err != nil {
		return Config{}, err
	}
	if err := c.crossCheck(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) crossCheck() error {
	if dsn := c.Archive.PGDSN; c.Archive.Driver == ArchivePostgres &&
		!strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return errors.New("ARCHIVE_PG_DSN must be a postgres:// URL")
	}
	if c.Telegram.Token == "" {
		return nil
	}
	if len(c.Telegram.AllowedIDs) == 0 {
		return errors.New("TELEGRAM_ALLOWED_IDS required when TELEGRAM_BOT_TOKEN is set")
	}
	if c.Telegram.WebhookURL != "" && c.Telegram.WebhookSecret == "" {
		return errors.New("TELEGRAM_WEBHOOK_SECRET required when TELEGRAM_WEBHOOK_URL is set")
	}
	return nil
}

// parser collects every malformed variable instead of stopping at the first.
type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) str(k, def string) string {
	if v := strings.TrimSpace(p.getenv(k)); v != "" {
		return v
	}
	return def
}

func (p *parser) integer(k string, def int) int {
	v := p.str(k, "")
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

func (p *parser) decimal(k string, def float64) float64 {
	v := p.str(k, "")
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
	v := p.str(k, "")
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

func (p *parser) location(k string) *time.Location {
	v := p.str(k, "")
	if v == "" || v == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", k, err))
		return time.Local
	}
	return loc
}

func (p *parser) ids(k string) []int64 {
	ids, err := middleware.ParseAllowedIDs(p.getenv(k))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", k, err))
	}
	return ids
}
