// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	// DatabaseDSN is a PostgreSQL DSN. Empty keeps all data in process memory.
	DatabaseDSN string `envconfig:"DATABASE_DSN"`
	// RedisAddr enables the shared presence registry and the cross-instance broadcaster.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	JWTIssuer string        `envconfig:"JWT_ISSUER" default:"pitchmatch"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"72h"`

	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`

	LogLevel    string   `envconfig:"LOG_LEVEL" default:"info"`
	AppEnv      string   `envconfig:"APP_ENV" default:"production"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS"`

	// SendBuffer is the per-connection outbound queue; a client that falls this
	// far behind is disconnected.
	SendBuffer      int           `envconfig:"SEND_BUFFER" default:"256"`
	MessagePageMax  int           `envconfig:"MESSAGE_PAGE_MAX" default:"200"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// Load reads an optional .env file, then the process environment.
func Load() (Config, error) {
	// .env is optional; real deployments set variables directly.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, errors.New("SEND_BUFFER must be positive"))
	}
	if c.MessagePageMax <= 0 {
		errs = append(errs, errors.New("MESSAGE_PAGE_MAX must be positive"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Development reports whether the server runs outside production.
func (c Config) Development() bool {
	return c.AppEnv != "production"
}
