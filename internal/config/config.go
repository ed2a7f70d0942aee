package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"

	boterr "github.com/KirkDiggler/mcbot/internal/errors"
	"github.com/KirkDiggler/mcbot/internal/events"
)

// Dispatch modes for EVENTS_DISPATCH
const (
	DispatchInline = "inline"
	DispatchLoop   = "loop"
)

const defaultPort = "25565"

// Config holds all configuration for the application
type Config struct {
	Bot    BotConfig
	Events EventsConfig
	Log    LogConfig
}

// BotConfig holds the player and server settings
type BotConfig struct {
	Name         string        `env:"BOT_NAME" envDefault:"Botlin"`
	Server       string        `env:"BOT_SERVER" envDefault:"localhost"`
	TickInterval time.Duration `env:"BOT_TICK_INTERVAL" envDefault:"50ms"`
}

// EventsConfig holds the event bus settings
type EventsConfig struct {
	Dispatch      string `env:"EVENTS_DISPATCH" envDefault:"inline"`
	Workers       int    `env:"EVENTS_WORKERS" envDefault:"1"`
	FailurePolicy string `env:"EVENTS_FAILURE_POLICY" envDefault:"collect"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the values and normalizes the server address.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Bot.Name) == "" {
		return boterr.Validationf("BOT_NAME is required")
	}
	if c.Bot.Server == "" {
		return boterr.Validationf("BOT_SERVER is required")
	}
	c.Bot.Server = NormalizeServerAddress(c.Bot.Server)
	if c.Bot.TickInterval <= 0 {
		return boterr.Validationf("BOT_TICK_INTERVAL must be positive, got %s", c.Bot.TickInterval)
	}

	c.Events.Dispatch = strings.ToLower(c.Events.Dispatch)
	switch c.Events.Dispatch {
	case DispatchInline, DispatchLoop:
	default:
		return boterr.Validationf("EVENTS_DISPATCH must be %q or %q, got %q", DispatchInline, DispatchLoop, c.Events.Dispatch)
	}
	if c.Events.Workers < 1 {
		return boterr.Validationf("EVENTS_WORKERS must be at least 1, got %d", c.Events.Workers)
	}
	if _, err := events.ParseFailurePolicy(c.Events.FailurePolicy); err != nil {
		return boterr.WrapWithCode(err, boterr.CodeValidation, "EVENTS_FAILURE_POLICY")
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return boterr.WrapWithCode(err, boterr.CodeValidation, "LOG_LEVEL")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return boterr.Validationf("LOG_FORMAT must be \"text\" or \"json\", got %q", c.Log.Format)
	}

	return nil
}

// Policy returns the parsed failure policy.
func (c EventsConfig) Policy() events.FailurePolicy {
	p, _ := events.ParseFailurePolicy(c.FailurePolicy)
	return p
}

// NewLogger builds the process logger from the log settings.
func (c LogConfig) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	if level, err := logrus.ParseLevel(c.Level); err == nil {
		logger.SetLevel(level)
	}

	if c.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}

// NormalizeServerAddress appends the default port when addr has none.
func NormalizeServerAddress(addr string) string {
	parts := strings.SplitN(addr, ":", 2)
	if len(parts) == 1 || parts[1] == "" {
		return parts[0] + ":" + defaultPort
	}
	return addr
}
