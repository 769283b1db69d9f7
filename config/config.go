/*
Package config loads server configuration from the environment.

PURPOSE:
  One struct for everything cmd/server needs. Each section is populated from
  variables sharing a prefix; command-line flags override the result.

VARIABLES:
  ENV                   deployment name, "dev" switches logs to console output
  HTTP_PORT             listen port (8080)
  HTTP_READ_TIMEOUT     (15s)
  HTTP_WRITE_TIMEOUT    (15s)
  HTTP_IDLE_TIMEOUT     (60s)
  HTTP_CORS_ORIGINS     comma-separated allowed origins (*)
  LOG_LEVEL             debug|info|warn|error (info)
  LOG_FORMAT            human|json (json)
  DB_PATH               SQLite file, ":memory:" for throwaway runs (./data/budget.db)
  AUDIT_ENABLED         run the balance auditor (true)
  AUDIT_INTERVAL        time between audits (1h)
  PRESETS_PATH          TOML preset file; missing file is not an error (./presets.toml)
  PRESETS_BUILTIN       seed the built-in shapes on startup (true)
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

type Config struct {
	Env string `env:"ENV" envDefault:"prod"`

	HTTP    HTTP    `envPrefix:"HTTP_"`
	Log     Logger  `envPrefix:"LOG_"`
	DB      DB      `envPrefix:"DB_"`
	Audit   Audit   `envPrefix:"AUDIT_"`
	Presets Presets `envPrefix:"PRESETS_"`
}

type HTTP struct {
	Port         uint16        `env:"PORT" envDefault:"8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`
}

// Addr returns the listen address for http.Server.
func (h HTTP) Addr() string {
	return fmt.Sprintf(":%d", h.Port)
}

type Logger struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// ZerologLevel converts the textual level. Unknown levels default to info.
func (c Logger) ZerologLevel() zerolog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error", "err":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Human reports whether logs should go through zerolog.ConsoleWriter.
func (c Logger) Human() bool {
	f := strings.ToLower(c.Format)
	return f == "human" || f == "text" || f == "console"
}

type DB struct {
	Path string `env:"PATH" envDefault:"./data/budget.db"`
}

type Audit struct {
	Enabled  bool          `env:"ENABLED" envDefault:"true"`
	Interval time.Duration `env:"INTERVAL" envDefault:"1h"`
}

type Presets struct {
	Path    string `env:"PATH" envDefault:"./presets.toml"`
	Builtin bool   `env:"BUILTIN" envDefault:"true"`
}

// Load reads configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	if cfg.Audit.Interval <= 0 {
		return cfg, fmt.Errorf("AUDIT_INTERVAL must be positive, got %s", cfg.Audit.Interval)
	}
	return cfg, nil
}

// Dev reports whether the deployment is a development one.
func (c Config) Dev() bool {
	return c.Env == "dev" || c.Env == "development"
}
