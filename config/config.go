// Package config loads server configuration from the environment.
//
// A .env file in the working directory is loaded first if present; real
// environment variables win over it. Command-line flags in cmd/server
// override both.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Auth modes for resolving the caller identity.
const (
	AuthHeader = "header" // X-Caller-Identity header, development only
	AuthJWT    = "jwt"    // HS256 bearer token, identity in "sub"
)

type Config struct {
	Port        int      `env:"PORT" envDefault:"8080"`
	AuditDBPath string   `env:"AUDIT_DB_PATH" envDefault:":memory:"`
	AuthMode    string   `env:"AUTH_MODE" envDefault:"header"`
	JWTSecret   string   `env:"JWT_SECRET"`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:8080"`
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.AuthMode {
	case AuthHeader:
	case AuthJWT:
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when AUTH_MODE=%s", AuthJWT)
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return nil
}

// Level returns the configured logrus level.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
