/*
Package config loads runtime settings from the environment.

PURPOSE:
  One struct for everything cmd/server needs. Values come from the process
  environment, optionally seeded from a .env file in the working
  directory. Command-line flags in cmd/server override the result.

ENVIRONMENT:
  PORT            HTTP port (default 8080)
  DB_DRIVER       "sqlite" or "postgres" (default sqlite)
  DB_PATH         SQLite file (default ./attendance.db)
  DATABASE_URL    Postgres DSN, required when DB_DRIVER=postgres
  JWT_SECRET      Signing key for bearer tokens
  JWT_EXPIRATION  Bearer token lifetime, Go duration (default 24h)
  QR_SECRET       Signing key for QR tokens (default JWT_SECRET)
  TIMEZONE        Policy timezone, IANA name (default Asia/Jakarta)
  CORS_ORIGINS    Comma-separated allowed origins
  SEED            "true" to seed demo data at startup
*/
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devSecret = "change-me-in-production"

type Config struct {
	Port          string
	DBDriver      string
	DBPath        string
	DatabaseURL   string
	JWTSecret     string
	JWTExpiration time.Duration
	QRSecret      string
	Timezone      string
	CORSOrigins   []string
	Seed          bool
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: ignoring .env: %v", err)
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBPath:      getEnv("DB_PATH", "./attendance.db"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   getEnv("JWT_SECRET", devSecret),
		Timezone:    getEnv("TIMEZONE", "Asia/Jakarta"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
	}
	cfg.QRSecret = getEnv("QR_SECRET", cfg.JWTSecret)

	exp, err := time.ParseDuration(getEnv("JWT_EXPIRATION", "24h"))
	if err != nil {
		return nil, fmt.Errorf("JWT_EXPIRATION: %w", err)
	}
	cfg.JWTExpiration = exp

	if v := os.Getenv("SEED"); v != "" {
		if cfg.Seed, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("SEED: %w", err)
		}
	}

	if cfg.JWTSecret == devSecret {
		log.Println("config: JWT_SECRET not set, using development secret")
	}
	return cfg, nil
}

// Validate checks combinations that Load cannot default.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.JWTExpiration <= 0 {
		return fmt.Errorf("JWT_EXPIRATION must be positive")
	}
	return nil
}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
