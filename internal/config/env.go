package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ApplyEnv overrides fields from environment variables.
//
// Environment variables:
//   - DUPES_API_BASE_URL, DUPES_API_PREFIX, DUPES_API_TIMEOUT
//   - DUPES_API_RATE_LIMIT, DUPES_API_RATE_BURST
//   - DUPES_AUTH_URL, DUPES_TOKEN_URL, DUPES_CLIENT_ID, DUPES_REDIRECT_URI, DUPES_SCOPES
//   - DUPES_SESSION_LIFETIME
//   - DUPES_PAGE_SIZE, DUPES_MIN_SCORE
//   - DUPES_STORE_PATH, DUPES_LOG_LEVEL, DUPES_ACTOR
//
// Returns an error if any environment variable has an invalid value.
func (c *Config) ApplyEnv() error {
	parsers := []func() error{
		func() error { return parseEnvString("DUPES_API_BASE_URL", &c.API.BaseURL) },
		func() error { return parseEnvString("DUPES_API_PREFIX", &c.API.Prefix) },
		func() error { return parseEnvDuration("DUPES_API_TIMEOUT", &c.API.Timeout) },
		func() error { return parseEnvFloat("DUPES_API_RATE_LIMIT", &c.API.RateLimit) },
		func() error { return parseEnvInt("DUPES_API_RATE_BURST", &c.API.RateBurst) },
		func() error { return parseEnvString("DUPES_AUTH_URL", &c.Auth.AuthURL) },
		func() error { return parseEnvString("DUPES_TOKEN_URL", &c.Auth.TokenURL) },
		func() error { return parseEnvString("DUPES_CLIENT_ID", &c.Auth.ClientID) },
		func() error { return parseEnvString("DUPES_REDIRECT_URI", &c.Auth.RedirectURI) },
		func() error { return parseEnvString("DUPES_SCOPES", &c.Auth.Scopes) },
		func() error { return parseEnvDuration("DUPES_SESSION_LIFETIME", &c.Auth.SessionLifetime) },
		func() error { return parseEnvInt("DUPES_PAGE_SIZE", &c.Review.PageSize) },
		func() error { return parseEnvFloat("DUPES_MIN_SCORE", &c.Review.MinScore) },
		func() error { return parseEnvString("DUPES_STORE_PATH", &c.Storage.Path) },
		func() error { return parseEnvString("DUPES_LOG_LEVEL", &c.LogLevel) },
		func() error { return parseEnvString("DUPES_ACTOR", &c.Actor) },
	}
	for _, parse := range parsers {
		if err := parse(); err != nil {
			return err
		}
	}
	return nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvFloat parses a float from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvDuration parses a Go duration ("30s", "2h") from an environment variable
func parseEnvDuration(key string, dest *time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvString parses a string from an environment variable
func parseEnvString(key string, dest *string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	*dest = value
	return nil
}
