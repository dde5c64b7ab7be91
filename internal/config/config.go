package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AllowedPageSizes are the page sizes the console offers.
var AllowedPageSizes = []int{10, 25, 50, 100}

// Config holds everything the CLI and console need to talk to the CRM
type Config struct {
	API     APIConfig     `yaml:"api"`
	Auth    AuthConfig    `yaml:"auth"`
	Review  ReviewConfig  `yaml:"review"`
	Storage StorageConfig `yaml:"storage"`

	// LogLevel is one of debug, info, warn, error
	// Default: info
	LogLevel string `yaml:"log_level"`

	// Actor is recorded in the resolution audit trail
	// Default: $USER, or "operator"
	Actor string `yaml:"actor"`
}

// APIConfig configures the REST client
type APIConfig struct {
	// BaseURL is the CRM instance, e.g. https://acme.my.salesforce.com
	BaseURL string `yaml:"base_url"`

	// Prefix is appended to BaseURL for every API path
	// Default: /services/apexrest
	Prefix string `yaml:"prefix"`

	// Timeout bounds a single HTTP request
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// RateLimit is the sustained requests per second; 0 disables limiting
	// Default: 10
	RateLimit float64 `yaml:"rate_limit"`

	// RateBurst is the limiter bucket size
	// Default: 5
	RateBurst int `yaml:"rate_burst"`

	// BreakerFailures is the number of consecutive transport failures that
	// open the circuit; 0 disables the breaker
	// Default: 5
	BreakerFailures int `yaml:"breaker_failures"`

	// BreakerOpenTimeout is how long the circuit stays open
	// Default: 30s
	BreakerOpenTimeout time.Duration `yaml:"breaker_open_timeout"`
}

// AuthConfig configures the authorization-code + PKCE login
type AuthConfig struct {
	AuthURL     string `yaml:"auth_url"`
	TokenURL    string `yaml:"token_url"`
	ClientID    string `yaml:"client_id"`
	RedirectURI string `yaml:"redirect_uri"`

	// Scopes is space separated
	// Default: openid refresh_token api web
	Scopes string `yaml:"scopes"`

	// SessionLifetime is assumed when the token response carries issued_at
	// but no expires_in
	// Default: 2h
	SessionLifetime time.Duration `yaml:"session_lifetime"`
}

// ReviewConfig holds console defaults
type ReviewConfig struct {
	// PageSize must be one of AllowedPageSizes
	// Default: 10
	PageSize int `yaml:"page_size"`

	// MinScore is the default score filter; "active filters" means differing from it
	// Default: 50
	MinScore float64 `yaml:"min_score"`

	// StaleTime is how long a fetched list page is served from cache
	// Default: 10s
	StaleTime time.Duration `yaml:"stale_time"`

	// ResolveConcurrency bounds parallel requests in batch merge/ignore
	// Default: 3
	ResolveConcurrency int `yaml:"resolve_concurrency"`
}

// StorageConfig configures local session storage
type StorageConfig struct {
	// Path of the SQLite database holding the session and audit trail
	// Default: ~/.dupes/dupes.db
	Path string `yaml:"path"`
}

// Default returns the default configuration. Endpoints and client id have no
// defaults and must come from the config file or environment.
func Default() Config {
	actor := os.Getenv("USER")
	if actor == "" {
		actor = "operator"
	}
	storePath := filepath.Join(".dupes", "dupes.db")
	if home, err := os.UserHomeDir(); err == nil {
		storePath = filepath.Join(home, ".dupes", "dupes.db")
	}

	return Config{
		API: APIConfig{
			Prefix:             "/services/apexrest",
			Timeout:            30 * time.Second,
			RateLimit:          10,
			RateBurst:          5,
			BreakerFailures:    5,
			BreakerOpenTimeout: 30 * time.Second,
		},
		Auth: AuthConfig{
			RedirectURI:     "http://localhost:8765/callback",
			Scopes:          "openid refresh_token api web",
			SessionLifetime: 2 * time.Hour,
		},
		Review: ReviewConfig{
			PageSize:           10,
			MinScore:           50,
			StaleTime:          10 * time.Second,
			ResolveConcurrency: 3,
		},
		Storage:  StorageConfig{Path: storePath},
		LogLevel: "info",
		Actor:    actor,
	}
}

// Load reads a YAML config file on top of the defaults. A missing file is not
// an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing YAML: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	var errs []error

	if c.API.BaseURL != "" {
		if err := validateURL("api.base_url", c.API.BaseURL); err != nil {
			errs = append(errs, err)
		}
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("api.timeout must be positive (got %v)", c.API.Timeout))
	}
	if c.API.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("api.rate_limit cannot be negative (got %v)", c.API.RateLimit))
	}
	if c.API.RateLimit > 0 && c.API.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("api.rate_burst must be at least 1 when rate limiting (got %d)", c.API.RateBurst))
	}
	if c.API.BreakerFailures < 0 {
		errs = append(errs, fmt.Errorf("api.breaker_failures cannot be negative (got %d)", c.API.BreakerFailures))
	}

	for _, u := range []struct{ name, value string }{
		{"auth.auth_url", c.Auth.AuthURL},
		{"auth.token_url", c.Auth.TokenURL},
		{"auth.redirect_uri", c.Auth.RedirectURI},
	} {
		if u.value == "" {
			continue
		}
		if err := validateURL(u.name, u.value); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Auth.SessionLifetime <= 0 {
		errs = append(errs, fmt.Errorf("auth.session_lifetime must be positive (got %v)", c.Auth.SessionLifetime))
	}

	if !IsAllowedPageSize(c.Review.PageSize) {
		errs = append(errs, fmt.Errorf("review.page_size must be one of %v (got %d)", AllowedPageSizes, c.Review.PageSize))
	}
	if c.Review.MinScore < 0 || c.Review.MinScore > 100 {
		errs = append(errs, fmt.Errorf("review.min_score must be between 0 and 100 (got %v)", c.Review.MinScore))
	}
	if c.Review.StaleTime < 0 {
		errs = append(errs, fmt.Errorf("review.stale_time cannot be negative (got %v)", c.Review.StaleTime))
	}
	if c.Review.ResolveConcurrency < 1 {
		errs = append(errs, fmt.Errorf("review.resolve_concurrency must be at least 1 (got %d)", c.Review.ResolveConcurrency))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be debug, info, warn or error (got %q)", c.LogLevel))
	}
	if c.Storage.Path == "" {
		errs = append(errs, fmt.Errorf("storage.path is required"))
	}

	return errors.Join(errs...)
}

// RequireLogin checks the fields needed to start a login.
func (c Config) RequireLogin() error {
	var missing []string
	if c.Auth.AuthURL == "" {
		missing = append(missing, "auth.auth_url")
	}
	if c.Auth.TokenURL == "" {
		missing = append(missing, "auth.token_url")
	}
	if c.Auth.ClientID == "" {
		missing = append(missing, "auth.client_id")
	}
	if c.Auth.RedirectURI == "" {
		missing = append(missing, "auth.redirect_uri")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// APIBase joins the base URL and prefix. If the base URL is empty the
// instance URL from the session is used instead.
func (c Config) APIBase(instanceURL string) (string, error) {
	base := c.API.BaseURL
	if base == "" {
		base = instanceURL
	}
	if base == "" {
		return "", fmt.Errorf("api.base_url is not configured and the session has no instance URL")
	}
	return strings.TrimRight(base, "/") + "/" + strings.Trim(c.API.Prefix, "/"), nil
}

// ScopeList splits Scopes on whitespace.
func (c AuthConfig) ScopeList() []string {
	return strings.Fields(c.Scopes)
}

// IsAllowedPageSize reports whether size is offered by the console.
func IsAllowedPageSize(size int) bool {
	for _, s := range AllowedPageSizes {
		if s == size {
			return true
		}
	}
	return false
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL (got %q)", name, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host (got %q)", name, raw)
	}
	return nil
}
