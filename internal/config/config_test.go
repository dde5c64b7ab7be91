package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v, want nil", err)
	}
	if cfg.Review.PageSize != 10 {
		t.Errorf("PageSize = %d, want 10", cfg.Review.PageSize)
	}
	if cfg.Review.MinScore != 50 {
		t.Errorf("MinScore = %v, want 50", cfg.Review.MinScore)
	}
	if got := cfg.Auth.ScopeList(); len(got) != 4 || got[0] != "openid" {
		t.Errorf("ScopeList() = %v", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "page size not offered",
			mutate:  func(c *Config) { c.Review.PageSize = 20 },
			wantErr: "review.page_size",
		},
		{
			name:    "min score out of range",
			mutate:  func(c *Config) { c.Review.MinScore = 101 },
			wantErr: "review.min_score",
		},
		{
			name:    "bad base url",
			mutate:  func(c *Config) { c.API.BaseURL = "ftp://crm" },
			wantErr: "api.base_url",
		},
		{
			name:    "token url without host",
			mutate:  func(c *Config) { c.Auth.TokenURL = "https://" },
			wantErr: "auth.token_url",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: "log_level",
		},
		{
			name:    "burst required with limit",
			mutate:  func(c *Config) { c.API.RateBurst = 0 },
			wantErr: "api.rate_burst",
		},
		{
			name:    "no rate limit needs no burst",
			mutate:  func(c *Config) { c.API.RateLimit = 0; c.API.RateBurst = 0 },
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dupes.yaml")
	content := `
api:
  base_url: https://acme.my.salesforce.com
  timeout: 5s
auth:
  client_id: abc123
  session_lifetime: 90m
review:
  page_size: 25
  min_score: 70
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.BaseURL != "https://acme.my.salesforce.com" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.API.Timeout)
	}
	if cfg.Auth.SessionLifetime != 90*time.Minute {
		t.Errorf("SessionLifetime = %v, want 90m", cfg.Auth.SessionLifetime)
	}
	if cfg.Review.PageSize != 25 || cfg.Review.MinScore != 70 {
		t.Errorf("Review = %+v", cfg.Review)
	}
	// Untouched fields keep their defaults
	if cfg.API.Prefix != "/services/apexrest" {
		t.Errorf("Prefix = %q, want default", cfg.API.Prefix)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Review.PageSize != Default().Review.PageSize {
		t.Errorf("PageSize = %d, want default", cfg.Review.PageSize)
	}
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(t *testing.T, cfg Config)
	}{
		{
			name: "overrides",
			envVars: map[string]string{
				"DUPES_CLIENT_ID":        "client-x",
				"DUPES_PAGE_SIZE":        "50",
				"DUPES_MIN_SCORE":        "65.5",
				"DUPES_SESSION_LIFETIME": "1h",
			},
			check: func(t *testing.T, cfg Config) {
				if cfg.Auth.ClientID != "client-x" {
					t.Errorf("ClientID = %q", cfg.Auth.ClientID)
				}
				if cfg.Review.PageSize != 50 {
					t.Errorf("PageSize = %d, want 50", cfg.Review.PageSize)
				}
				if cfg.Review.MinScore != 65.5 {
					t.Errorf("MinScore = %v, want 65.5", cfg.Review.MinScore)
				}
				if cfg.Auth.SessionLifetime != time.Hour {
					t.Errorf("SessionLifetime = %v, want 1h", cfg.Auth.SessionLifetime)
				}
			},
		},
		{
			name:    "invalid int",
			envVars: map[string]string{"DUPES_PAGE_SIZE": "ten"},
			wantErr: true,
		},
		{
			name:    "invalid duration",
			envVars: map[string]string{"DUPES_API_TIMEOUT": "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			cfg := Default()
			err := cfg.ApplyEnv()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyEnv() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestAPIBase(t *testing.T) {
	cfg := Default()

	if _, err := cfg.APIBase(""); err == nil {
		t.Error("expected error with no base url and no instance url")
	}

	got, err := cfg.APIBase("https://inst.example.com/")
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://inst.example.com/services/apexrest" {
		t.Errorf("APIBase() = %q", got)
	}

	cfg.API.BaseURL = "https://override.example.com"
	got, _ = cfg.APIBase("https://inst.example.com")
	if got != "https://override.example.com/services/apexrest" {
		t.Errorf("APIBase() = %q, want configured base to win", got)
	}
}

func TestRequireLogin(t *testing.T) {
	cfg := Default()
	err := cfg.RequireLogin()
	if err == nil || !strings.Contains(err.Error(), "auth.client_id") {
		t.Errorf("RequireLogin() = %v, want missing client id", err)
	}

	cfg.Auth.AuthURL = "https://login.example.com/authorize"
	cfg.Auth.TokenURL = "https://login.example.com/token"
	cfg.Auth.ClientID = "id"
	if err := cfg.RequireLogin(); err != nil {
		t.Errorf("RequireLogin() = %v", err)
	}
}
