// Package api is the REST client for the CRM duplicate-review service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Credentials supplies bearer tokens and recovers from 401 responses.
type Credentials interface {
	// AccessToken returns the current token, or "" when signed out.
	AccessToken(ctx context.Context) (string, error)
	// CanRefresh reports whether a refresh token is available.
	CanRefresh(ctx context.Context) bool
	// Refresh obtains a new access token. Concurrent callers share one refresh.
	Refresh(ctx context.Context) (string, error)
	// Expire drops the local session after an unrecoverable 401.
	Expire(ctx context.Context) error
}

// Options configures a Client
type Options struct {
	// BaseURL includes the API prefix, e.g. https://acme.my.salesforce.com/services/apexrest
	BaseURL     string
	HTTPClient  *http.Client
	Credentials Credentials
	Logger      *slog.Logger

	// Timeout bounds one request; 0 means no per-request timeout
	Timeout time.Duration

	// RateLimit in requests per second; 0 disables limiting
	RateLimit float64
	RateBurst int

	// Breaker is optional
	Breaker *CircuitBreaker
}

// Client talks to the CRM service. It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	creds   Credentials
	logger  *slog.Logger
	timeout time.Duration
	limiter *rate.Limiter
	breaker *CircuitBreaker
}

// NewClient creates a client for the service at opts.BaseURL
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	c := &Client{
		baseURL: u,
		http:    opts.HTTPClient,
		creds:   opts.Credentials,
		logger:  opts.Logger,
		timeout: opts.Timeout,
		breaker: opts.Breaker,
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c, nil
}

// BaseURL returns the API root the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// request is one logical call; it may be sent twice when a 401 is recovered.
type request struct {
	method string
	path   string // already escaped, relative to baseURL
	query  url.Values
	body   []byte
}

// do sends the request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, r request, out any) error {
	resp, body, err := c.send(ctx, r)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp, body, err = c.recoverUnauthorized(ctx, r, resp, body)
		if err != nil {
			return err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(resp.Request, resp.StatusCode, body)
		c.logger.Error("API request failed", "method", r.method, "path", r.path, "status", resp.StatusCode, "message", apiErr.Message)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", r.method, r.path, err)
	}
	return nil
}

// recoverUnauthorized refreshes the token once and replays the request.
// Without a refresh token the session is expired; when the refresh fails
// the original 401 is reported.
func (c *Client) recoverUnauthorized(ctx context.Context, r request, resp *http.Response, body []byte) (*http.Response, []byte, error) {
	original := newAPIError(resp.Request, resp.StatusCode, body)

	if c.creds == nil {
		return nil, nil, original
	}
	if !c.creds.CanRefresh(ctx) {
		c.logger.Warn("unauthorized without refresh token, ending session", "path", r.path)
		if err := c.creds.Expire(ctx); err != nil {
			c.logger.Error("failed to clear session", "error", err)
		}
		return nil, nil, fmt.Errorf("%w: %w", ErrSessionExpired, original)
	}

	if _, err := c.creds.Refresh(ctx); err != nil {
		c.logger.Warn("token refresh failed", "path", r.path, "error", err)
		return nil, nil, original
	}

	c.logger.Debug("replaying request after token refresh", "method", r.method, "path", r.path)
	return c.send(ctx, r)
}

func (c *Client) send(ctx context.Context, r request) (*http.Response, []byte, error) {
	if c.breaker != nil {
		if err := c.breaker.Allow(); err != nil {
			return nil, nil, fmt.Errorf("%s %s: %w", r.method, r.path, err)
		}
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, fmt.Errorf("%s %s: rate limiter: %w", r.method, r.path, err)
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := c.newRequest(ctx, r)
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()
	c.logger.Debug("API request", "method", r.method, "url", req.URL.String())

	resp, err := c.http.Do(req)
	if err != nil {
		if c.breaker != nil && ctx.Err() == nil {
			c.breaker.RecordFailure()
		}
		c.logger.Error("API request error", "method", r.method, "path", r.path, "error", err)
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if c.breaker != nil {
			c.breaker.RecordFailure()
		}
		return nil, nil, fmt.Errorf("reading %s %s response: %w", r.method, r.path, err)
	}

	if c.breaker != nil {
		if resp.StatusCode >= 500 {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}
	}

	c.logger.Debug("API response", "method", r.method, "path", r.path,
		"status", resp.StatusCode, "bytes", len(body), "duration", time.Since(start))
	return resp, body, nil
}

func (c *Client) newRequest(ctx context.Context, r request) (*http.Request, error) {
	target := c.baseURL.String() + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.creds != nil {
		token, err := c.creds.AccessToken(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Debug("no access token available", "error", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

func jsonBody(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	return data, nil
}
