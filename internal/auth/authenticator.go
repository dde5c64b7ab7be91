// Package auth signs the operator in to the CRM with the OAuth 2.0
// authorization-code flow (PKCE) and keeps the stored tokens fresh.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/steveyegge/dupes/internal/config"
	"github.com/steveyegge/dupes/internal/storage"
	"github.com/steveyegge/dupes/internal/types"
)

var (
	// ErrNotLoggedIn means there is no stored session.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrNoRefreshToken means the session cannot be refreshed.
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrStateMismatch means the callback state does not match the pending login.
	ErrStateMismatch = errors.New("OAuth state mismatch")
	// ErrNoPendingLogin means a callback arrived without a login in progress.
	ErrNoPendingLogin = errors.New("no login in progress")
)

const (
	// expirySkew treats tokens as expired slightly early.
	expirySkew = 30 * time.Second
	// fallbackLifetime applies when the token response carries no timing at all.
	fallbackLifetime = time.Hour
)

// Options configures an Authenticator
type Options struct {
	Config     config.AuthConfig
	Store      storage.SessionStore
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Authenticator owns the session lifecycle: login, refresh and logout.
// It implements api.Credentials.
type Authenticator struct {
	oauth      *oauth2.Config
	lifetime   time.Duration
	store      storage.SessionStore
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time

	refreshGroup singleflight.Group
}

// New creates an Authenticator
func New(opts Options) *Authenticator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	lifetime := opts.Config.SessionLifetime
	if lifetime <= 0 {
		lifetime = fallbackLifetime
	}

	return &Authenticator{
		oauth: &oauth2.Config{
			ClientID: opts.Config.ClientID,
			Endpoint: oauth2.Endpoint{
				AuthURL:   opts.Config.AuthURL,
				TokenURL:  opts.Config.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
			RedirectURL: opts.Config.RedirectURI,
			Scopes:      opts.Config.ScopeList(),
		},
		lifetime:   lifetime,
		store:      opts.Store,
		httpClient: opts.HTTPClient,
		logger:     logger,
		now:        time.Now,
	}
}

// AuthCodeURL starts a login. It stores a fresh state and PKCE verifier and
// returns the URL the operator must visit.
func (a *Authenticator) AuthCodeURL(ctx context.Context) (string, error) {
	pending := &types.PendingAuth{
		Verifier: oauth2.GenerateVerifier(),
		State:    uuid.NewString(),
	}
	if err := a.store.SavePending(ctx, pending); err != nil {
		return "", fmt.Errorf("saving login state: %w", err)
	}
	return a.oauth.AuthCodeURL(pending.State, oauth2.S256ChallengeOption(pending.Verifier)), nil
}

// HandleCallback completes a login with the code and state from the
// redirect. The pending state is consumed whether or not it matches.
func (a *Authenticator) HandleCallback(ctx context.Context, code, state string) (*types.Session, error) {
	pending, err := a.store.PopPending(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoPendingLogin
	}
	if err != nil {
		return nil, fmt.Errorf("loading login state: %w", err)
	}
	if pending.State != state {
		a.logger.Warn("OAuth callback state mismatch")
		return nil, ErrStateMismatch
	}
	if code == "" {
		return nil, fmt.Errorf("authorization code missing from callback")
	}

	tok, err := a.oauth.Exchange(a.clientContext(ctx), code, oauth2.VerifierOption(pending.Verifier))
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}

	sess := a.sessionFromToken(tok, nil)
	if err := a.store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	a.logger.Info("logged in", "instance_url", sess.InstanceURL, "expires_at", sess.ExpiresAt)
	return sess, nil
}

// Session returns the stored session.
func (a *Authenticator) Session(ctx context.Context) (*types.Session, error) {
	sess, err := a.store.LoadSession(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotLoggedIn
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return sess, nil
}

// Valid reports whether sess has a known expiry that is more than the skew
// away.
func (a *Authenticator) Valid(sess *types.Session) bool {
	if sess == nil || sess.AccessToken == "" || sess.ExpiresAt.IsZero() {
		return false
	}
	return a.now().Before(sess.ExpiresAt.Add(-expirySkew))
}

// AccessToken returns the stored access token, or "" when signed out.
func (a *Authenticator) AccessToken(ctx context.Context) (string, error) {
	sess, err := a.Session(ctx)
	if errors.Is(err, ErrNotLoggedIn) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return sess.AccessToken, nil
}

// CanRefresh reports whether the stored session has a refresh token.
func (a *Authenticator) CanRefresh(ctx context.Context) bool {
	sess, err := a.Session(ctx)
	return err == nil && sess.RefreshToken != ""
}

// Refresh exchanges the refresh token for a new access token. Concurrent
// callers share a single token request.
func (a *Authenticator) Refresh(ctx context.Context) (string, error) {
	v, err, shared := a.refreshGroup.Do("refresh", func() (any, error) {
		return a.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	if shared {
		a.logger.Debug("joined in-flight token refresh")
	}
	return v.(*types.Session).AccessToken, nil
}

func (a *Authenticator) refresh(ctx context.Context) (*types.Session, error) {
	prev, err := a.Session(ctx)
	if err != nil {
		return nil, err
	}
	if prev.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	src := a.oauth.TokenSource(a.clientContext(ctx), &oauth2.Token{RefreshToken: prev.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}

	sess := a.sessionFromToken(tok, prev)
	if err := a.store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	a.logger.Debug("access token refreshed", "expires_at", sess.ExpiresAt)
	return sess, nil
}

// Expire clears the session after the server rejected it for good.
func (a *Authenticator) Expire(ctx context.Context) error {
	a.logger.Warn("session expired, logging out")
	return a.Logout(ctx)
}

// Logout removes the stored session and any pending login.
func (a *Authenticator) Logout(ctx context.Context) error {
	if err := a.store.ClearSession(ctx); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

func (a *Authenticator) clientContext(ctx context.Context) context.Context {
	if a.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

// sessionFromToken builds a session from a token response. Values missing
// from a refresh response are carried over from prev.
func (a *Authenticator) sessionFromToken(tok *oauth2.Token, prev *types.Session) *types.Session {
	sess := &types.Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    a.expiry(tok),
	}
	if v, ok := tok.Extra("instance_url").(string); ok {
		sess.InstanceURL = v
	}
	if prev != nil {
		if sess.RefreshToken == "" {
			sess.RefreshToken = prev.RefreshToken
		}
		if sess.InstanceURL == "" {
			sess.InstanceURL = prev.InstanceURL
		}
	}
	return sess
}

// expiry prefers expires_in, then issued_at plus the configured session
// lifetime, then a one hour default.
func (a *Authenticator) expiry(tok *oauth2.Token) time.Time {
	if !tok.Expiry.IsZero() {
		return tok.Expiry
	}
	if issued, ok := issuedAt(tok.Extra("issued_at")); ok {
		return issued.Add(a.lifetime)
	}
	return a.now().Add(fallbackLifetime)
}

// issuedAt parses the platform's issued_at, milliseconds since the epoch,
// sent as a string or a number.
func issuedAt(v any) (time.Time, bool) {
	var ms int64
	switch t := v.(type) {
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		ms = n
	case float64:
		ms = int64(t)
	case int64:
		ms = t
	default:
		return time.Time{}, false
	}
	if ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
