package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/steveyegge/dupes/internal/api"
	"github.com/steveyegge/dupes/internal/auth"
	"github.com/steveyegge/dupes/internal/cache"
	"github.com/steveyegge/dupes/internal/review"
)

// breakerSuccesses is how many half-open probes must succeed to close the circuit
const breakerSuccesses = 2

// app holds the components a signed-in command works with
type app struct {
	auth     *auth.Authenticator
	client   *api.Client
	cache    *cache.Cache
	browser  *review.Browser
	resolver *review.Resolver
}

func newAuthenticator() *auth.Authenticator {
	return auth.New(auth.Options{
		Config: cfg.Auth,
		Store:  store,
		Logger: logger.With("component", "auth"),
	})
}

// newApp wires the API client, cache, browser and resolver for the stored
// session. notifier may be nil.
func newApp(ctx context.Context, notifier review.Notifier) (*app, error) {
	a := newAuthenticator()
	sess, err := a.Session(ctx)
	if errors.Is(err, auth.ErrNotLoggedIn) {
		return nil, fmt.Errorf("not logged in; run 'dupes login' first")
	}
	if err != nil {
		return nil, err
	}

	base, err := cfg.APIBase(sess.InstanceURL)
	if err != nil {
		return nil, err
	}

	var breaker *api.CircuitBreaker
	if cfg.API.BreakerFailures > 0 {
		breaker = api.NewCircuitBreaker(cfg.API.BreakerFailures, breakerSuccesses, cfg.API.BreakerOpenTimeout, logger.With("component", "breaker"))
	}

	client, err := api.NewClient(api.Options{
		BaseURL:     base,
		Credentials: a,
		Logger:      logger.With("component", "api"),
		Timeout:     cfg.API.Timeout,
		RateLimit:   cfg.API.RateLimit,
		RateBurst:   cfg.API.RateBurst,
		Breaker:     breaker,
	})
	if err != nil {
		return nil, fmt.Errorf("creating API client: %w", err)
	}

	ctrl, err := review.NewController(cfg.Review.PageSize, cfg.Review.MinScore)
	if err != nil {
		return nil, err
	}

	c := cache.New(logger.With("component", "cache"))
	return &app{
		auth:    a,
		client:  client,
		cache:   c,
		browser: review.NewBrowser(ctrl, c, client, cfg.Review.StaleTime, logger.With("component", "browser")),
		resolver: review.NewResolver(review.ResolverOptions{
			Cache:       c,
			API:         client,
			Audit:       store,
			Notifier:    notifier,
			Logger:      logger.With("component", "resolver"),
			Actor:       cfg.Actor,
			Concurrency: cfg.Review.ResolveConcurrency,
		}),
	}, nil
}

// sessionHint turns a forced logout into an instruction
func sessionHint(err error) error {
	if errors.Is(err, api.ErrSessionExpired) {
		return fmt.Errorf("your session has expired; run 'dupes login' to sign in again")
	}
	return err
}
