package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/dupes/internal/cache"
	"github.com/steveyegge/dupes/internal/storage"
	"github.com/steveyegge/dupes/internal/types"
)

// ErrResolveInFlight means a resolution for the same match is still running.
var ErrResolveInFlight = errors.New("resolution already in progress")

// ResolveAPI submits decisions. *api.Client implements it.
type ResolveAPI interface {
	Resolve(ctx context.Context, id string, action types.Action) error
}

// ResolverOptions configures a Resolver
type ResolverOptions struct {
	Cache    *cache.Cache
	API      ResolveAPI
	Audit    storage.AuditLog // optional
	Notifier Notifier         // optional
	Logger   *slog.Logger
	Actor    string

	// Concurrency bounds ResolveMany; values below 1 mean 1
	Concurrency int
}

// Result is the outcome of one resolution in a batch.
type Result struct {
	ID  string
	Err error
}

// Resolver applies merge/ignore decisions optimistically: cached lists drop
// the match and its detail shows the final status before the request is
// sent, and both are put back if the request fails.
type Resolver struct {
	cache       *cache.Cache
	api         ResolveAPI
	audit       storage.AuditLog
	notifier    Notifier
	logger      *slog.Logger
	actor       string
	concurrency int

	mu       sync.Mutex
	inflight map[string]bool
}

// NewResolver creates a Resolver
func NewResolver(opts ResolverOptions) *Resolver {
	r := &Resolver{
		cache:       opts.Cache,
		api:         opts.API,
		audit:       opts.Audit,
		notifier:    opts.Notifier,
		logger:      opts.Logger,
		actor:       opts.Actor,
		concurrency: opts.Concurrency,
		inflight:    make(map[string]bool),
	}
	if r.notifier == nil {
		r.notifier = discardNotifier{}
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	if r.concurrency < 1 {
		r.concurrency = 1
	}
	return r
}

// ResolveOne merges or ignores a single match.
//
// The cache is updated before the request goes out. On failure every touched
// entry is restored and the request's error is returned wrapped. Either way
// all duplicate entries are invalidated afterwards so the next load
// reconciles with the server.
func (r *Resolver) ResolveOne(ctx context.Context, id string, action types.Action) error {
	if !action.IsValid() {
		return fmt.Errorf("%w (got %q)", types.ErrInvalidAction, action)
	}
	if !r.begin(id) {
		return fmt.Errorf("%w: %s", ErrResolveInFlight, id)
	}
	defer r.end(id)

	// In-flight loads would otherwise overwrite the optimistic state
	r.cache.Cancel(KeyDuplicates)

	opt := r.cache.Begin(
		cache.Mutation{Prefix: KeyLists, Apply: removeFromList(id)},
		cache.Mutation{Prefix: DetailKey(id), Apply: setStatus(action.ResultStatus())},
	)

	// Once submitted the request runs to completion.
	err := r.api.Resolve(context.WithoutCancel(ctx), id, action)
	if err != nil {
		opt.Rollback()
		r.logger.Error("resolve failed", "id", id, "action", action, "error", err)
		r.notifier.Notify(Notice{
			Kind:    NoticeError,
			MatchID: id,
			Action:  action,
			Message: fmt.Sprintf("Failed to %s duplicate: %v", action, err),
			Err:     err,
		})
	} else {
		opt.Commit()
		r.logger.Info("duplicate resolved", "id", id, "action", action)
		r.notifier.Notify(Notice{
			Kind:    NoticeSuccess,
			MatchID: id,
			Action:  action,
			Message: fmt.Sprintf("Successfully %s duplicate", action.PastTense()),
		})
	}

	r.cache.Invalidate(KeyDuplicates)
	r.record(ctx, id, action, err)

	if err != nil {
		return fmt.Errorf("%s %s: %w", action, id, err)
	}
	return nil
}

// ResolveMany resolves each id with bounded concurrency. Every id is
// attempted; the returned error joins the individual failures.
func (r *Resolver) ResolveMany(ctx context.Context, ids []string, action types.Action) ([]Result, error) {
	if !action.IsValid() {
		return nil, fmt.Errorf("%w (got %q)", types.ErrInvalidAction, action)
	}
	ids = dedupe(ids)
	results := make([]Result, len(ids))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = Result{ID: id, Err: r.ResolveOne(ctx, id, action)}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return results, errors.Join(errs...)
}

// IsResolving reports whether any resolution is in flight.
func (r *Resolver) IsResolving() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inflight) > 0
}

// InFlight reports whether id is being resolved.
func (r *Resolver) InFlight(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inflight[id]
}

func (r *Resolver) begin(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inflight[id] {
		return false
	}
	r.inflight[id] = true
	return true
}

func (r *Resolver) end(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, id)
}

func (r *Resolver) record(ctx context.Context, id string, action types.Action, resolveErr error) {
	if r.audit == nil {
		return
	}
	rec := &types.Resolution{
		MatchID:   id,
		Action:    action,
		Succeeded: resolveErr == nil,
		Actor:     r.actor,
	}
	if resolveErr != nil {
		rec.Error = resolveErr.Error()
	}
	if err := r.audit.RecordResolution(context.WithoutCancel(ctx), rec); err != nil {
		r.logger.Warn("failed to record resolution", "id", id, "error", err)
	}
}

func removeFromList(id string) func(string, any) (any, bool) {
	return func(_ string, v any) (any, bool) {
		res, ok := v.(types.ListResult)
		if !ok {
			return nil, false
		}
		if _, found := res.Find(id); !found {
			return nil, false
		}
		return res.Without(id), true
	}
}

func setStatus(status types.Status) func(string, any) (any, bool) {
	return func(_ string, v any) (any, bool) {
		m, ok := v.(types.DuplicateMatch)
		if !ok {
			return nil, false
		}
		m.Status = status
		return m, true
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
