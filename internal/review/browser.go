package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/steveyegge/dupes/internal/cache"
	"github.com/steveyegge/dupes/internal/types"
)

var (
	// ErrSuperseded means a newer Load was issued while this one was in
	// flight; its response was discarded.
	ErrSuperseded = errors.New("list response superseded by a newer request")
	// ErrNotFound means no cached match has the requested id.
	ErrNotFound = errors.New("duplicate not found")
)

// DefaultStaleTime is how long a fetched page is served without refetching.
const DefaultStaleTime = 10 * time.Second

// statsLimit is the page size used to sample the whole pending queue.
const statsLimit = 1000

// Lister fetches pages of pending matches. *api.Client implements it.
type Lister interface {
	ListPending(ctx context.Context, params types.ListParams) (*types.ListResult, error)
}

// Page is a loaded list page together with the view-state it was loaded for.
type Page struct {
	Items []types.DuplicateMatch
	State State
}

// Stats summarizes the pending queue by score band.
type Stats struct {
	Total  int
	Bands  map[types.ScoreBand]int
	Sample int // matches actually counted, at most statsLimit
}

// Browser loads list pages for a Controller through the cache.
type Browser struct {
	ctrl      *Controller
	cache     *cache.Cache
	lister    Lister
	staleTime time.Duration
	logger    *slog.Logger

	generation atomic.Uint64
}

// NewBrowser wires a controller to a cache and list source.
func NewBrowser(ctrl *Controller, c *cache.Cache, lister Lister, staleTime time.Duration, logger *slog.Logger) *Browser {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Browser{
		ctrl:      ctrl,
		cache:     c,
		lister:    lister,
		staleTime: staleTime,
		logger:    logger,
	}
}

// Controller returns the view-state the browser loads for.
func (b *Browser) Controller() *Controller {
	return b.ctrl
}

// Load fetches the page for the controller's current params. Every item is
// seeded into the detail cache and the server total is recorded on the
// controller. If another Load starts before this one returns, this one
// fails with ErrSuperseded and leaves the controller untouched.
func (b *Browser) Load(ctx context.Context) (*Page, error) {
	gen := b.generation.Add(1)
	params := b.ctrl.Params()

	res, err := b.fetchList(ctx, params)

	if b.generation.Load() != gen {
		b.logger.Debug("discarding superseded list response", "generation", gen, "params", params.Key())
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}

	for _, m := range res.Items {
		b.cache.Set(DetailKey(m.ID), m)
	}
	b.ctrl.SetTotalCount(res.Page.Total)

	return &Page{Items: res.Items, State: b.ctrl.State()}, nil
}

// Refresh drops cached pages and loads the current one from the server.
func (b *Browser) Refresh(ctx context.Context) (*Page, error) {
	b.cache.Invalidate(KeyLists)
	return b.Load(ctx)
}

// Detail returns the cached match with the given id, looking in the detail
// entries first and then in every cached list page.
func (b *Browser) Detail(id string) (types.DuplicateMatch, error) {
	if m, ok := cache.GetAs[types.DuplicateMatch](b.cache, DetailKey(id)); ok {
		return m, nil
	}
	for _, e := range b.cache.Entries(KeyLists) {
		res, ok := e.Value.(types.ListResult)
		if !ok {
			continue
		}
		if m, ok := res.Find(id); ok {
			return m, nil
		}
	}
	return types.DuplicateMatch{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Find returns the match with the given id. When it is not cached the whole
// pending queue is scanned, ignoring the min score filter.
func (b *Browser) Find(ctx context.Context, id string) (types.DuplicateMatch, error) {
	if m, err := b.Detail(id); err == nil {
		return m, nil
	}

	params := b.ctrl.Params()
	params.Limit = statsLimit
	params.MinScore = 0
	for params.Offset = 0; ; params.Offset += params.Limit {
		res, err := b.fetchList(ctx, params)
		if err != nil {
			return types.DuplicateMatch{}, err
		}
		if m, ok := res.Find(id); ok {
			b.cache.Set(DetailKey(id), m)
			return m, nil
		}
		if len(res.Items) == 0 || (!res.Page.HasMore && params.Offset+len(res.Items) >= res.Page.Total) {
			break
		}
	}
	return types.DuplicateMatch{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (b *Browser) fetchList(ctx context.Context, params types.ListParams) (types.ListResult, error) {
	return cache.FetchAs(ctx, b.cache, ListKey(params), b.staleTime,
		func(ctx context.Context) (types.ListResult, error) {
			r, err := b.lister.ListPending(ctx, params)
			if err != nil {
				return types.ListResult{}, err
			}
			return *r, nil
		})
}

// Stats counts pending matches above the current min score by score band.
func (b *Browser) Stats(ctx context.Context) (*Stats, error) {
	params := b.ctrl.Params()
	params.Limit = statsLimit
	params.Offset = 0
	key := cache.Key(KeyStats, params.Key())

	return cache.FetchAs(ctx, b.cache, key, b.staleTime, func(ctx context.Context) (*Stats, error) {
		res, err := b.lister.ListPending(ctx, params)
		if err != nil {
			return nil, err
		}
		s := &Stats{Total: res.Page.Total, Bands: make(map[types.ScoreBand]int), Sample: len(res.Items)}
		for _, m := range res.Items {
			s.Bands[types.BandFor(m.Score)]++
		}
		return s, nil
	})
}
