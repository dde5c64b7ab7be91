// Package cache is a small query cache keyed by slash-separated paths.
//
// Keys form a hierarchy: "duplicates/list/limit=10&offset=0" lives under the
// "duplicates/list" and "duplicates" prefixes, so a whole group can be read,
// updated, invalidated or cancelled at once. Stored values are treated as
// immutable; updates replace them.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrCanceled is returned by Fetch when the fetch was cancelled with Cancel.
var ErrCanceled = errors.New("cache fetch cancelled")

// FetchFunc loads the value for a key.
type FetchFunc func(ctx context.Context) (any, error)

// Entry is a read-only view of a cached value.
type Entry struct {
	Key       string
	Value     any
	UpdatedAt time.Time
	// Invalid entries are served by Get but refetched by Fetch.
	Invalid bool
}

// Snapshot captures an entry (or its absence) so it can be restored verbatim.
type Snapshot struct {
	Entry
	Present bool
}

type entry struct {
	value     any
	updatedAt time.Time
	invalid   bool
}

type flight struct {
	cancel   context.CancelFunc
	canceled bool
}

// Cache is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	inflight map[string]*flight
	group    singleflight.Group

	now    func() time.Time
	logger *slog.Logger
}

// New creates an empty cache. A nil logger discards output.
func New(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{
		entries:  make(map[string]*entry),
		inflight: make(map[string]*flight),
		now:      time.Now,
		logger:   logger,
	}
}

// Key joins path segments into a cache key.
func Key(parts ...string) string {
	return strings.Join(parts, "/")
}

// Matches reports whether key is prefix itself or lives beneath it.
// The empty prefix matches every key.
func Matches(key, prefix string) bool {
	if prefix == "" || key == prefix {
		return true
	}
	return strings.HasPrefix(key, prefix+"/")
}

// Get returns the cached value for key, fresh or not.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key and marks it fresh.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{value: value, updatedAt: c.now()}
}

// Entries returns every entry under prefix, ordered by key.
func (c *Cache) Entries(prefix string) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Entry
	for k, e := range c.entries {
		if Matches(k, prefix) {
			out = append(out, Entry{Key: k, Value: e.value, UpdatedAt: e.updatedAt, Invalid: e.invalid})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Update applies fn to every entry under prefix. fn returns the replacement
// value and whether the entry changed; unchanged entries are left alone.
// The returned snapshots hold the prior state of every changed entry.
func (c *Cache) Update(prefix string, fn func(key string, value any) (any, bool)) []Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.keysLocked(prefix)
	var snaps []Snapshot
	for _, k := range keys {
		e := c.entries[k]
		next, changed := fn(k, e.value)
		if !changed {
			continue
		}
		snaps = append(snaps, snapshotOf(k, e))
		c.entries[k] = &entry{value: next, updatedAt: c.now(), invalid: e.invalid}
	}
	return snaps
}

// Restore puts snapshotted entries back exactly as they were. A snapshot of
// an absent entry removes the key.
func (c *Cache) Restore(snaps []Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range snaps {
		if !s.Present {
			delete(c.entries, s.Key)
			continue
		}
		c.entries[s.Key] = &entry{value: s.Value, updatedAt: s.UpdatedAt, invalid: s.Invalid}
	}
}

// Invalidate marks every entry under prefix stale. Values stay readable
// through Get until the next Fetch replaces them.
func (c *Cache) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if Matches(k, prefix) {
			e.invalid = true
			n++
		}
	}
	c.logger.Debug("cache invalidated", "prefix", prefix, "entries", n)
	return n
}

// Remove deletes every entry under prefix.
func (c *Cache) Remove(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if Matches(k, prefix) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Cancel aborts in-flight fetches under prefix. Their results are discarded
// and their callers receive ErrCanceled.
func (c *Cache) Cancel(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, f := range c.inflight {
		if !Matches(k, prefix) {
			continue
		}
		f.canceled = true
		f.cancel()
		delete(c.inflight, k)
		c.group.Forget(k)
		n++
	}
	if n > 0 {
		c.logger.Debug("cache fetches cancelled", "prefix", prefix, "fetches", n)
	}
	return n
}

// Fetch returns the cached value for key if it is valid and younger than
// staleTime. Otherwise it calls fn, sharing one call among concurrent
// callers for the same key, and stores the result.
func (c *Cache) Fetch(ctx context.Context, key string, staleTime time.Duration, fn FetchFunc) (any, error) {
	if v, ok := c.fresh(key, staleTime); ok {
		return v, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// Shared by every joined caller, so one caller giving up must not end it
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f := &flight{cancel: cancel}

		c.mu.Lock()
		c.inflight[key] = f
		c.mu.Unlock()

		v, err := fn(fctx)

		c.mu.Lock()
		defer c.mu.Unlock()
		cancel()
		if c.inflight[key] == f {
			delete(c.inflight, key)
		}
		if f.canceled {
			return nil, ErrCanceled
		}
		if err != nil {
			return nil, err
		}
		c.entries[key] = &entry{value: v, updatedAt: c.now()}
		return v, nil
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Fetching reports whether any fetch under prefix is in flight.
func (c *Cache) Fetching(prefix string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.inflight {
		if Matches(k, prefix) {
			return true
		}
	}
	return false
}

func (c *Cache) fresh(key string, staleTime time.Duration) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.invalid {
		return nil, false
	}
	if staleTime <= 0 || c.now().Sub(e.updatedAt) >= staleTime {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) keysLocked(prefix string) []string {
	var keys []string
	for k := range c.entries {
		if Matches(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func snapshotOf(key string, e *entry) Snapshot {
	return Snapshot{
		Entry:   Entry{Key: key, Value: e.value, UpdatedAt: e.updatedAt, Invalid: e.invalid},
		Present: true,
	}
}

// GetAs is Get with a type assertion.
func GetAs[T any](c *Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// FetchAs is Fetch with a typed loader.
func FetchAs[T any](ctx context.Context, c *Cache, key string, staleTime time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.Fetch(ctx, key, staleTime, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, errors.New("cache: unexpected value type for " + key)
	}
	return t, nil
}
