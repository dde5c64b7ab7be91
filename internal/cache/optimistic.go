package cache

import "sync"

// Mutation rewrites the entries under Prefix. Apply follows the Update
// contract: return the new value and true, or false to leave the entry alone.
type Mutation struct {
	Prefix string
	Apply  func(key string, value any) (any, bool)
}

// Optimistic is an applied set of mutations that can still be undone.
// Exactly one of Commit or Rollback takes effect; later calls are no-ops.
type Optimistic struct {
	c *Cache

	mu        sync.Mutex
	snapshots []Snapshot
	done      bool
}

// Begin applies the mutations immediately and remembers the original state of
// every touched entry. A key touched by more than one mutation is restored to
// its state before the first.
func (c *Cache) Begin(mutations ...Mutation) *Optimistic {
	o := &Optimistic{c: c}
	seen := make(map[string]bool)
	for _, m := range mutations {
		for _, s := range c.Update(m.Prefix, m.Apply) {
			if seen[s.Key] {
				continue
			}
			seen[s.Key] = true
			o.snapshots = append(o.snapshots, s)
		}
	}
	return o
}

// Touched returns the keys changed by the mutations.
func (o *Optimistic) Touched() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	keys := make([]string, len(o.snapshots))
	for i, s := range o.snapshots {
		keys[i] = s.Key
	}
	return keys
}

// Commit keeps the optimistic values.
func (o *Optimistic) Commit() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.done = true
	o.snapshots = nil
}

// Rollback restores every touched entry. It reports whether anything was
// restored.
func (o *Optimistic) Rollback() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return false
	}
	o.done = true
	o.c.Restore(o.snapshots)
	restored := len(o.snapshots) > 0
	o.snapshots = nil
	return restored
}
