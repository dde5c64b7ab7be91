package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/dupes/internal/types"
)

// MemoryStore is a Store that lives for the process only. Used by tests.
type MemoryStore struct {
	mu          sync.Mutex
	session     *types.Session
	pending     *types.PendingAuth
	resolutions []*types.Resolution
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) LoadSession(ctx context.Context) (*types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, ErrNotFound
	}
	s := *m.session
	return &s, nil
}

func (m *MemoryStore) SaveSession(ctx context.Context, s *types.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.session = &cp
	return nil
}

func (m *MemoryStore) ClearSession(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	m.pending = nil
	return nil
}

func (m *MemoryStore) SavePending(ctx context.Context, p *types.PendingAuth) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.pending = &cp
	return nil
}

func (m *MemoryStore) PopPending(ctx context.Context) (*types.PendingAuth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return nil, ErrNotFound
	}
	p := m.pending
	m.pending = nil
	return p, nil
}

func (m *MemoryStore) RecordResolution(ctx context.Context, r *types.Resolution) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.resolutions = append(m.resolutions, &cp)
	return nil
}

// ListResolutions returns the newest records first.
func (m *MemoryStore) ListResolutions(ctx context.Context, limit int) ([]*types.Resolution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*types.Resolution, len(m.resolutions))
	copy(out, m.resolutions)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
