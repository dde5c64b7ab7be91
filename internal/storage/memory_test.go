package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/dupes/internal/types"
)

func TestMemoryStoreSession(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, err := m.LoadSession(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	sess := &types.Session{AccessToken: "a", RefreshToken: "r"}
	require.NoError(t, m.SaveSession(ctx, sess))

	// Callers must not be able to mutate stored state through their pointer
	sess.AccessToken = "mutated"
	got, err := m.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", got.AccessToken)

	require.NoError(t, m.ClearSession(ctx))
	_, err = m.LoadSession(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorePendingPop(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	require.NoError(t, m.SavePending(ctx, &types.PendingAuth{Verifier: "v", State: "s"}))
	p, err := m.PopPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s", p.State)

	_, err = m.PopPending(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreResolutions(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	now := time.Now()

	require.NoError(t, m.RecordResolution(ctx, &types.Resolution{MatchID: "old", CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, m.RecordResolution(ctx, &types.Resolution{MatchID: "new", CreatedAt: now}))

	list, err := m.ListResolutions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "new", list[0].MatchID)
}
