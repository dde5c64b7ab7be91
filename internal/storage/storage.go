package storage

import (
	"context"
	"errors"

	"github.com/steveyegge/dupes/internal/types"
)

// ErrNotFound is returned when no session or pending login is stored.
var ErrNotFound = errors.New("not found")

// SessionStore persists the operator session. Implementations are created at
// session start and cleared at logout; nothing reads tokens from globals.
type SessionStore interface {
	LoadSession(ctx context.Context) (*types.Session, error)
	SaveSession(ctx context.Context, s *types.Session) error
	ClearSession(ctx context.Context) error

	// Pending PKCE state. PopPending returns and deletes it in one step so a
	// callback can only be consumed once.
	SavePending(ctx context.Context, p *types.PendingAuth) error
	PopPending(ctx context.Context) (*types.PendingAuth, error)
}

// AuditLog records operator decisions.
type AuditLog interface {
	RecordResolution(ctx context.Context, r *types.Resolution) error
	ListResolutions(ctx context.Context, limit int) ([]*types.Resolution, error)
}

// Store is the full local storage surface used by the CLI.
type Store interface {
	SessionStore
	AuditLog
	Close() error
}
