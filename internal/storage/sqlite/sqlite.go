package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/steveyegge/dupes/internal/storage"
	"github.com/steveyegge/dupes/internal/storage/migrations"
	"github.com/steveyegge/dupes/internal/types"
)

// SQLiteStorage implements storage.Store using SQLite
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

var _ storage.Store = (*SQLiteStorage)(nil)

// New creates a new SQLite storage backend
func New(path string) (*SQLiteStorage, error) {
	// Ensure directory exists; tokens live here so keep it private
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Open database with WAL mode so a console and a one-shot command can share it
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Bring the schema up to date
	if _, err := migrations.NewManager(schemaMigrations...).Apply(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &SQLiteStorage{db: db, now: time.Now}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// LoadSession returns the stored session or storage.ErrNotFound
func (s *SQLiteStorage) LoadSession(ctx context.Context) (*types.Session, error) {
	var sess types.Session
	var expires int64
	err := s.db.QueryRowContext(ctx, `
		SELECT access_token, refresh_token, instance_url, expires_at
		FROM session WHERE id = 1
	`).Scan(&sess.AccessToken, &sess.RefreshToken, &sess.InstanceURL, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	sess.ExpiresAt = fromMillis(expires)
	return &sess, nil
}

// SaveSession replaces the stored session
func (s *SQLiteStorage) SaveSession(ctx context.Context, sess *types.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session (id, access_token, refresh_token, instance_url, expires_at, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			instance_url = excluded.instance_url,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, sess.AccessToken, sess.RefreshToken, sess.InstanceURL, toMillis(sess.ExpiresAt), toMillis(s.now()))
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// ClearSession removes the session and any pending login
func (s *SQLiteStorage) ClearSession(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_auth`); err != nil {
		return fmt.Errorf("failed to clear pending login: %w", err)
	}
	return tx.Commit()
}

// SavePending stores PKCE state, replacing any earlier attempt
func (s *SQLiteStorage) SavePending(ctx context.Context, p *types.PendingAuth) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_auth (id, verifier, state, created_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			verifier = excluded.verifier,
			state = excluded.state,
			created_at = excluded.created_at
	`, p.Verifier, p.State, toMillis(s.now()))
	if err != nil {
		return fmt.Errorf("failed to save pending login: %w", err)
	}
	return nil
}

// PopPending reads and deletes the PKCE state in one transaction
func (s *SQLiteStorage) PopPending(ctx context.Context) (*types.PendingAuth, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var p types.PendingAuth
	err = tx.QueryRowContext(ctx, `SELECT verifier, state FROM pending_auth WHERE id = 1`).
		Scan(&p.Verifier, &p.State)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pending login: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_auth`); err != nil {
		return nil, fmt.Errorf("failed to delete pending login: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return &p, nil
}

// RecordResolution appends to the audit trail. ID and CreatedAt are filled in
// when empty.
func (s *SQLiteStorage) RecordResolution(ctx context.Context, r *types.Resolution) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	if !r.Action.IsValid() {
		return fmt.Errorf("validation failed: %w", types.ErrInvalidAction)
	}

	succeeded := 0
	if r.Succeeded {
		succeeded = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resolutions (id, match_id, action, succeeded, error, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.MatchID, string(r.Action), succeeded, r.Error, r.Actor, toMillis(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to record resolution: %w", err)
	}
	return nil
}

// ListResolutions returns the newest records first; limit <= 0 means all
func (s *SQLiteStorage) ListResolutions(ctx context.Context, limit int) ([]*types.Resolution, error) {
	query := `
		SELECT id, match_id, action, succeeded, error, actor, created_at
		FROM resolutions
		ORDER BY created_at DESC, rowid DESC
	`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolutions: %w", err)
	}
	defer rows.Close()

	var out []*types.Resolution
	for rows.Next() {
		var r types.Resolution
		var action string
		var succeeded int
		var created int64
		if err := rows.Scan(&r.ID, &r.MatchID, &action, &succeeded, &r.Error, &r.Actor, &created); err != nil {
			return nil, fmt.Errorf("failed to scan resolution: %w", err)
		}
		r.Action = types.Action(action)
		r.Succeeded = succeeded != 0
		r.CreatedAt = fromMillis(created)
		out = append(out, &r)
	}
	return out, rows.Err()
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
