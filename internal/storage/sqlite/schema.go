package sqlite

import "github.com/steveyegge/dupes/internal/storage/migrations"

// schemaMigrations is the history of the local database. Times are stored
// as unix milliseconds; 0 means unknown.
var schemaMigrations = []migrations.Migration{
	{
		Version:     1,
		Description: "session and pending login",
		Up: `
-- Operator session (single row)
CREATE TABLE IF NOT EXISTS session (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    access_token TEXT NOT NULL,
    refresh_token TEXT NOT NULL DEFAULT '',
    instance_url TEXT NOT NULL DEFAULT '',
    expires_at INTEGER NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL
);

-- PKCE state between authorize redirect and callback (single row)
CREATE TABLE IF NOT EXISTS pending_auth (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    verifier TEXT NOT NULL,
    state TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
`,
		Down: `
DROP TABLE IF EXISTS pending_auth;
DROP TABLE IF EXISTS session;
`,
	},
	{
		Version:     2,
		Description: "resolution audit trail",
		Up: `
CREATE TABLE IF NOT EXISTS resolutions (
    id TEXT PRIMARY KEY,
    match_id TEXT NOT NULL,
    action TEXT NOT NULL CHECK (action IN ('merge', 'ignore')),
    succeeded INTEGER NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    actor TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_resolutions_match ON resolutions(match_id);
CREATE INDEX IF NOT EXISTS idx_resolutions_created_at ON resolutions(created_at);
`,
		Down: `
DROP INDEX IF EXISTS idx_resolutions_created_at;
DROP INDEX IF EXISTS idx_resolutions_match;
DROP TABLE IF EXISTS resolutions;
`,
	},
}
