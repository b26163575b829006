package database

import (
	"context"
	"fmt"
)

// schema holds the full database schema. ir-relay keeps a single
// small table, so the schema is applied idempotently at startup
// rather than through versioned migration files.
const schema = `
CREATE TABLE IF NOT EXISTS command_log (
	id          TEXT PRIMARY KEY,
	endpoint_id TEXT NOT NULL,
	resource    TEXT NOT NULL,
	command     TEXT NOT NULL,
	count       INTEGER NOT NULL DEFAULT 1,
	status      TEXT NOT NULL DEFAULT 'pending',
	detail      TEXT,
	created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_command_log_endpoint
	ON command_log(endpoint_id);

CREATE INDEX IF NOT EXISTS idx_command_log_created
	ON command_log(created_at);
`

// InitSchema creates the ir-relay tables if they don't exist.
// Safe to call on every startup.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: If schema creation fails
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("initialising schema: %w", err)
	}
	return nil
}
