package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

/*
PostgreSQL storage for webhooks and their delivery audit trail

- Placeholders are $1, $2 ...
- events is a TEXT[] so subscription lookup can use the GIN index
- (delivery_id, attempt) is UNIQUE; a second write of the same attempt
  surfaces as webhook.ErrDuplicateAttempt
*/

// Open connects with the default pool (25, 5, 5 min)
func Open(connectionString string) (*sql.DB, error) {
	return OpenWithPoolConfig(connectionString, 25, 5, 5)
}

// OpenWithPoolConfig connects with a custom pool
// maxOpenConns: maximum simultaneous connections (0 = unlimited)
// maxIdleConns: idle connections kept in the pool
// maxLifeMinutes: how long a connection may be reused
func OpenWithPoolConfig(connectionString string, maxOpenConns, maxIdleConns, maxLifeMinutes int) (*sql.DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
	if maxLifeMinutes > 0 {
		db.SetConnMaxLifetime(time.Duration(maxLifeMinutes) * time.Minute)
	}

	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS webhooks (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	url TEXT NOT NULL,
	events TEXT[] NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	timeout_ms BIGINT NOT NULL,
	secret TEXT NOT NULL,
	created_by TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_webhooks_events ON webhooks USING GIN (events);

CREATE TABLE IF NOT EXISTS webhook_deliveries (
	id BIGSERIAL PRIMARY KEY,
	delivery_id TEXT NOT NULL,
	webhook_id TEXT NOT NULL,
	event TEXT NOT NULL,
	payload JSON NOT NULL,
	attempt INTEGER NOT NULL,
	status_code INTEGER,
	response_body TEXT NOT NULL DEFAULT '',
	response_headers JSONB NOT NULL DEFAULT '{}',
	duration_ms BIGINT NOT NULL,
	success BOOLEAN NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	next_retry_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (delivery_id, attempt)
);
CREATE INDEX IF NOT EXISTS idx_webhook_deliveries_webhook ON webhook_deliveries (webhook_id, created_at DESC);
`

// CreateSchema creates the tables and indexes if they do not exist
func CreateSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// DropSchema removes both tables (useful for tests)
func DropSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS webhook_deliveries, webhooks CASCADE"); err != nil {
		return fmt.Errorf("dropping schema: %w", err)
	}
	return nil
}
