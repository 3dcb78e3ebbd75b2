// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
// The same DDL runs on PostgreSQL and SQLite.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Querier is satisfied by both *sql.DB and *sql.Tx
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

const schema = `
-- Polls
CREATE TABLE IF NOT EXISTS poll (
    id TEXT PRIMARY KEY,
    is_open BOOLEAN NOT NULL DEFAULT TRUE,
    updated_at TIMESTAMP NOT NULL
);

-- Device bindings (one issued token per device per poll)
CREATE TABLE IF NOT EXISTS device_binding (
    id TEXT PRIMARY KEY,
    poll_id TEXT NOT NULL,
    token TEXT NOT NULL UNIQUE,
    status TEXT NOT NULL DEFAULT 'ACTIVE' CHECK (status IN ('ACTIVE', 'VOTED')),
    voted_at TIMESTAMP,
    fingerprint_signature TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    CHECK ((status = 'VOTED') = (voted_at IS NOT NULL))
);

CREATE INDEX IF NOT EXISTS idx_device_binding_poll_id ON device_binding(poll_id);

-- Fingerprint blocks (signatures that already voted)
CREATE TABLE IF NOT EXISTS fingerprint_block (
    poll_id TEXT NOT NULL,
    signature TEXT NOT NULL,
    binding_id TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (poll_id, signature)
);

-- Votes (append-only)
CREATE TABLE IF NOT EXISTS vote (
    id TEXT PRIMARY KEY,
    poll_id TEXT NOT NULL,
    option INTEGER NOT NULL CHECK (option >= 1),
    voter_hash TEXT NOT NULL,
    binding_id TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_vote_poll_id ON vote(poll_id);
CREATE INDEX IF NOT EXISTS idx_vote_binding_id ON vote(binding_id);

-- Admin override audit trail
CREATE TABLE IF NOT EXISTS override_audit (
    id TEXT PRIMARY KEY,
    poll_id TEXT NOT NULL,
    binding_id TEXT NOT NULL,
    token_prefix TEXT NOT NULL,
    reason TEXT NOT NULL,
    removed_votes INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_override_audit_poll_id ON override_audit(poll_id);
`
