// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package polls

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/danielhkuo/votegate/db"
)

// Store reads and writes poll open/closed state
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Ensure creates pollID as an open poll if it does not exist yet
func (s *Store) Ensure(ctx context.Context, pollID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO poll (id, is_open, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, pollID, true, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to seed poll: %w", err)
	}
	return nil
}

// IsOpen reports whether pollID accepts votes. A missing poll is closed.
func (s *Store) IsOpen(ctx context.Context, pollID string) (bool, error) {
	var open bool
	err := s.db.QueryRowContext(ctx, `SELECT is_open FROM poll WHERE id = $1`, pollID).Scan(&open)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query poll: %w", err)
	}
	return open, nil
}

// SetOpen opens or closes pollID, creating it if needed
func (s *Store) SetOpen(ctx context.Context, pollID string, open bool) error {
	return SetOpen(ctx, s.db, pollID, open)
}

// SetOpen opens or closes pollID using q, which may be a transaction
func SetOpen(ctx context.Context, q db.Querier, pollID string, open bool) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO poll (id, is_open, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET is_open = excluded.is_open, updated_at = excluded.updated_at
	`, pollID, open, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update poll state: %w", err)
	}
	return nil
}
