// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package blocks records which device signatures have already voted in a poll.
//
// The (poll_id, signature) primary key is what actually prevents a second
// vote. IsBlocked is only an early exit: two requests can both see "not
// blocked" and race to Insert, and exactly one of them gets Created.
package blocks

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/danielhkuo/votegate/db"
)

// InsertResult tells a committer whether its row was new
type InsertResult int

const (
	Created InsertResult = iota + 1
	AlreadyExists
)

func (r InsertResult) String() string {
	switch r {
	case Created:
		return "created"
	case AlreadyExists:
		return "already_exists"
	}
	return "unknown"
}

// IsBlocked reports whether signature already consumed a vote in pollID
func IsBlocked(ctx context.Context, q db.Querier, pollID, signature string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM fingerprint_block
			WHERE poll_id = $1 AND signature = $2
		)
	`, pollID, signature).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check fingerprint block: %w", err)
	}
	return exists, nil
}

// Insert adds a block for signature. Inserting an existing signature is not
// an error; it reports AlreadyExists.
func Insert(ctx context.Context, q db.Querier, pollID, signature, bindingID string, at time.Time) (InsertResult, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO fingerprint_block (poll_id, signature, binding_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (poll_id, signature) DO NOTHING
	`, pollID, signature, bindingID, at)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return AlreadyExists, nil
		}
		return 0, fmt.Errorf("failed to insert fingerprint block: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read fingerprint block insert: %w", err)
	}
	if n == 0 {
		return AlreadyExists, nil
	}
	return Created, nil
}

// Owner returns the binding that created the block for signature
func Owner(ctx context.Context, q db.Querier, pollID, signature string) (string, error) {
	var bindingID string
	err := q.QueryRowContext(ctx, `
		SELECT binding_id FROM fingerprint_block
		WHERE poll_id = $1 AND signature = $2
	`, pollID, signature).Scan(&bindingID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query fingerprint block: %w", err)
	}
	return bindingID, nil
}

// Delete removes the block for signature and reports whether one existed
func Delete(ctx context.Context, q db.Querier, pollID, signature string) (bool, error) {
	res, err := q.ExecContext(ctx, `
		DELETE FROM fingerprint_block WHERE poll_id = $1 AND signature = $2
	`, pollID, signature)
	if err != nil {
		return false, fmt.Errorf("failed to delete fingerprint block: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteAll removes every block of a poll
func DeleteAll(ctx context.Context, q db.Querier, pollID string) (int, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM fingerprint_block WHERE poll_id = $1`, pollID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete fingerprint blocks: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Count returns the number of blocks in a poll
func Count(ctx context.Context, q db.Querier, pollID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM fingerprint_block WHERE poll_id = $1
	`, pollID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count fingerprint blocks: %w", err)
	}
	return n, nil
}
