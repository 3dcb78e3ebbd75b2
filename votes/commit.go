// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package votes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/danielhkuo/votegate/auth"
	"github.com/danielhkuo/votegate/binding"
	"github.com/danielhkuo/votegate/blocks"
	"github.com/danielhkuo/votegate/models"
)

var (
	// ErrAlreadyVoted means the binding was no longer ACTIVE at commit time
	ErrAlreadyVoted = errors.New("device already voted")
	// ErrConflict means another binding holds the fingerprint block
	ErrConflict = errors.New("fingerprint already voted")
)

// CommitRequest is everything needed to record one vote
type CommitRequest struct {
	PollID    string
	Option    int
	Binding   binding.Binding
	Signature string
	VoterHash string
}

// CommitResult describes a committed vote
type CommitResult struct {
	VoteID       string
	BindingID    string
	Token        string
	VotedAt      time.Time
	BlockCreated bool
}

// Committer records votes. It is the only writer of vote rows, VOTED
// bindings and fingerprint blocks.
type Committer struct {
	db  *sql.DB
	now func() time.Time
}

func NewCommitter(db *sql.DB) *Committer {
	return &Committer{db: db, now: time.Now}
}

// Commit stores the vote, marks the binding VOTED and blocks the signature
// in one transaction. Either all three happen or none do.
//
// A binding that is no longer ACTIVE returns ErrAlreadyVoted; a signature
// already blocked by a different binding returns ErrConflict.
func (c *Committer) Commit(ctx context.Context, req CommitRequest) (CommitResult, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return CommitResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := c.now().UTC()
	b := req.Binding

	// Implicit bindings are only persisted together with their vote
	if b.Pending {
		if err := binding.Insert(ctx, tx, b.DeviceBinding); err != nil {
			return CommitResult{}, err
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE device_binding
		SET status = $1, voted_at = $2, fingerprint_signature = $3, updated_at = $4
		WHERE id = $5 AND status = $6
	`, models.BindingVoted, now, req.Signature, now, b.ID, models.BindingActive)
	if err != nil {
		return CommitResult{}, fmt.Errorf("failed to mark binding voted: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return CommitResult{}, fmt.Errorf("failed to mark binding voted: %w", err)
	}
	if n == 0 {
		return CommitResult{}, ErrAlreadyVoted
	}

	inserted, err := blocks.Insert(ctx, tx, req.PollID, req.Signature, b.ID, now)
	if err != nil {
		return CommitResult{}, err
	}
	if inserted == blocks.AlreadyExists {
		owner, err := blocks.Owner(ctx, tx, req.PollID, req.Signature)
		if err != nil {
			return CommitResult{}, err
		}
		if owner != b.ID {
			return CommitResult{}, ErrConflict
		}
	}

	voteID := auth.NewID()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO vote (id, poll_id, option, voter_hash, binding_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, voteID, req.PollID, req.Option, req.VoterHash, b.ID, now)
	if err != nil {
		return CommitResult{}, fmt.Errorf("failed to insert vote: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return CommitResult{}, fmt.Errorf("failed to commit vote: %w", err)
	}

	return CommitResult{
		VoteID:       voteID,
		BindingID:    b.ID,
		Token:        b.Token,
		VotedAt:      now,
		BlockCreated: inserted == blocks.Created,
	}, nil
}
