// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package override

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/danielhkuo/votegate/auth"
	"github.com/danielhkuo/votegate/binding"
	"github.com/danielhkuo/votegate/blocks"
	"github.com/danielhkuo/votegate/cliparse"
	"github.com/danielhkuo/votegate/metrics"
	"github.com/danielhkuo/votegate/models"
	"github.com/danielhkuo/votegate/polls"
	"github.com/danielhkuo/votegate/votes"
)

var (
	ErrNotFound     = errors.New("device not found")
	ErrNotConfirmed = errors.New("hard reset not confirmed")
)

const defaultReason = "No reason provided"

// ResetResult describes what a device reset undid
type ResetResult struct {
	BindingID    string
	PollID       string
	RemovedBlock bool
	RemovedVotes int
}

// ClearResult describes a bulk clear
type ClearResult struct {
	DeletedVotes    int
	DeletedBindings int
	DeletedBlocks   int
}

// Service is the operator-facing path that moves device bindings backwards
type Service struct {
	db                *sql.DB
	logger            *zap.Logger
	removeVoteOnReset bool
	now               func() time.Time
}

// NewService creates the override service. removeVoteOnReset decides
// whether Reset also deletes the votes linked to the device.
func NewService(db *sql.DB, logger *zap.Logger, removeVoteOnReset bool) *Service {
	return &Service{
		db:                db,
		logger:            logger,
		removeVoteOnReset: removeVoteOnReset,
		now:               time.Now,
	}
}

// RemovesVotes reports the configured reset policy
func (s *Service) RemovesVotes() bool {
	return s.removeVoteOnReset
}

// Reset returns the binding for token to ACTIVE, removes its fingerprint
// block and, depending on policy, its votes. Every reset is audited.
func (s *Service) Reset(ctx context.Context, token, reason string) (ResetResult, error) {
	if reason == "" {
		reason = defaultReason
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ResetResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	b, err := binding.FindByToken(ctx, tx, token)
	if errors.Is(err, binding.ErrNotFound) {
		return ResetResult{}, ErrNotFound
	}
	if err != nil {
		return ResetResult{}, err
	}

	now := s.now().UTC()
	result := ResetResult{BindingID: b.ID, PollID: b.PollID}

	_, err = tx.ExecContext(ctx, `
		UPDATE device_binding
		SET status = $1, voted_at = NULL, fingerprint_signature = NULL, updated_at = $2
		WHERE id = $3
	`, models.BindingActive, now, b.ID)
	if err != nil {
		return ResetResult{}, fmt.Errorf("failed to reset binding: %w", err)
	}

	if b.FingerprintSignature != nil && *b.FingerprintSignature != "" {
		result.RemovedBlock, err = blocks.Delete(ctx, tx, b.PollID, *b.FingerprintSignature)
		if err != nil {
			return ResetResult{}, err
		}
	}

	if s.removeVoteOnReset {
		result.RemovedVotes, err = votes.DeleteByBinding(ctx, tx, b.PollID, b.ID)
		if err != nil {
			return ResetResult{}, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO override_audit (id, poll_id, binding_id, token_prefix, reason, removed_votes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, auth.NewID(), b.PollID, b.ID, auth.TokenPrefix(token), reason, result.RemovedVotes, now)
	if err != nil {
		return ResetResult{}, fmt.Errorf("failed to write audit record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ResetResult{}, fmt.Errorf("failed to commit reset: %w", err)
	}

	metrics.AdminOverridesTotal.WithLabelValues("reset").Inc()
	s.logger.Info("admin override: device reset",
		zap.String("poll_id", b.PollID),
		zap.String("binding_id", b.ID),
		zap.String("token", auth.TokenPrefix(token)),
		zap.String("reason", reason),
		zap.Bool("removed_block", result.RemovedBlock),
		zap.Int("removed_votes", result.RemovedVotes),
	)

	return result, nil
}

// ClearVotes deletes every vote of a poll. Bindings and blocks stay, so
// devices that voted still cannot vote again.
func (s *Service) ClearVotes(ctx context.Context, pollID string) (ClearResult, error) {
	n, err := votes.DeleteAll(ctx, s.db, pollID)
	if err != nil {
		return ClearResult{}, err
	}

	metrics.AdminOverridesTotal.WithLabelValues("clear_votes").Inc()
	s.logger.Info("admin override: votes cleared",
		zap.String("poll_id", pollID),
		zap.Int("deleted_votes", n),
	)
	return ClearResult{DeletedVotes: n}, nil
}

// HardReset wipes votes, bindings and blocks and reopens the poll. It only
// runs when confirmation equals cliparse.HardResetConfirmation.
func (s *Service) HardReset(ctx context.Context, pollID, confirmation string) (ClearResult, error) {
	if confirmation != cliparse.HardResetConfirmation {
		return ClearResult{}, ErrNotConfirmed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ClearResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var result ClearResult
	if result.DeletedVotes, err = votes.DeleteAll(ctx, tx, pollID); err != nil {
		return ClearResult{}, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM device_binding WHERE poll_id = $1`, pollID)
	if err != nil {
		return ClearResult{}, fmt.Errorf("failed to delete device bindings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ClearResult{}, err
	}
	result.DeletedBindings = int(n)

	if result.DeletedBlocks, err = blocks.DeleteAll(ctx, tx, pollID); err != nil {
		return ClearResult{}, err
	}

	if err := polls.SetOpen(ctx, tx, pollID, true); err != nil {
		return ClearResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return ClearResult{}, fmt.Errorf("failed to commit hard reset: %w", err)
	}

	metrics.AdminOverridesTotal.WithLabelValues("hard_reset").Inc()
	s.logger.Warn("admin override: hard reset",
		zap.String("poll_id", pollID),
		zap.Int("deleted_votes", result.DeletedVotes),
		zap.Int("deleted_bindings", result.DeletedBindings),
		zap.Int("deleted_blocks", result.DeletedBlocks),
	)
	return result, nil
}

// AuditEntry is one recorded device reset
type AuditEntry struct {
	BindingID    string
	TokenPrefix  string
	Reason       string
	RemovedVotes int
	CreatedAt    time.Time
}

// Audit returns the reset history of a poll, newest first
func (s *Service) Audit(ctx context.Context, pollID string) ([]AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT binding_id, token_prefix, reason, removed_votes, created_at
		FROM override_audit
		WHERE poll_id = $1
		ORDER BY created_at DESC
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to query override audit: %w", err)
	}
	defer rows.Close()

	entries := []AuditEntry{}
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.BindingID, &e.TokenPrefix, &e.Reason, &e.RemovedVotes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan override audit: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
