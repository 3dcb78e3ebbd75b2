// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package binding

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/danielhkuo/votegate/auth"
	"github.com/danielhkuo/votegate/db"
	"github.com/danielhkuo/votegate/models"
)

var (
	ErrNotFound       = errors.New("device binding not found")
	ErrTokenCollision = errors.New("device token collision")
)

// Binding is a device binding plus whether it exists in the database yet
type Binding struct {
	models.DeviceBinding
	Pending bool
}

// Voted reports whether the binding already consumed its vote
func (b Binding) Voted() bool {
	return b.Status == models.BindingVoted
}

// Stats summarizes the bindings of one poll
type Stats struct {
	Total int
	Voted int
}

// Resolver issues and looks up device-bound tokens
type Resolver struct {
	db       *sql.DB
	newToken func() (string, error)
	now      func() time.Time
}

func NewResolver(db *sql.DB) *Resolver {
	return &Resolver{db: db, newToken: auth.GenerateDeviceToken, now: time.Now}
}

// Resolve returns the binding for token in pollID, or mints and stores a new
// ACTIVE binding when the token is empty or unknown. An existing binding is
// returned unchanged whatever its status.
func (r *Resolver) Resolve(ctx context.Context, pollID, token string) (Binding, error) {
	b, err := r.Prepare(ctx, pollID, token)
	if err != nil || !b.Pending {
		return b, err
	}

	if err := Insert(ctx, r.db, b.DeviceBinding); err != nil {
		return Binding{}, err
	}
	b.Pending = false
	return b, nil
}

// Prepare is Resolve without side effects: an unknown token yields a fresh
// binding marked Pending that the caller persists later with Insert.
func (r *Resolver) Prepare(ctx context.Context, pollID, token string) (Binding, error) {
	if token != "" {
		existing, err := r.FindByToken(ctx, token)
		if err == nil && existing.PollID == pollID {
			return Binding{DeviceBinding: existing}, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return Binding{}, err
		}
	}

	minted, err := r.newToken()
	if err != nil {
		return Binding{}, err
	}

	now := r.now().UTC()
	return Binding{
		DeviceBinding: models.DeviceBinding{
			ID:        auth.NewID(),
			PollID:    pollID,
			Token:     minted,
			Status:    models.BindingActive,
			CreatedAt: now,
		},
		Pending: true,
	}, nil
}

// FindByToken looks a binding up by its token in any poll
func (r *Resolver) FindByToken(ctx context.Context, token string) (models.DeviceBinding, error) {
	return FindByToken(ctx, r.db, token)
}

// FindByToken looks a binding up using q, which may be a transaction
func FindByToken(ctx context.Context, q db.Querier, token string) (models.DeviceBinding, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, poll_id, token, status, voted_at, fingerprint_signature, created_at
		FROM device_binding
		WHERE token = $1
	`, token)

	b, err := scanBinding(row)
	if err == sql.ErrNoRows {
		return models.DeviceBinding{}, ErrNotFound
	}
	if err != nil {
		return models.DeviceBinding{}, fmt.Errorf("failed to query device binding: %w", err)
	}
	return b, nil
}

// Insert stores b as a new ACTIVE binding. A duplicate token is reported as
// ErrTokenCollision and never overwrites the existing row.
func Insert(ctx context.Context, q db.Querier, b models.DeviceBinding) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO device_binding (id, poll_id, token, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, b.ID, b.PollID, b.Token, models.BindingActive, b.CreatedAt, b.CreatedAt)

	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrTokenCollision
		}
		return fmt.Errorf("failed to insert device binding: %w", err)
	}
	return nil
}

// List returns the most recent bindings of a poll
func (r *Resolver) List(ctx context.Context, pollID string, limit int) ([]models.DeviceBinding, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, poll_id, token, status, voted_at, fingerprint_signature, created_at
		FROM device_binding
		WHERE poll_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, pollID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query device bindings: %w", err)
	}
	defer rows.Close()

	bindings := []models.DeviceBinding{}
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device binding: %w", err)
		}
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}

// Stats counts all and voted bindings of a poll
func (r *Resolver) Stats(ctx context.Context, pollID string) (Stats, error) {
	var s Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'VOTED' THEN 1 ELSE 0 END), 0)
		FROM device_binding
		WHERE poll_id = $1
	`, pollID).Scan(&s.Total, &s.Voted)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count device bindings: %w", err)
	}
	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBinding(s scanner) (models.DeviceBinding, error) {
	var b models.DeviceBinding
	var votedAt sql.NullTime
	var signature sql.NullString

	if err := s.Scan(&b.ID, &b.PollID, &b.Token, &b.Status, &votedAt, &signature, &b.CreatedAt); err != nil {
		return models.DeviceBinding{}, err
	}
	if votedAt.Valid {
		t := votedAt.Time
		b.VotedAt = &t
	}
	if signature.Valid {
		s := signature.String
		b.FingerprintSignature = &s
	}
	return b, nil
}
