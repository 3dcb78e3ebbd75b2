// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package pipeline

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
	"github.com/danielhkuo/votegate/fingerprint"
	"github.com/danielhkuo/votegate/metrics"
	"github.com/danielhkuo/votegate/models"
	"github.com/danielhkuo/votegate/polls"
	"github.com/danielhkuo/votegate/ratelimit"
	"github.com/danielhkuo/votegate/votes"
)

// Kind is the outward result of a vote attempt
type Kind int

const (
	Accepted Kind = iota + 1
	Closed
	Throttled
	Duplicate
)

func (k Kind) String() string {
	switch k {
	case Accepted:
		return "accepted"
	case Closed:
		return "closed"
	case Throttled:
		return "throttled"
	case Duplicate:
		return "duplicate"
	}
	return "unknown"
}

// Layer names the check that decided an outcome. It is for logs and metrics
// only; callers see the same Duplicate whichever layer caught it.
type Layer string

const (
	LayerNone        Layer = ""
	LayerPoll        Layer = "poll"
	LayerRateLimit   Layer = "rate_limit"
	LayerCookie      Layer = "cookie"
	LayerToken       Layer = "token"
	LayerFingerprint Layer = "fingerprint"
	LayerCommit      Layer = "commit"
)

// Submission is one validated vote attempt
type Submission struct {
	PollID string
	Option int

	// Token is the presented device token, if any
	Token string
	// VotedToken is the token recorded in a verified voted cookie, if any
	VotedToken string

	ClientIP      string
	UserAgent     string
	ServerSignals fingerprint.Signals
	ClientSignals fingerprint.Signals
}

// Outcome is the decision for a submission
type Outcome struct {
	Kind      Kind
	Layer     Layer
	RateLimit ratelimit.Result

	// Set when Kind is Accepted
	VoteID  string
	Token   string
	VotedAt time.Time
}

// Pipeline runs the duplicate-vote checks in priority order:
// closed, throttled, token/cookie duplicate, fingerprint duplicate, commit race.
type Pipeline struct {
	db        *sql.DB
	limiter   ratelimit.Limiter
	polls     *polls.Store
	resolver  *binding.Resolver
	hasher    *fingerprint.Hasher
	committer *votes.Committer
	hashSalt  string
	logger    *zap.Logger
}

// Config bundles the pipeline's collaborators
type Config struct {
	DB         *sql.DB
	Limiter    ratelimit.Limiter
	Polls      *polls.Store
	Resolver   *binding.Resolver
	Hasher     *fingerprint.Hasher
	Committer  *votes.Committer
	HashSecret string
	Logger     *zap.Logger
}

func New(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		db:        cfg.DB,
		limiter:   cfg.Limiter,
		polls:     cfg.Polls,
		resolver:  cfg.Resolver,
		hasher:    cfg.Hasher,
		committer: cfg.Committer,
		hashSalt:  cfg.HashSecret,
		logger:    logger,
	}
}

// Submit evaluates a submission and commits it if every layer allows it.
// A non-nil error means the attempt failed without recording anything and
// may be retried.
func (p *Pipeline) Submit(ctx context.Context, s Submission) (Outcome, error) {
	out, err := p.submit(ctx, s)
	if err != nil {
		metrics.VoteOutcomesTotal.WithLabelValues("error", "").Inc()
		return out, err
	}

	metrics.VoteOutcomesTotal.WithLabelValues(out.Kind.String(), string(out.Layer)).Inc()
	if out.Kind == Throttled {
		metrics.RateLimitRejectionsTotal.Inc()
	}
	return out, nil
}

func (p *Pipeline) submit(ctx context.Context, s Submission) (Outcome, error) {
	// The hit is recorded even when the poll turns out to be closed
	rl, err := p.checkRateLimit(ctx, s.ClientIP)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{RateLimit: rl}

	closed, err := p.CheckClosed(ctx, s.PollID)
	if err != nil {
		return out, err
	}
	if closed {
		return decided(out, Closed, LayerPoll), nil
	}

	if !rl.Allowed {
		return decided(out, Throttled, LayerRateLimit), nil
	}

	if voted, err := p.CheckVotedCookie(ctx, s.PollID, s.VotedToken); err != nil {
		return out, err
	} else if voted {
		return decided(out, Duplicate, LayerCookie), nil
	}

	b, err := p.resolver.Prepare(ctx, s.PollID, s.Token)
	if err != nil {
		return out, err
	}
	if b.Voted() {
		return decided(out, Duplicate, LayerToken), nil
	}

	signature := p.hasher.Fingerprint(s.ServerSignals, s.ClientSignals)
	blocked, err := blocks.IsBlocked(ctx, p.db, s.PollID, signature)
	if err != nil {
		return out, err
	}
	if blocked {
		return decided(out, Duplicate, LayerFingerprint), nil
	}

	res, err := p.committer.Commit(ctx, votes.CommitRequest{
		PollID:    s.PollID,
		Option:    s.Option,
		Binding:   b,
		Signature: signature,
		VoterHash: auth.HashVoter(s.ClientIP, s.UserAgent, p.hashSalt),
	})
	if errors.Is(err, votes.ErrAlreadyVoted) || errors.Is(err, votes.ErrConflict) {
		p.logger.Info("vote lost commit race",
			zap.String("poll_id", s.PollID),
			zap.String("binding_id", b.ID),
			zap.Error(err),
		)
		return decided(out, Duplicate, LayerCommit), nil
	}
	if err != nil {
		return out, fmt.Errorf("vote commit failed: %w", err)
	}

	out = decided(out, Accepted, LayerNone)
	out.VoteID = res.VoteID
	out.Token = res.Token
	out.VotedAt = res.VotedAt
	return out, nil
}

func decided(out Outcome, kind Kind, layer Layer) Outcome {
	out.Kind = kind
	out.Layer = layer
	return out
}

// checkRateLimit fails open: a limiter backend error admits the request
func (p *Pipeline) checkRateLimit(ctx context.Context, identity string) (ratelimit.Result, error) {
	rl, err := p.limiter.Check(ctx, identity)
	if err != nil {
		if ctx.Err() != nil {
			return ratelimit.Result{}, ctx.Err()
		}
		p.logger.Warn("rate limiter unavailable, admitting request", zap.Error(err))
		return ratelimit.Result{Allowed: true}, nil
	}
	return rl, nil
}

// CheckClosed reports whether the poll rejects votes
func (p *Pipeline) CheckClosed(ctx context.Context, pollID string) (bool, error) {
	open, err := p.polls.IsOpen(ctx, pollID)
	if err != nil {
		return false, err
	}
	return !open, nil
}

// CheckVotedCookie reports whether the voted cookie names a binding that is
// still VOTED. A reset or wiped binding no longer counts.
func (p *Pipeline) CheckVotedCookie(ctx context.Context, pollID, votedToken string) (bool, error) {
	if votedToken == "" {
		return false, nil
	}
	b, err := p.resolver.FindByToken(ctx, votedToken)
	if errors.Is(err, binding.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return b.PollID == pollID && b.Status == models.BindingVoted, nil
}
