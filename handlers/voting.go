// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/danielhkuo/votegate/cliparse"
	"github.com/danielhkuo/votegate/fingerprint"
	"github.com/danielhkuo/votegate/middleware"
	"github.com/danielhkuo/votegate/models"
	"github.com/danielhkuo/votegate/pipeline"
	"github.com/danielhkuo/votegate/ratelimit"
)

const maxVoteBody = 16 << 10

type VotingHandler struct {
	svc *Services
	cfg cliparse.Config
}

func NewVotingHandler(svc *Services, cfg cliparse.Config) *VotingHandler {
	return &VotingHandler{svc: svc, cfg: cfg}
}

// SubmitVote handles POST /vote
func (h *VotingHandler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxVoteBody)

	// Parse request
	var req models.VoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Option < 1 || req.Option > h.cfg.OptionCount {
		middleware.ErrorResponse(w, http.StatusBadRequest,
			fmt.Sprintf("Invalid option. Must be between 1 and %d.", h.cfg.OptionCount))
		return
	}

	clientIP := middleware.GetClientIP(r)

	out, err := h.svc.Pipeline.Submit(r.Context(), pipeline.Submission{
		PollID:        h.cfg.PollID,
		Option:        req.Option,
		Token:         presentedToken(r, h.cfg, req.Token),
		VotedToken:    signedCookie(r, h.cfg, models.VotedCookie),
		ClientIP:      clientIP,
		UserAgent:     r.UserAgent(),
		ServerSignals: fingerprint.FromRequest(r),
		ClientSignals: fingerprint.FromClient(req.ClientSignals),
	})
	if err != nil {
		h.svc.Logger.Error("failed to process vote", zap.Error(err), zap.String("poll_id", h.cfg.PollID))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	setRateLimitHeaders(w, out.RateLimit)

	switch out.Kind {
	case pipeline.Closed:
		middleware.ErrorResponse(w, http.StatusForbidden, "Voting is closed")

	case pipeline.Throttled:
		retryAfter := out.RateLimit.RetryAfter(time.Now())
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
		h.svc.Logger.Info("vote throttled", zap.String("ip", clientIP), zap.Int("count", out.RateLimit.Count))
		middleware.ErrorResponse(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")

	case pipeline.Duplicate:
		h.svc.Logger.Info("duplicate vote rejected", zap.String("layer", string(out.Layer)))
		middleware.ErrorResponse(w, http.StatusConflict, "Already voted")

	case pipeline.Accepted:
		setSignedCookie(w, h.cfg, models.DeviceCookie, out.Token)
		setSignedCookie(w, h.cfg, models.VotedCookie, out.Token)

		h.svc.Logger.Info("vote recorded", zap.String("poll_id", h.cfg.PollID), zap.String("vote_id", out.VoteID))

		middleware.JSONResponse(w, http.StatusCreated, models.VoteResponse{
			Success: true,
			VoteID:  out.VoteID,
		})

	default:
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Internal server error")
	}
}

func setRateLimitHeaders(w http.ResponseWriter, rl ratelimit.Result) {
	if rl.ResetAt.IsZero() {
		return
	}
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(rl.ResetAt.Unix(), 10))
}
