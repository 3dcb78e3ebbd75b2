// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/danielhkuo/votegate/cliparse"
	"github.com/danielhkuo/votegate/middleware"
	"github.com/danielhkuo/votegate/models"
)

type PollHandler struct {
	svc *Services
	cfg cliparse.Config
}

func NewPollHandler(svc *Services, cfg cliparse.Config) *PollHandler {
	return &PollHandler{svc: svc, cfg: cfg}
}

// GetPoll handles GET /poll
// Reports whether the poll accepts votes. Errors read as closed.
func (h *PollHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	open, err := h.svc.Polls.IsOpen(r.Context(), h.cfg.PollID)
	if err != nil {
		h.svc.Logger.Error("failed to query poll state", zap.Error(err))
		open = false
	}

	middleware.JSONResponse(w, http.StatusOK, models.PollStateResponse{IsOpen: open})
}

// SetState handles POST /admin/state
func (h *PollHandler) SetState(w http.ResponseWriter, r *http.Request) {
	var req models.SetPollStateRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.IsOpen == nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "is_open is required")
		return
	}

	if err := h.svc.Polls.SetOpen(r.Context(), h.cfg.PollID, *req.IsOpen); err != nil {
		h.svc.Logger.Error("failed to update poll state", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	h.svc.Logger.Info("poll state changed", zap.String("poll_id", h.cfg.PollID), zap.Bool("is_open", *req.IsOpen))
	middleware.JSONResponse(w, http.StatusOK, models.PollStateResponse{IsOpen: *req.IsOpen})
}
