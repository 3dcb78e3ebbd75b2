// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/danielhkuo/votegate/cliparse"
	"github.com/danielhkuo/votegate/middleware"
	"github.com/danielhkuo/votegate/models"
	"github.com/danielhkuo/votegate/votes"
)

type ResultsHandler struct {
	svc *Services
	cfg cliparse.Config
}

func NewResultsHandler(svc *Services, cfg cliparse.Config) *ResultsHandler {
	return &ResultsHandler{svc: svc, cfg: cfg}
}

// GetResults handles GET /admin/results
// Returns one count per option, in option order
func (h *ResultsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	counts, total, err := votes.Tally(r.Context(), h.svc.DB, h.cfg.PollID, h.cfg.OptionCount)
	if err != nil {
		h.svc.Logger.Error("failed to tally votes", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ResultsResponse{
		Counts: counts,
		Total:  total,
	})
}
