// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/danielhkuo/votegate/auth"
	"github.com/danielhkuo/votegate/cliparse"
	"github.com/danielhkuo/votegate/middleware"
	"github.com/danielhkuo/votegate/models"
	"github.com/danielhkuo/votegate/override"
	"github.com/danielhkuo/votegate/ratelimit"
)

// adminCookieMaxAge keeps an operator signed in for a day
const adminCookieMaxAge = 24 * 60 * 60

type AdminHandler struct {
	svc *Services
	cfg cliparse.Config
}

func NewAdminHandler(svc *Services, cfg cliparse.Config) *AdminHandler {
	return &AdminHandler{svc: svc, cfg: cfg}
}

// Login handles POST /admin/auth
// A valid key is stored in an HttpOnly cookie for later admin requests
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.AdminAuthRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := auth.ValidateAdminKey(req.AdminKey, h.cfg.AdminKey); err != nil {
		h.svc.Logger.Warn("admin login rejected", zap.String("ip", middleware.GetClientIP(r)))
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid admin key")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     models.AdminCookie,
		Value:    req.AdminKey,
		Path:     "/",
		MaxAge:   adminCookieMaxAge,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	middleware.JSONResponse(w, http.StatusOK, models.SuccessResponse{Success: true})
}

// CheckAuth handles GET /admin/auth
func (h *AdminHandler) CheckAuth(w http.ResponseWriter, r *http.Request) {
	if !middleware.IsAdmin(r, h.cfg.AdminKey) {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.SuccessResponse{Success: true})
}

// RateLimitStatus handles GET /admin/rate-limit?ip=
// Without ip it reports the caller's own identity
func (h *AdminHandler) RateLimitStatus(w http.ResponseWriter, r *http.Request) {
	identity := r.URL.Query().Get("ip")
	if identity == "" {
		identity = middleware.GetClientIP(r)
	}

	rl, err := h.svc.Limiter.Status(r.Context(), identity)
	if err != nil {
		h.svc.Logger.Error("failed to read rate limit", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusServiceUnavailable, "Rate limiter unavailable")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, rateLimitStatus(identity, rl))
}

// ClearVotes handles POST /admin/clear-votes
// Deletes votes only. Devices that voted stay locked out.
func (h *AdminHandler) ClearVotes(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Override.ClearVotes(r.Context(), h.cfg.PollID)
	if err != nil {
		h.svc.Logger.Error("failed to clear votes", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ClearVotesResponse{
		Success:      true,
		ResetType:    "soft",
		DeletedVotes: result.DeletedVotes,
	})
}

// HardReset handles POST /admin/hard-reset
func (h *AdminHandler) HardReset(w http.ResponseWriter, r *http.Request) {
	var req models.HardResetRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	result, err := h.svc.Override.HardReset(r.Context(), h.cfg.PollID, req.Confirm)
	if errors.Is(err, override.ErrNotConfirmed) {
		middleware.ErrorResponse(w, http.StatusBadRequest,
			`Hard reset requires {"confirm": "`+cliparse.HardResetConfirmation+`"}`)
		return
	}
	if err != nil {
		h.svc.Logger.Error("failed to hard reset", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.HardResetResponse{
		Success:         true,
		ResetType:       "hard",
		DeletedVotes:    result.DeletedVotes,
		DeletedBindings: result.DeletedBindings,
		DeletedBlocks:   result.DeletedBlocks,
	})
}

// Audit handles GET /admin/audit
func (h *AdminHandler) Audit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Override.Audit(r.Context(), h.cfg.PollID)
	if err != nil {
		h.svc.Logger.Error("failed to read override audit", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	resp := models.AuditResponse{
		ResetRemovesVote: h.svc.Override.RemovesVotes(),
		Entries:          make([]models.AuditRecord, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, models.AuditRecord{
			BindingID:    e.BindingID,
			TokenPrefix:  e.TokenPrefix,
			Reason:       e.Reason,
			RemovedVotes: e.RemovedVotes,
			CreatedAt:    e.CreatedAt,
		})
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}

func rateLimitStatus(identity string, rl ratelimit.Result) models.RateLimitStatus {
	return models.RateLimitStatus{
		Identity:  identity,
		Count:     rl.Count,
		Remaining: rl.Remaining,
		ResetAt:   rl.ResetAt,
	}
}
