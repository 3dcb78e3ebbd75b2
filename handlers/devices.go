// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/danielhkuo/votegate/auth"
	"github.com/danielhkuo/votegate/blocks"
	"github.com/danielhkuo/votegate/cliparse"
	"github.com/danielhkuo/votegate/metrics"
	"github.com/danielhkuo/votegate/middleware"
	"github.com/danielhkuo/votegate/models"
	"github.com/danielhkuo/votegate/override"
	"github.com/danielhkuo/votegate/votes"
)

const deviceListLimit = 100

type DeviceHandler struct {
	svc *Services
	cfg cliparse.Config
}

func NewDeviceHandler(svc *Services, cfg cliparse.Config) *DeviceHandler {
	return &DeviceHandler{svc: svc, cfg: cfg}
}

// Bootstrap handles GET /device/bootstrap
// Returns the caller's device token, minting and storing a new one if needed
func (h *DeviceHandler) Bootstrap(w http.ResponseWriter, r *http.Request) {
	presented := presentedToken(r, h.cfg, "")

	b, err := h.svc.Resolver.Resolve(r.Context(), h.cfg.PollID, presented)
	if err != nil {
		h.svc.Logger.Error("failed to resolve device binding", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	isNew := b.Token != presented
	metrics.DeviceBootstrapsTotal.WithLabelValues(boolLabel(isNew)).Inc()
	if isNew {
		h.svc.Logger.Info("device token issued", zap.String("token", auth.TokenPrefix(b.Token)))
	}

	setSignedCookie(w, h.cfg, models.DeviceCookie, b.Token)
	middleware.JSONResponse(w, http.StatusOK, models.BootstrapResponse{
		Token: b.Token,
		IsNew: isNew,
	})
}

// ListDevices handles GET /admin/devices
// Returns recent bindings plus binding, block and rate limit statistics
func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	bindings, err := h.svc.Resolver.List(ctx, h.cfg.PollID, deviceListLimit)
	if err != nil {
		h.svc.Logger.Error("failed to list devices", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	stats, err := h.svc.Resolver.Stats(ctx, h.cfg.PollID)
	if err != nil {
		h.svc.Logger.Error("failed to count devices", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	blockCount, err := blocks.Count(ctx, h.svc.DB, h.cfg.PollID)
	if err != nil {
		h.svc.Logger.Error("failed to count fingerprint blocks", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	hours, err := votes.VotesByHour(ctx, h.svc.DB, h.cfg.PollID, time.Now().Add(-24*time.Hour))
	if err != nil {
		h.svc.Logger.Error("failed to bucket votes", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	clientIP := middleware.GetClientIP(r)
	rl, err := h.svc.Limiter.Status(ctx, clientIP)
	if err != nil {
		h.svc.Logger.Warn("rate limiter status unavailable", zap.Error(err))
	}

	resp := models.DevicesResponse{
		Devices: make([]models.DeviceSummary, 0, len(bindings)),
		Stats: models.DeviceStats{
			TotalDevices:      stats.Total,
			VotedDevices:      stats.Voted,
			FingerprintBlocks: blockCount,
			RateLimit:         rateLimitStatus(clientIP, rl),
		},
		VotesByHour: make([]models.HourCount, 0, len(hours)),
	}
	for _, b := range bindings {
		resp.Devices = append(resp.Devices, models.DeviceSummary{
			ID:          b.ID,
			TokenPrefix: auth.TokenPrefix(b.Token),
			Status:      b.Status,
			VotedAt:     b.VotedAt,
			CreatedAt:   b.CreatedAt,
		})
	}
	for _, hc := range hours {
		resp.VotesByHour = append(resp.VotesByHour, models.HourCount{Hour: hc.Hour, Count: hc.Count})
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}

// DeviceAction handles POST /admin/devices
// The only action is "reset", which lets one device vote again
func (h *DeviceHandler) DeviceAction(w http.ResponseWriter, r *http.Request) {
	var req models.DeviceActionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Action != "reset" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Unknown action")
		return
	}
	if req.Token == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "token is required")
		return
	}

	result, err := h.svc.Override.Reset(r.Context(), req.Token, req.Reason)
	if errors.Is(err, override.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Device not found")
		return
	}
	if err != nil {
		h.svc.Logger.Error("failed to reset device", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ResetResponse{
		Success:      true,
		RemovedVotes: result.RemovedVotes,
		RemovedBlock: result.RemovedBlock,
	})
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
