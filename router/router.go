// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/danielhkuo/votegate/cliparse"
	"github.com/danielhkuo/votegate/handlers"
	"github.com/danielhkuo/votegate/middleware"
	"github.com/danielhkuo/votegate/ratelimit"
)

func NewRouter(db *sql.DB, cfg cliparse.Config, limiter ratelimit.Limiter, logger *zap.Logger) (*http.ServeMux, error) {
	svc, err := handlers.NewServices(db, cfg, limiter, logger)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	// Initialize handlers
	pollHandler := handlers.NewPollHandler(svc, cfg)
	votingHandler := handlers.NewVotingHandler(svc, cfg)
	deviceHandler := handlers.NewDeviceHandler(svc, cfg)
	resultsHandler := handlers.NewResultsHandler(svc, cfg)
	adminHandler := handlers.NewAdminHandler(svc, cfg)

	logged := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(logger, h)
	}
	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(logger, middleware.RequireAdmin(cfg.AdminKey, h))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	// Voting (public)
	mux.HandleFunc("GET /poll", logged(pollHandler.GetPoll))
	mux.HandleFunc("POST /vote", logged(votingHandler.SubmitVote))
	mux.HandleFunc("GET /device/bootstrap", logged(deviceHandler.Bootstrap))

	// Operator login
	mux.HandleFunc("POST /admin/auth", logged(adminHandler.Login))
	mux.HandleFunc("GET /admin/auth", logged(adminHandler.CheckAuth))

	// Operator actions (admin key required)
	mux.HandleFunc("POST /admin/state", admin(pollHandler.SetState))
	mux.HandleFunc("GET /admin/results", admin(resultsHandler.GetResults))
	mux.HandleFunc("GET /admin/devices", admin(deviceHandler.ListDevices))
	mux.HandleFunc("POST /admin/devices", admin(deviceHandler.DeviceAction))
	mux.HandleFunc("GET /admin/rate-limit", admin(adminHandler.RateLimitStatus))
	mux.HandleFunc("GET /admin/audit", admin(adminHandler.Audit))
	mux.HandleFunc("POST /admin/clear-votes", admin(adminHandler.ClearVotes))
	mux.HandleFunc("POST /admin/hard-reset", admin(adminHandler.HardReset))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("votegate API v1"))
	})

	return mux, nil
}
