// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/danielhkuo/votegate/auth"
	"github.com/danielhkuo/votegate/binding"
	"github.com/danielhkuo/votegate/cliparse"
	"github.com/danielhkuo/votegate/fingerprint"
	"github.com/danielhkuo/votegate/models"
	"github.com/danielhkuo/votegate/override"
	"github.com/danielhkuo/votegate/pipeline"
	"github.com/danielhkuo/votegate/polls"
	"github.com/danielhkuo/votegate/ratelimit"
	"github.com/danielhkuo/votegate/votes"
)

// cookieMaxAge keeps device cookies for a year
const cookieMaxAge = 365 * 24 * 60 * 60

// Services holds the collaborators shared by all handlers
type Services struct {
	DB       *sql.DB
	Limiter  ratelimit.Limiter
	Polls    *polls.Store
	Resolver *binding.Resolver
	Pipeline *pipeline.Pipeline
	Override *override.Service
	Logger   *zap.Logger
}

// NewServices wires the voting pipeline from configuration
func NewServices(db *sql.DB, cfg cliparse.Config, limiter ratelimit.Limiter, logger *zap.Logger) (*Services, error) {
	hasher, err := fingerprint.NewHasher(cfg.FingerprintSecret, cfg.FingerprintFields)
	if err != nil {
		return nil, fmt.Errorf("invalid fingerprint configuration: %w", err)
	}

	pollStore := polls.NewStore(db)
	resolver := binding.NewResolver(db)

	return &Services{
		DB:       db,
		Limiter:  limiter,
		Polls:    pollStore,
		Resolver: resolver,
		Pipeline: pipeline.New(pipeline.Config{
			DB:         db,
			Limiter:    limiter,
			Polls:      pollStore,
			Resolver:   resolver,
			Hasher:     hasher,
			Committer:  votes.NewCommitter(db),
			HashSecret: cfg.HashSecret,
			Logger:     logger,
		}),
		Override: override.NewService(db, logger, cfg.ResetRemovesVote),
		Logger:   logger,
	}, nil
}

// setSignedCookie stores a tamper-evident value in a long-lived HttpOnly cookie
func setSignedCookie(w http.ResponseWriter, cfg cliparse.Config, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    auth.SignValue(value, cfg.CookieSecret),
		Path:     "/",
		MaxAge:   cookieMaxAge,
		Expires:  time.Now().Add(cookieMaxAge * time.Second),
		HttpOnly: true,
		Secure:   cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// signedCookie returns the verified value of a signed cookie, or "" when the
// cookie is missing or was tampered with
func signedCookie(r *http.Request, cfg cliparse.Config, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	value, err := auth.VerifyValue(c.Value, cfg.CookieSecret)
	if err != nil {
		return ""
	}
	return value
}

// presentedToken prefers the signed cookie and falls back to a token the
// client kept in its own storage
func presentedToken(r *http.Request, cfg cliparse.Config, bodyToken string) string {
	if token := signedCookie(r, cfg, models.DeviceCookie); token != "" {
		return token
	}
	if bodyToken != "" {
		return bodyToken
	}
	return r.Header.Get("X-Device-Token")
}
