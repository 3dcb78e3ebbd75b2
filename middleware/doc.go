// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /poll", middleware.WithLogging(logger, handler))

Logs request start (method, path, remote) and completion (duration_ms) with
a per-request ID, and records the duration in the
http_request_duration_seconds histogram.

# Admin Guard

	mux.HandleFunc("GET /admin/results", middleware.RequireAdmin(cfg.AdminKey, h.GetResults))

Accepts "Authorization: Bearer <key>" or the admin_key cookie. Keys are
compared in constant time.

# CORS Middleware

Enable cross-origin requests for frontend access:

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

# Client IP Extraction

Get the original client IP (handles X-Forwarded-For, X-Real-IP):

	ip := middleware.GetClientIP(r)

The IP keys the rate limiter and feeds the voter hash. Forwarding headers
are client-controlled unless a proxy overwrites them.
*/
package middleware
