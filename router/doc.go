// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the votegate API.

	mux, err := router.NewRouter(db, cfg, limiter, logger)

# Endpoints

Public:

	GET  /health           - Liveness
	GET  /metrics          - Prometheus exposition
	GET  /poll             - {is_open}
	POST /vote             - Submit a vote
	GET  /device/bootstrap - Issue or confirm the device token

Operator (Authorization: Bearer <key> or admin_key cookie):

	POST /admin/auth        - Log in, sets admin_key cookie
	GET  /admin/auth        - Check login
	POST /admin/state       - Open or close the poll
	GET  /admin/results     - Per-option counts
	GET  /admin/devices     - Recent devices and statistics
	POST /admin/devices     - {action: "reset", token, reason}
	GET  /admin/rate-limit  - Window for ?ip= or the caller
	GET  /admin/audit       - Device reset history
	POST /admin/clear-votes - Delete votes only
	POST /admin/hard-reset  - Delete everything, requires {confirm: "HARD RESET"}
*/
package router
