// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the votegate API.

# Handler Types

  - VotingHandler: Vote submission
  - DeviceHandler: Token bootstrap, device listing and reset
  - PollHandler: Poll state
  - ResultsHandler: Tallies
  - AdminHandler: Login, rate limit status, audit, bulk clears

All handlers share one Services value built from the configuration:

	svc, err := handlers.NewServices(db, cfg, limiter, logger)
	votingHandler := handlers.NewVotingHandler(svc, cfg)

# Vote Outcomes

	201 Created           - vote recorded, dbt and poll_voted cookies set
	400 Bad Request       - option outside 1..N or malformed JSON
	403 Forbidden         - poll closed
	409 Conflict          - already voted, whichever check caught it
	429 Too Many Requests - Retry-After, X-RateLimit-Remaining, X-RateLimit-Reset
	500 Internal Error    - nothing was recorded; safe to retry

# Cookies

dbt and poll_voted hold HMAC-signed values. A cookie with a bad signature
is ignored, as if absent. A client that cannot keep cookies may send its
token in the vote body or the X-Device-Token header.
*/
package handlers
