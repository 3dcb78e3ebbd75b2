// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the votegate API server.

votegate accepts one anonymous vote per device for a single poll. A vote
attempt passes through a per-IP rate limit, a device-bound token, and a
hashed fingerprint of browser attributes before it is committed. Operators
can reset a device, clear votes, or wipe the poll.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=votegate.db ADMIN_KEY=... HASH_SECRET=... FINGERPRINT_SECRET=... go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..." -admin-key ... -hash-secret ... -fingerprint-secret ...

A .env file in the working directory is loaded first if present.

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite path or PostgreSQL connection string
  - ADMIN_KEY (-admin-key): Operator key for /admin routes
  - HASH_SECRET (-hash-secret): Salt for stored voter hashes
  - FINGERPRINT_SECRET (-fingerprint-secret): Salt for fingerprint signatures

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - REDIS_URL (-redis): Shared rate limit store; memory when unset
  - RATE_LIMIT_WINDOW, RATE_LIMIT_MAX: 10 requests per minute by default

# Architecture

  - pipeline: Ordered duplicate-vote checks and the commit
  - ratelimit: Fixed-window counters in memory or Redis
  - binding: Device token issue and lookup
  - fingerprint: Attribute canonicalization and hashing
  - blocks: Fingerprint block store
  - votes: Atomic vote commit and tallies
  - override: Operator resets and bulk clears
  - handlers, router, middleware: HTTP surface
  - db, polls, models, auth, cliparse, logging, metrics: Support

See package documentation for each component.
*/
package main
