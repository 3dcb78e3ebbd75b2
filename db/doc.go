// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles connections and schema creation.

# Connecting

Open picks the driver from the configured database type:

	conn, err := db.Open("postgres", "postgres://...") // lib/pq
	conn, err := db.Open("sqlite", "file:votes.db")    // modernc.org/sqlite

SQLite connections are limited to one open connection so transactions
serialize instead of failing with SQLITE_BUSY.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

  - poll: open/closed state
  - device_binding: issued device tokens and their ACTIVE/VOTED status
  - fingerprint_block: (poll_id, signature) pairs that consumed a vote
  - vote: append-only ballots, linked to a binding by binding_id
  - override_audit: admin device resets with operator reason

# Constraints

Duplicate voting is enforced by the database, not by in-process checks:

  - device_binding.token is UNIQUE
  - fingerprint_block has PRIMARY KEY (poll_id, signature)
  - device_binding has CHECK ((status = 'VOTED') = (voted_at IS NOT NULL))

IsUniqueViolation recognizes constraint failures from both drivers.

# Querier

Querier is implemented by *sql.DB and *sql.Tx so store code can run inside
or outside a transaction.
*/
package db
