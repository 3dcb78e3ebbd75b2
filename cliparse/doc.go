// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# CLI Flags and Environment Variables

	-p                   PORT                (default 3318)
	-d                   DATABASE_URL        (required)
	-t                   DATABASE_TYPE       sqlite | postgres (default sqlite)
	-redis               REDIS_URL
	-admin-key           ADMIN_KEY           (required)
	-hash-secret         HASH_SECRET         (required)
	-fingerprint-secret  FINGERPRINT_SECRET  (required)
	-cookie-secret       COOKIE_SECRET       (default: hash secret)
	-poll                POLL_ID             (default "default")
	-options             POLL_OPTIONS        (default 6)
	-rate-window         RATE_LIMIT_WINDOW   (default 1m)
	-rate-max            RATE_LIMIT_MAX      (default 10)
	-fingerprint-fields  FINGERPRINT_FIELDS  comma separated (default all)
	-reset-removes-vote  RESET_REMOVES_VOTE  (default false)
	-secure-cookies      SECURE_COOKIES      (default false)

CLI flags take precedence over environment variables.

# Validation

ParseFlags returns an error if a required value is missing or a value
cannot be parsed. Unknown fingerprint fields are rejected later, when the
hasher is built.
*/
package cliparse
