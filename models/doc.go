// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types.

# Device Bindings

A DeviceBinding ties one issued device token to one poll. Its status is
either BindingActive or BindingVoted:

	ACTIVE --(vote committed)--> VOTED
	VOTED  --(admin reset)-----> ACTIVE

VotedAt is set exactly when the status is VOTED. The token is never
serialized to JSON; admin listings show a truncated prefix instead.

# Fingerprint Blocks

A FingerprintBlock marks a device signature as having consumed the vote for
a poll. BindingID records which binding consumed it.

# Votes

A Vote is append-only. BindingID is the explicit link back to the device
binding that cast it, used when an admin reset also removes the vote.
VoterHash is a one-way hash of IP and user agent and is never serialized.

# Client Signals

ClientSignals carries the optional browser-reported attributes sent with a
vote (screen geometry, language, timezone, hardware hints). All fields are
pointers or strings so "not reported" is distinguishable from zero.

# Cookies

	dbt         signed device token (HttpOnly, one year)
	poll_voted  signed token of the device that voted
	admin_key   admin session

# Error Response

All errors are returned as:

	{"error": "Conflict", "message": "Already voted"}
*/
package models
