// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides token generation, hashing, and cookie signing.

# Device Tokens

Device tokens are random 24-byte (192-bit) secrets:

	token, err := auth.GenerateDeviceToken()

Tokens are URL-safe base64 encoded without padding. They only identify a
device binding; they grant nothing by themselves.

# Signed Values

Cookies carry a value plus an HMAC-SHA256 tag:

	cookie := auth.SignValue(token, secret)
	token, err := auth.VerifyValue(cookie, secret)

VerifyValue returns ErrInvalidToken for a missing or altered tag.

# Admin Keys

	err := auth.ValidateAdminKey(presented, cfg.AdminKey)

Compared in constant time. An empty key never validates.

# Voter Hashes

	hash := auth.HashVoter(ip, userAgent, secret)

Stored with each vote for auditing. Not used for duplicate detection.

# IDs

	id := auth.NewID()  // UUID v4
*/
package auth
