// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidAdminKey = errors.New("invalid admin key")
	ErrInvalidToken    = errors.New("invalid token format")
)

// NewID returns a random UUID for database records
func NewID() string {
	return uuid.NewString()
}

// GenerateDeviceToken creates a random, unguessable device-bound token
func GenerateDeviceToken() (string, error) {
	b := make([]byte, 24) // 24 bytes = 192 bits of entropy
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate device token: %w", err)
	}
	// URL-safe base64 without padding
	return strings.TrimRight(base64.URLEncoding.EncodeToString(b), "="), nil
}

// HashVoter creates a one-way hash of the voter's IP and user agent.
// Only the hash is stored with a vote.
func HashVoter(ip, userAgent, secret string) string {
	sum := sha256.Sum256([]byte(ip + "|" + userAgent + "|" + secret))
	return hex.EncodeToString(sum[:])
}

// SignValue appends an HMAC so a client-held value can be checked for tampering
func SignValue(value, secret string) string {
	return value + "." + mac(value, secret)
}

// VerifyValue checks a value produced by SignValue and returns the original
func VerifyValue(signed, secret string) (string, error) {
	i := strings.LastIndexByte(signed, '.')
	if i <= 0 || i == len(signed)-1 {
		return "", ErrInvalidToken
	}
	value, sig := signed[:i], signed[i+1:]
	if !hmac.Equal([]byte(sig), []byte(mac(value, secret))) {
		return "", ErrInvalidToken
	}
	return value, nil
}

func mac(value, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(value))
	// Use URL-safe base64 and trim padding so it fits in a cookie
	return strings.TrimRight(base64.URLEncoding.EncodeToString(h.Sum(nil)), "=")
}

// ValidateAdminKey compares the presented key with the configured one in constant time
func ValidateAdminKey(presented, expected string) error {
	if presented == "" || expected == "" {
		return ErrInvalidAdminKey
	}
	if !hmac.Equal([]byte(presented), []byte(expected)) {
		return ErrInvalidAdminKey
	}
	return nil
}

// TokenPrefix truncates a token for logs and admin listings
func TokenPrefix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "..."
}
