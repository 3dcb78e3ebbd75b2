// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielhkuo/votegate/cliparse"
	"github.com/danielhkuo/votegate/db"
)

// TestPollID is the poll every test database is seeded with
const TestPollID = "test-poll"

// SetupTestDB creates a fresh SQLite database with the full schema and an
// open test poll. The file lives in the test's temp dir.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "votegate.db")
	conn, err := db.Open("sqlite", "file:"+path)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	SetPollOpen(t, conn, TestPollID, true)

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:              3318,
		DatabaseURL:       "file:test.db",
		DatabaseType:      "sqlite",
		AdminKey:          "test-admin-key",
		HashSecret:        "test-hash-secret",
		FingerprintSecret: "test-fingerprint-secret",
		CookieSecret:      "test-cookie-secret",
		PollID:            TestPollID,
		OptionCount:       6,
		RateLimitWindow:   time.Minute,
		RateLimitMax:      10,
	}
}

// SetPollOpen inserts or updates the poll's open state
func SetPollOpen(t *testing.T, conn *sql.DB, pollID string, open bool) {
	t.Helper()

	_, err := conn.Exec(`
		INSERT INTO poll (id, is_open, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET is_open = excluded.is_open, updated_at = excluded.updated_at
	`, pollID, open, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to set poll state: %v", err)
	}
}

// CountRows returns the number of rows in table matching poll_id
func CountRows(t *testing.T, conn *sql.DB, table, pollID string) int {
	t.Helper()

	var n int
	err := conn.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM "+table+" WHERE poll_id = $1", pollID).Scan(&n)
	if err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}

// BindingStatus returns the status and voted_at presence for a token
func BindingStatus(t *testing.T, conn *sql.DB, token string) (status string, voted bool) {
	t.Helper()

	var votedAt sql.NullTime
	err := conn.QueryRow(`
		SELECT status, voted_at FROM device_binding WHERE token = $1
	`, token).Scan(&status, &votedAt)
	if err != nil {
		t.Fatalf("Failed to query binding: %v", err)
	}
	return status, votedAt.Valid
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
