// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/danielhkuo/votegate/cliparse"
	"github.com/danielhkuo/votegate/models"
	"github.com/danielhkuo/votegate/ratelimit"
	"github.com/danielhkuo/votegate/testutil"
	"github.com/danielhkuo/votegate/votes"
)

type testEnv struct {
	db      *sql.DB
	cfg     cliparse.Config
	svc     *Services
	limiter *ratelimit.Memory

	voting  *VotingHandler
	devices *DeviceHandler
	polls   *PollHandler
	results *ResultsHandler
	admin   *AdminHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, testutil.GetTestConfig())
}

func newTestEnvWithConfig(t *testing.T, cfg cliparse.Config) *testEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { db.Close() })

	limiter := ratelimit.NewMemory(cfg.RateLimitWindow, cfg.RateLimitMax)
	svc, err := NewServices(db, cfg, limiter, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create services: %v", err)
	}

	return &testEnv{
		db:      db,
		cfg:     cfg,
		svc:     svc,
		limiter: limiter,
		voting:  NewVotingHandler(svc, cfg),
		devices: NewDeviceHandler(svc, cfg),
		polls:   NewPollHandler(svc, cfg),
		results: NewResultsHandler(svc, cfg),
		admin:   NewAdminHandler(svc, cfg),
	}
}

// device describes one simulated browser. Distinct user agents give
// distinct fingerprints; distinct IPs give distinct rate limit windows.
type device struct {
	ip        string
	userAgent string
	cookies   []*http.Cookie
}

func (d *device) request(body interface{}) *http.Request {
	req := testutil.MakeRequest("POST", "/vote", body, map[string]string{
		"User-Agent":      d.userAgent,
		"Accept-Language": "en-US,en;q=0.9",
	})
	req.RemoteAddr = d.ip + ":40000"
	for _, c := range d.cookies {
		req.AddCookie(c)
	}
	return req
}

// vote submits option and keeps any cookies the server sets
func (e *testEnv) vote(d *device, option int) *httptest.ResponseRecorder {
	return e.voteWith(d, models.VoteRequest{Option: option})
}

func (e *testEnv) voteWith(d *device, body interface{}) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.voting.SubmitVote(w, d.request(body))
	d.keepCookies(w)
	return w
}

func (d *device) keepCookies(w *httptest.ResponseRecorder) {
	for _, set := range w.Result().Cookies() {
		replaced := false
		for i, c := range d.cookies {
			if c.Name == set.Name {
				d.cookies[i] = set
				replaced = true
			}
		}
		if !replaced {
			d.cookies = append(d.cookies, set)
		}
	}
}

func (d *device) cookie(name string) *http.Cookie {
	for _, c := range d.cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (e *testEnv) tally(t *testing.T) ([]int, int) {
	t.Helper()
	counts, total, err := votes.Tally(t.Context(), e.db, e.cfg.PollID, e.cfg.OptionCount)
	if err != nil {
		t.Fatalf("Failed to tally votes: %v", err)
	}
	return counts, total
}

func adminRequest(method, path string, body interface{}) *http.Request {
	return testutil.MakeRequest(method, path, body, map[string]string{
		"Authorization": "Bearer test-admin-key",
	})
}
