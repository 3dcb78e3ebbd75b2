// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package binding

import (
	"errors"
	"testing"
	"time"

	"github.com/danielhkuo/votegate/models"
	"github.com/danielhkuo/votegate/testutil"
)

func TestResolve_MintsAndStores(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	r := NewResolver(db)
	b, err := r.Resolve(t.Context(), testutil.TestPollID, "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if b.Pending {
		t.Error("Expected resolved binding to be stored")
	}
	if b.Status != models.BindingActive || b.VotedAt != nil || b.FingerprintSignature != nil {
		t.Errorf("Expected fresh ACTIVE binding, got %+v", b.DeviceBinding)
	}
	if len(b.Token) != 32 {
		t.Errorf("Expected 32-character token, got %d", len(b.Token))
	}

	stored, err := r.FindByToken(t.Context(), b.Token)
	if err != nil {
		t.Fatalf("FindByToken failed: %v", err)
	}
	if stored.ID != b.ID {
		t.Errorf("Expected stored ID %s, got %s", b.ID, stored.ID)
	}
}

func TestResolve_ExistingTokenUnchanged(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	r := NewResolver(db)
	first, err := r.Resolve(t.Context(), testutil.TestPollID, "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	again, err := r.Resolve(t.Context(), testutil.TestPollID, first.Token)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if again.ID != first.ID || again.Token != first.Token {
		t.Errorf("Expected the same binding, got %+v", again.DeviceBinding)
	}

	if n := testutil.CountRows(t, db, "device_binding", testutil.TestPollID); n != 1 {
		t.Errorf("Expected 1 binding, got %d", n)
	}
}

func TestResolve_VotedBindingReturnedAsIs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	r := NewResolver(db)
	b, err := r.Resolve(t.Context(), testutil.TestPollID, "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	_, err = db.Exec(`UPDATE device_binding SET status = 'VOTED', voted_at = $1 WHERE id = $2`, time.Now().UTC(), b.ID)
	if err != nil {
		t.Fatalf("Failed to mark binding voted: %v", err)
	}

	got, err := r.Resolve(t.Context(), testutil.TestPollID, b.Token)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !got.Voted() || got.ID != b.ID {
		t.Errorf("Expected the VOTED binding back, got %+v", got.DeviceBinding)
	}
}

func TestResolve_UnknownOrForeignToken(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()
	testutil.SetPollOpen(t, db, "other-poll", true)

	r := NewResolver(db)
	foreign, err := r.Resolve(t.Context(), "other-poll", "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	testCases := []struct {
		name  string
		token string
	}{
		{"unknown token", "made-up-token"},
		{"token from another poll", foreign.Token},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := r.Resolve(t.Context(), testutil.TestPollID, tc.token)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if b.Token == tc.token {
				t.Error("Expected a newly minted token")
			}
			if b.PollID != testutil.TestPollID {
				t.Errorf("Expected poll %s, got %s", testutil.TestPollID, b.PollID)
			}
		})
	}
}

func TestPrepare_HasNoSideEffects(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	r := NewResolver(db)
	b, err := r.Prepare(t.Context(), testutil.TestPollID, "")
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if !b.Pending {
		t.Error("Expected pending binding")
	}

	if n := testutil.CountRows(t, db, "device_binding", testutil.TestPollID); n != 0 {
		t.Errorf("Expected no stored bindings, got %d", n)
	}
	if _, err := r.FindByToken(t.Context(), b.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestInsert_TokenCollision(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	r := NewResolver(db)
	r.newToken = func() (string, error) { return "fixed-token", nil }

	if _, err := r.Resolve(t.Context(), testutil.TestPollID, ""); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	_, err := r.Resolve(t.Context(), testutil.TestPollID, "")
	if !errors.Is(err, ErrTokenCollision) {
		t.Errorf("Expected ErrTokenCollision, got %v", err)
	}

	if n := testutil.CountRows(t, db, "device_binding", testutil.TestPollID); n != 1 {
		t.Errorf("Expected collision to leave 1 binding, got %d", n)
	}
}

func TestListAndStats(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	r := NewResolver(db)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var tokens []string
	for i := 0; i < 3; i++ {
		r.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		b, err := r.Resolve(t.Context(), testutil.TestPollID, "")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		tokens = append(tokens, b.Token)
	}

	_, err := db.Exec(`UPDATE device_binding SET status = 'VOTED', voted_at = $1 WHERE token = $2`, base, tokens[0])
	if err != nil {
		t.Fatalf("Failed to mark binding voted: %v", err)
	}

	list, err := r.List(t.Context(), testutil.TestPollID, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 bindings, got %d", len(list))
	}
	if list[0].Token != tokens[2] || list[1].Token != tokens[1] {
		t.Error("Expected newest bindings first")
	}

	stats, err := r.Stats(t.Context(), testutil.TestPollID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 3 || stats.Voted != 1 {
		t.Errorf("Expected 3 total and 1 voted, got %+v", stats)
	}

	empty, err := r.Stats(t.Context(), "no-such-poll")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if empty.Total != 0 || empty.Voted != 0 {
		t.Errorf("Expected empty stats, got %+v", empty)
	}
}
