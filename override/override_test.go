// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package override

import (
	"database/sql"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/danielhkuo/votegate/binding"
	"github.com/danielhkuo/votegate/blocks"
	"github.com/danielhkuo/votegate/models"
	"github.com/danielhkuo/votegate/polls"
	"github.com/danielhkuo/votegate/testutil"
	"github.com/danielhkuo/votegate/votes"
)

// castVote commits a vote for a fresh device and returns its token
func castVote(t *testing.T, db *sql.DB, option int, signature string) string {
	t.Helper()

	b, err := binding.NewResolver(db).Prepare(t.Context(), testutil.TestPollID, "")
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	_, err = votes.NewCommitter(db).Commit(t.Context(), votes.CommitRequest{
		PollID:    testutil.TestPollID,
		Option:    option,
		Binding:   b,
		Signature: signature,
		VoterHash: "hash",
	})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	return b.Token
}

func TestReset_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	s := NewService(db, zap.NewNop(), false)
	_, err := s.Reset(t.Context(), "no-such-token", "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if n := testutil.CountRows(t, db, "override_audit", testutil.TestPollID); n != 0 {
		t.Errorf("Expected no audit rows, got %d", n)
	}
}

func TestReset_KeepsVoteByDefault(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	token := castVote(t, db, 2, "sig-a")

	s := NewService(db, zap.NewNop(), false)
	res, err := s.Reset(t.Context(), token, "voted on behalf of a guest")
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	if !res.RemovedBlock || res.RemovedVotes != 0 || res.PollID != testutil.TestPollID {
		t.Errorf("Unexpected result: %+v", res)
	}

	status, voted := testutil.BindingStatus(t, db, token)
	if status != models.BindingActive || voted {
		t.Errorf("Expected ACTIVE binding, got %s voted=%v", status, voted)
	}

	b, err := binding.FindByToken(t.Context(), db, token)
	if err != nil {
		t.Fatalf("FindByToken failed: %v", err)
	}
	if b.FingerprintSignature != nil {
		t.Error("Expected reset to clear the recorded signature")
	}

	blocked, err := blocks.IsBlocked(t.Context(), db, testutil.TestPollID, "sig-a")
	if err != nil {
		t.Fatalf("IsBlocked failed: %v", err)
	}
	if blocked {
		t.Error("Expected fingerprint block to be removed")
	}

	if n := testutil.CountRows(t, db, "vote", testutil.TestPollID); n != 1 {
		t.Errorf("Expected vote to be kept, got %d", n)
	}
}

func TestReset_RemovesVoteWhenConfigured(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	token := castVote(t, db, 2, "sig-a")
	castVote(t, db, 4, "sig-b")

	s := NewService(db, zap.NewNop(), true)
	if !s.RemovesVotes() {
		t.Fatal("Expected service to report vote removal policy")
	}

	res, err := s.Reset(t.Context(), token, "")
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if res.RemovedVotes != 1 {
		t.Errorf("Expected 1 vote removed, got %d", res.RemovedVotes)
	}

	counts, total, err := votes.Tally(t.Context(), db, testutil.TestPollID, 6)
	if err != nil {
		t.Fatalf("Tally failed: %v", err)
	}
	if total != 1 || counts[3] != 1 {
		t.Errorf("Expected only the unrelated vote left, got %v total=%d", counts, total)
	}
}

func TestReset_AllowsExactlyOneMoreVote(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	token := castVote(t, db, 1, "sig-a")

	s := NewService(db, zap.NewNop(), false)
	if _, err := s.Reset(t.Context(), token, "test"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	r := binding.NewResolver(db)
	c := votes.NewCommitter(db)
	commit := func() error {
		b, err := r.Prepare(t.Context(), testutil.TestPollID, token)
		if err != nil {
			t.Fatalf("Prepare failed: %v", err)
		}
		_, err = c.Commit(t.Context(), votes.CommitRequest{
			PollID: testutil.TestPollID, Option: 2, Binding: b, Signature: "sig-a", VoterHash: "hash",
		})
		return err
	}

	if err := commit(); err != nil {
		t.Fatalf("Expected vote after reset to succeed, got %v", err)
	}
	if err := commit(); !errors.Is(err, votes.ErrAlreadyVoted) {
		t.Errorf("Expected second vote to fail with ErrAlreadyVoted, got %v", err)
	}
}

func TestReset_DoesNotTouchOtherBindingsBlock(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	s := NewService(db, zap.NewNop(), false)

	// A resets, B later takes the same signature, A resets again
	tokenA := castVote(t, db, 1, "sig-shared")
	if _, err := s.Reset(t.Context(), tokenA, ""); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	castVote(t, db, 2, "sig-shared")

	res, err := s.Reset(t.Context(), tokenA, "")
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if res.RemovedBlock {
		t.Error("Expected second reset not to remove another binding's block")
	}

	blocked, _ := blocks.IsBlocked(t.Context(), db, testutil.TestPollID, "sig-shared")
	if !blocked {
		t.Error("Expected B's block to survive")
	}
}

func TestAudit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	s := NewService(db, zap.NewNop(), true)
	token := castVote(t, db, 1, "sig-a")

	if _, err := s.Reset(t.Context(), token, ""); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if _, err := s.Reset(t.Context(), token, "second look"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	entries, err := s.Audit(t.Context(), testutil.TestPollID)
	if err != nil {
		t.Fatalf("Audit failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 audit entries, got %d", len(entries))
	}

	reasons := map[string]int{}
	for _, e := range entries {
		reasons[e.Reason] = e.RemovedVotes
		if e.TokenPrefix != token[:8]+"..." {
			t.Errorf("Expected truncated token, got %q", e.TokenPrefix)
		}
	}
	if removed, ok := reasons["No reason provided"]; !ok || removed != 1 {
		t.Errorf("Expected default reason with 1 removed vote, got %v", reasons)
	}
	if removed, ok := reasons["second look"]; !ok || removed != 0 {
		t.Errorf("Expected second reset with nothing removed, got %v", reasons)
	}
}

func TestClearVotes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	castVote(t, db, 1, "sig-a")
	castVote(t, db, 2, "sig-b")

	res, err := NewService(db, zap.NewNop(), false).ClearVotes(t.Context(), testutil.TestPollID)
	if err != nil {
		t.Fatalf("ClearVotes failed: %v", err)
	}
	if res.DeletedVotes != 2 || res.DeletedBindings != 0 || res.DeletedBlocks != 0 {
		t.Errorf("Unexpected result: %+v", res)
	}

	if n := testutil.CountRows(t, db, "vote", testutil.TestPollID); n != 0 {
		t.Errorf("Expected no votes, got %d", n)
	}
	if n := testutil.CountRows(t, db, "device_binding", testutil.TestPollID); n != 2 {
		t.Errorf("Expected bindings kept, got %d", n)
	}
	if n := testutil.CountRows(t, db, "fingerprint_block", testutil.TestPollID); n != 2 {
		t.Errorf("Expected blocks kept, got %d", n)
	}
}

func TestHardReset(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	castVote(t, db, 1, "sig-a")
	castVote(t, db, 2, "sig-b")
	testutil.SetPollOpen(t, db, testutil.TestPollID, false)

	s := NewService(db, zap.NewNop(), false)

	for _, confirm := range []string{"", "hard reset", "HARD RESET "} {
		if _, err := s.HardReset(t.Context(), testutil.TestPollID, confirm); !errors.Is(err, ErrNotConfirmed) {
			t.Errorf("Confirmation %q: expected ErrNotConfirmed, got %v", confirm, err)
		}
	}
	if n := testutil.CountRows(t, db, "vote", testutil.TestPollID); n != 2 {
		t.Fatalf("Expected unconfirmed resets to change nothing, got %d votes", n)
	}

	res, err := s.HardReset(t.Context(), testutil.TestPollID, "HARD RESET")
	if err != nil {
		t.Fatalf("HardReset failed: %v", err)
	}
	if res.DeletedVotes != 2 || res.DeletedBindings != 2 || res.DeletedBlocks != 2 {
		t.Errorf("Unexpected result: %+v", res)
	}

	for _, table := range []string{"vote", "device_binding", "fingerprint_block"} {
		if n := testutil.CountRows(t, db, table, testutil.TestPollID); n != 0 {
			t.Errorf("Expected %s empty, got %d", table, n)
		}
	}

	open, err := polls.NewStore(db).IsOpen(t.Context(), testutil.TestPollID)
	if err != nil {
		t.Fatalf("IsOpen failed: %v", err)
	}
	if !open {
		t.Error("Expected hard reset to reopen the poll")
	}

	// The old signature can vote again
	castVote(t, db, 3, "sig-a")
}
