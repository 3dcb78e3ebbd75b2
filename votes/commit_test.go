// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package votes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/danielhkuo/votegate/binding"
	"github.com/danielhkuo/votegate/models"
	"github.com/danielhkuo/votegate/testutil"
)

func prepare(t *testing.T, db *sql.DB) binding.Binding {
	t.Helper()
	b, err := binding.NewResolver(db).Prepare(t.Context(), testutil.TestPollID, "")
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	return b
}

func request(b binding.Binding, option int, signature string) CommitRequest {
	return CommitRequest{
		PollID:    testutil.TestPollID,
		Option:    option,
		Binding:   b,
		Signature: signature,
		VoterHash: "voter-hash",
	}
}

func assertCounts(t *testing.T, db *sql.DB, bindings, blocks, votes int) {
	t.Helper()
	poll := testutil.TestPollID
	if n := testutil.CountRows(t, db, "device_binding", poll); n != bindings {
		t.Errorf("Expected %d bindings, got %d", bindings, n)
	}
	if n := testutil.CountRows(t, db, "fingerprint_block", poll); n != blocks {
		t.Errorf("Expected %d blocks, got %d", blocks, n)
	}
	if n := testutil.CountRows(t, db, "vote", poll); n != votes {
		t.Errorf("Expected %d votes, got %d", votes, n)
	}
}

func TestCommit_PendingBinding(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	b := prepare(t, db)
	res, err := NewCommitter(db).Commit(t.Context(), request(b, 3, "sig-a"))
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if res.VoteID == "" || res.BindingID != b.ID || res.Token != b.Token || !res.BlockCreated {
		t.Errorf("Unexpected result: %+v", res)
	}
	assertCounts(t, db, 1, 1, 1)

	status, voted := testutil.BindingStatus(t, db, b.Token)
	if status != models.BindingVoted || !voted {
		t.Errorf("Expected VOTED binding, got %s voted=%v", status, voted)
	}

	stored, err := binding.FindByToken(t.Context(), db, b.Token)
	if err != nil {
		t.Fatalf("FindByToken failed: %v", err)
	}
	if stored.FingerprintSignature == nil || *stored.FingerprintSignature != "sig-a" {
		t.Error("Expected binding to record its fingerprint signature")
	}

	var bindingID string
	if err := db.QueryRow(`SELECT binding_id FROM vote WHERE id = $1`, res.VoteID).Scan(&bindingID); err != nil {
		t.Fatalf("Failed to query vote: %v", err)
	}
	if bindingID != b.ID {
		t.Errorf("Expected vote linked to binding %s, got %s", b.ID, bindingID)
	}
}

func TestCommit_StoredBinding(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	b, err := binding.NewResolver(db).Resolve(t.Context(), testutil.TestPollID, "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if _, err := NewCommitter(db).Commit(t.Context(), request(b, 1, "sig-a")); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	assertCounts(t, db, 1, 1, 1)
}

func TestCommit_RetrySameBinding(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	c := NewCommitter(db)
	b := prepare(t, db)
	if _, err := c.Commit(t.Context(), request(b, 1, "sig-a")); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	stored, err := binding.FindByToken(t.Context(), db, b.Token)
	if err != nil {
		t.Fatalf("FindByToken failed: %v", err)
	}

	// A stale ACTIVE view of the binding still loses at commit time
	stale := binding.Binding{DeviceBinding: stored}
	stale.Status = models.BindingActive

	_, err = c.Commit(t.Context(), request(stale, 2, "sig-b"))
	if !errors.Is(err, ErrAlreadyVoted) {
		t.Errorf("Expected ErrAlreadyVoted, got %v", err)
	}
	assertCounts(t, db, 1, 1, 1)
}

func TestCommit_FingerprintConflict(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	c := NewCommitter(db)
	if _, err := c.Commit(t.Context(), request(prepare(t, db), 1, "sig-a")); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	loser := prepare(t, db)
	_, err := c.Commit(t.Context(), request(loser, 2, "sig-a"))
	if !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}

	// The losing binding was never persisted
	assertCounts(t, db, 1, 1, 1)
	if _, err := binding.FindByToken(t.Context(), db, loser.Token); !errors.Is(err, binding.ErrNotFound) {
		t.Errorf("Expected losing binding to be rolled back, got %v", err)
	}
}

func TestCommit_FailureLeavesNoPartialState(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	b, err := binding.NewResolver(db).Resolve(t.Context(), testutil.TestPollID, "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	// Option 0 fails the vote table's CHECK after the binding and block writes
	_, err = NewCommitter(db).Commit(t.Context(), request(b, 0, "sig-a"))
	if err == nil {
		t.Fatal("Expected commit to fail")
	}
	if errors.Is(err, ErrAlreadyVoted) || errors.Is(err, ErrConflict) {
		t.Errorf("Expected a storage error, got %v", err)
	}

	assertCounts(t, db, 1, 0, 0)
	status, voted := testutil.BindingStatus(t, db, b.Token)
	if status != models.BindingActive || voted {
		t.Errorf("Expected binding to stay ACTIVE, got %s voted=%v", status, voted)
	}
}

func TestCommit_CancelledContext(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := NewCommitter(db).Commit(ctx, request(prepare(t, db), 1, "sig-a"))
	if err == nil {
		t.Fatal("Expected cancelled commit to fail")
	}
	assertCounts(t, db, 0, 0, 0)
}

func TestCommit_ConcurrentSameBinding(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	b, err := binding.NewResolver(db).Resolve(t.Context(), testutil.TestPollID, "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	c := NewCommitter(db)
	var successes, alreadyVoted atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.Commit(context.Background(), request(b, 1+i%6, fmt.Sprintf("sig-%d", i)))
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrAlreadyVoted):
				alreadyVoted.Add(1)
			default:
				t.Errorf("Unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successes.Load() != 1 || alreadyVoted.Load() != 19 {
		t.Errorf("Expected 1 success and 19 ErrAlreadyVoted, got %d and %d", successes.Load(), alreadyVoted.Load())
	}
	assertCounts(t, db, 1, 1, 1)
}

func TestCommit_ConcurrentSameSignature(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	c := NewCommitter(db)
	bindings := make([]binding.Binding, 20)
	for i := range bindings {
		bindings[i] = prepare(t, db)
	}

	var successes, conflicts atomic.Int32
	var wg sync.WaitGroup

	for _, b := range bindings {
		wg.Add(1)
		go func(b binding.Binding) {
			defer wg.Done()
			_, err := c.Commit(context.Background(), request(b, 1, "shared-sig"))
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrConflict):
				conflicts.Add(1)
			default:
				t.Errorf("Unexpected error: %v", err)
			}
		}(b)
	}
	wg.Wait()

	if successes.Load() != 1 || conflicts.Load() != 19 {
		t.Errorf("Expected 1 success and 19 conflicts, got %d and %d", successes.Load(), conflicts.Load())
	}
	assertCounts(t, db, 1, 1, 1)
}
