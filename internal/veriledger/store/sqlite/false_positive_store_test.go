package sqlite_test

import (
	"context"
	"testing"
	"time"

	sqlitestore "github.com/veriledger/veriledger/internal/veriledger/store/sqlite"
)

func TestFalsePositiveStore_Observe_CreatesThenIncrements(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	fs := sqlitestore.NewFalsePositiveStore(conn, w)
	ctx := context.Background()

	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	occ, created, err := fs.Observe(ctx, "cred-001", 5, first)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if !created || occ != 1 {
		t.Errorf("first observe: expected created=true occ=1, got created=%v occ=%d", created, occ)
	}

	occ, created, err = fs.Observe(ctx, "cred-001", 5, first.Add(time.Hour))
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if created || occ != 2 {
		t.Errorf("second observe: expected created=false occ=2, got created=%v occ=%d", created, occ)
	}

	// first_observed is pinned to the first sighting.
	obs, err := fs.FindObservation(ctx, "cred-001", 5)
	if err != nil {
		t.Fatalf("FindObservation: %v", err)
	}
	if obs == nil {
		t.Fatal("expected an observation")
	}
	if !obs.FirstObserved.Equal(first) {
		t.Errorf("expected first_observed %v, got %v", first, obs.FirstObserved)
	}
	if obs.Occurrences != 2 {
		t.Errorf("expected occurrences 2, got %d", obs.Occurrences)
	}
}

func TestFalsePositiveStore_Observe_EpochsAreIndependent(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	fs := sqlitestore.NewFalsePositiveStore(conn, w)
	ctx := context.Background()

	now := time.Now().UTC()
	if _, _, err := fs.Observe(ctx, "cred-001", 5, now); err != nil {
		t.Fatalf("Observe: %v", err)
	}

	occ, created, err := fs.Observe(ctx, "cred-001", 6, now)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if !created || occ != 1 {
		t.Errorf("different epoch: expected fresh observation, got created=%v occ=%d", created, occ)
	}
}

func TestFalsePositiveStore_AllObservations_Ordered(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	fs := sqlitestore.NewFalsePositiveStore(conn, w)
	ctx := context.Background()

	now := time.Now().UTC()
	for _, c := range []struct {
		id    string
		epoch int64
	}{
		{"cred-b", 2},
		{"cred-a", 1},
		{"cred-a", 2},
	} {
		if _, _, err := fs.Observe(ctx, c.id, c.epoch, now); err != nil {
			t.Fatalf("Observe: %v", err)
		}
	}

	all, err := fs.AllObservations(ctx)
	if err != nil {
		t.Fatalf("AllObservations: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 observations, got %d", len(all))
	}
	if all[0].CredentialID != "cred-a" || all[0].EpochID != 1 {
		t.Errorf("expected (cred-a, 1) first, got (%s, %d)", all[0].CredentialID, all[0].EpochID)
	}
	if all[2].CredentialID != "cred-b" || all[2].EpochID != 2 {
		t.Errorf("expected (cred-b, 2) last, got (%s, %d)", all[2].CredentialID, all[2].EpochID)
	}
}
