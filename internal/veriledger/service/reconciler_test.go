package service_test

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/veriledger/veriledger/internal/veriledger/service"
	"github.com/veriledger/veriledger/internal/veriledger/store"
	"github.com/veriledger/veriledger/internal/veriledger/store/memory"
	"github.com/veriledger/veriledger/internal/veriledger/types"
)

func newTestReconciler(t *testing.T) (*service.Reconciler, *memory.Ledger) {
	t.Helper()
	ledger := memory.New()
	logger := log.New(io.Discard, "", 0)
	guard := service.NewFalsePositiveGuard(0.01, 100)
	return service.NewReconciler(ledger, ledger, ledger, guard, logger), ledger
}

func TestReconciler_Verify_FilterTrusted(t *testing.T) {
	r, ledger := newTestReconciler(t)
	ctx := context.Background()

	// Ledger state is irrelevant on the fast path — even a revoked
	// credential is reported valid when the filter says "not revoked",
	// because the filter has no false negatives.
	err := ledger.InsertRevocations(ctx, []store.RevocationRecord{{CredentialID: "cred-001", EpochID: 1}})
	if err != nil {
		t.Fatalf("seed revocation: %v", err)
	}

	res, err := r.Verify(ctx, "cred-001", 1, false)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !res.Valid || res.Method != types.MethodFilterTrusted {
		t.Errorf("expected valid via %q, got %+v", types.MethodFilterTrusted, res)
	}
}

func TestReconciler_Verify_Definitive(t *testing.T) {
	r, ledger := newTestReconciler(t)
	ctx := context.Background()

	err := ledger.InsertRevocations(ctx, []store.RevocationRecord{{CredentialID: "cred-001", EpochID: 5}})
	if err != nil {
		t.Fatalf("seed revocation: %v", err)
	}

	res, err := r.Verify(ctx, "cred-001", 5, true)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Valid {
		t.Error("revoked credential reported valid")
	}
	if res.Method != types.MethodDefinitive {
		t.Errorf("expected method %q, got %q", types.MethodDefinitive, res.Method)
	}
	if res.RevocationTime == "" {
		t.Error("expected revocation_time to be set")
	}
}

func TestReconciler_Verify_FalsePositiveLearning(t *testing.T) {
	r, _ := newTestReconciler(t)
	ctx := context.Background()

	// First-seen discrepancy.
	res, err := r.Verify(ctx, "cred-001", 5, true)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !res.Valid || res.Method != types.MethodNewFalsePositive {
		t.Errorf("first call: expected valid via %q, got %+v", types.MethodNewFalsePositive, res)
	}
	if res.Occurrences != 1 {
		t.Errorf("first call: expected occurrences 1, got %d", res.Occurrences)
	}

	// Repeats hit the cache with strictly increasing occurrences.
	for want := int64(2); want <= 4; want++ {
		res, err := r.Verify(ctx, "cred-001", 5, true)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if !res.Valid || res.Method != types.MethodFalsePositiveCache {
			t.Errorf("call %d: expected %q, got %+v", want, types.MethodFalsePositiveCache, res)
		}
		if res.Occurrences != want {
			t.Errorf("call %d: expected occurrences %d, got %d", want, want, res.Occurrences)
		}
	}
}

func TestReconciler_Verify_RevocationShadowsFalsePositives(t *testing.T) {
	r, ledger := newTestReconciler(t)
	ctx := context.Background()

	// Build up false-positive history, then revoke.
	for i := 0; i < 3; i++ {
		if _, err := r.Verify(ctx, "cred-001", 5, true); err != nil {
			t.Fatalf("Verify: %v", err)
		}
	}
	err := ledger.InsertRevocations(ctx, []store.RevocationRecord{{CredentialID: "cred-001", EpochID: 5}})
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}

	res, err := r.Verify(ctx, "cred-001", 5, true)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Valid || res.Method != types.MethodDefinitive {
		t.Errorf("stale false-positive cache shadowed a real revocation: %+v", res)
	}

	// And the observations themselves are gone.
	obs, err := ledger.FindObservation(ctx, "cred-001", 5)
	if err != nil {
		t.Fatalf("FindObservation: %v", err)
	}
	if obs != nil {
		t.Errorf("expected observations purged, found %+v", obs)
	}
}

func TestReconciler_Verify_UnavailableOnStoreFailure(t *testing.T) {
	r, ledger := newTestReconciler(t)
	ledger.FailWrites = errors.New("disk full")

	// Fast path needs no storage and still resolves.
	if _, err := r.Verify(context.Background(), "cred-001", 5, false); err != nil {
		t.Fatalf("fast path should not touch storage: %v", err)
	}

	// The false-positive path needs a write and must signal fallback.
	if _, err := r.Verify(context.Background(), "cred-001", 5, true); err == nil {
		t.Error("expected an error when the observation write fails")
	}
}

func TestReconciler_Verify_RecordsMetrics(t *testing.T) {
	r, ledger := newTestReconciler(t)
	ctx := context.Background()

	if _, err := r.Verify(ctx, "cred-001", 5, false); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if _, err := r.Verify(ctx, "cred-002", 5, true); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	ms := ledger.Metrics()
	if len(ms) != 2 {
		t.Fatalf("expected 2 metrics, got %d", len(ms))
	}
	if ms[0].OperationType != types.MethodFilterTrusted || ms[0].FalsePositive {
		t.Errorf("unexpected first metric: %+v", ms[0])
	}
	if ms[1].OperationType != types.MethodNewFalsePositive || !ms[1].FalsePositive {
		t.Errorf("unexpected second metric: %+v", ms[1])
	}
}

func TestReconciler_BatchVerify_MixedStates(t *testing.T) {
	r, ledger := newTestReconciler(t)
	ctx := context.Background()

	err := ledger.InsertRevocations(ctx, []store.RevocationRecord{{CredentialID: "revoked", EpochID: 5}})
	if err != nil {
		t.Fatalf("seed revocation: %v", err)
	}
	// Pre-existing observation for the cached case.
	if _, _, err := ledger.Observe(ctx, "cached", 5, time.Now().UTC()); err != nil {
		t.Fatalf("seed observation: %v", err)
	}

	results, err := r.BatchVerify(ctx, []types.VerifyRequest{
		{CredentialID: "clean", EpochID: 5, PossiblyRevoked: false},
		{CredentialID: "revoked", EpochID: 5, PossiblyRevoked: true},
		{CredentialID: "cached", EpochID: 5, PossiblyRevoked: true},
		{CredentialID: "fresh", EpochID: 5, PossiblyRevoked: true},
	})
	if err != nil {
		t.Fatalf("BatchVerify: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}

	if res := results["clean"]; !res.Valid || res.Method != types.MethodFilterTrusted {
		t.Errorf("clean: %+v", res)
	}
	if res := results["revoked"]; res.Valid || res.Method != types.MethodDefinitive {
		t.Errorf("revoked: %+v", res)
	}
	if res := results["cached"]; !res.Valid || res.Method != types.MethodFalsePositiveCache || res.Occurrences != 2 {
		t.Errorf("cached: %+v", res)
	}
	if res := results["fresh"]; !res.Valid || res.Method != types.MethodNewFalsePositive {
		t.Errorf("fresh: %+v", res)
	}
}

func TestReconciler_FalsePositiveStats(t *testing.T) {
	r, _ := newTestReconciler(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := r.Verify(ctx, "cred-001", 5, true); err != nil {
			t.Fatalf("Verify: %v", err)
		}
	}

	stats, err := r.FalsePositiveStats(ctx)
	if err != nil {
		t.Fatalf("FalsePositiveStats: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("expected total 3, got %d", stats.Total)
	}
	if len(stats.ByEpoch) != 1 || stats.ByEpoch[0].EpochID != 5 || stats.ByEpoch[0].Count != 3 {
		t.Errorf("unexpected by-epoch counts: %+v", stats.ByEpoch)
	}
	if stats.Recommendation == "" {
		t.Error("expected a recommendation")
	}
}
