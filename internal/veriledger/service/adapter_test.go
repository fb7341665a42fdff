package service_test

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/veriledger/veriledger/internal/veriledger/service"
	"github.com/veriledger/veriledger/internal/veriledger/store/memory"
	"github.com/veriledger/veriledger/internal/veriledger/types"
)

// fakeExternal is a scripted external collaborator.
type fakeExternal struct {
	verdict     service.ExternalVerdict
	verifyErr   error
	commit      service.RevocationCommit
	revokeErr   error
	verifyCalls int
	revokeCalls int
}

func (f *fakeExternal) VerifyCredential(_ context.Context, _ string, _ int64) (service.ExternalVerdict, error) {
	f.verifyCalls++
	return f.verdict, f.verifyErr
}

func (f *fakeExternal) RevokeCredential(_ context.Context, _, _ string) (service.RevocationCommit, error) {
	f.revokeCalls++
	return f.commit, f.revokeErr
}

func newTestAdapter(t *testing.T, ext *fakeExternal) (*service.Adapter, *memory.Ledger) {
	t.Helper()
	ledger := memory.New()
	logger := log.New(io.Discard, "", 0)
	guard := service.NewFalsePositiveGuard(0.01, 100)
	rec := service.NewReconciler(ledger, ledger, ledger, guard, logger)
	svc := service.NewRevocationLedger(ledger, ledger, ledger, logger)
	return service.NewAdapter(ext, rec, svc, logger), ledger
}

func TestAdapter_VerifyCredential_Optimized(t *testing.T) {
	ext := &fakeExternal{verdict: service.ExternalVerdict{Valid: true}}
	a, _ := newTestAdapter(t, ext)

	res, err := a.VerifyCredential(context.Background(), "cred-001", 5)
	if err != nil {
		t.Fatalf("VerifyCredential: %v", err)
	}
	if !res.Valid || res.Method != types.MethodFilterTrusted {
		t.Errorf("expected fast-path result, got %+v", res)
	}
	if !res.Optimized {
		t.Error("expected Optimized=true")
	}
	if ext.verifyCalls != 1 {
		t.Errorf("expected 1 external call, got %d", ext.verifyCalls)
	}
}

func TestAdapter_VerifyCredential_FallbackOnLedgerFailure(t *testing.T) {
	// External says possibly revoked; the ledger cannot answer.
	ext := &fakeExternal{verdict: service.ExternalVerdict{Valid: false}}
	a, ledger := newTestAdapter(t, ext)
	ledger.FailWrites = errors.New("disk full")

	res, err := a.VerifyCredential(context.Background(), "cred-001", 5)
	if err != nil {
		t.Fatalf("VerifyCredential: %v", err)
	}
	// The external verdict comes back unmodified, flagged as unoptimized.
	if res.Valid {
		t.Error("fallback must preserve the external verdict (invalid)")
	}
	if res.Method != types.MethodExternal || res.Optimized {
		t.Errorf("expected unoptimized external result, got %+v", res)
	}
}

func TestAdapter_VerifyCredential_ExternalError(t *testing.T) {
	ext := &fakeExternal{verifyErr: errors.New("chain unreachable")}
	a, _ := newTestAdapter(t, ext)

	if _, err := a.VerifyCredential(context.Background(), "cred-001", 5); err == nil {
		t.Error("expected the external error to propagate — there is no verdict to fall back to")
	}
}

func TestAdapter_RevokeCredential_RecordsOnLedger(t *testing.T) {
	epoch := int64(7)
	ext := &fakeExternal{commit: service.RevocationCommit{EpochID: &epoch, PrimeValue: "104729"}}
	a, ledger := newTestAdapter(t, ext)
	ctx := context.Background()

	res, err := a.RevokeCredential(ctx, "cred-001", "issuer-a")
	if err != nil {
		t.Fatalf("RevokeCredential: %v", err)
	}
	if !res.Recorded || res.EpochID != 7 || res.PrimeValue != "104729" {
		t.Errorf("unexpected result: %+v", res)
	}

	rec, err := ledger.FindRevocation(ctx, "cred-001")
	if err != nil {
		t.Fatalf("FindRevocation: %v", err)
	}
	if rec == nil {
		t.Fatal("expected the revocation on the ledger")
	}
	if rec.EpochID != 7 || rec.IssuerID != "issuer-a" {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestAdapter_RevokeCredential_EpochSentinel(t *testing.T) {
	ext := &fakeExternal{commit: service.RevocationCommit{PrimeValue: "104729"}} // no epoch metadata
	a, ledger := newTestAdapter(t, ext)

	res, err := a.RevokeCredential(context.Background(), "cred-001", "issuer-a")
	if err != nil {
		t.Fatalf("RevokeCredential: %v", err)
	}
	if res.EpochID != types.EpochUnknown {
		t.Errorf("expected epoch sentinel %d, got %d", types.EpochUnknown, res.EpochID)
	}

	rec, _ := ledger.FindRevocation(context.Background(), "cred-001")
	if rec == nil || rec.EpochID != types.EpochUnknown {
		t.Errorf("expected sentinel on the ledger record, got %+v", rec)
	}
}

func TestAdapter_RevokeCredential_LedgerFailureIsSoft(t *testing.T) {
	ext := &fakeExternal{commit: service.RevocationCommit{PrimeValue: "104729"}}
	a, ledger := newTestAdapter(t, ext)
	ledger.FailWrites = errors.New("disk full")

	res, err := a.RevokeCredential(context.Background(), "cred-001", "issuer-a")
	if err != nil {
		t.Fatalf("the external commit succeeded; local failure must not propagate: %v", err)
	}
	if res.Recorded {
		t.Error("expected Recorded=false when the ledger write fails")
	}
}

func TestAdapter_RevokeCredential_ExternalError(t *testing.T) {
	ext := &fakeExternal{revokeErr: errors.New("chain unreachable")}
	a, ledger := newTestAdapter(t, ext)

	if _, err := a.RevokeCredential(context.Background(), "cred-001", "issuer-a"); err == nil {
		t.Error("expected the external error to propagate")
	}

	// Nothing recorded speculatively.
	rec, _ := ledger.FindRevocation(context.Background(), "cred-001")
	if rec != nil {
		t.Errorf("no revocation should be recorded without an external commit, got %+v", rec)
	}
}

func TestAdapter_BatchPassThroughs(t *testing.T) {
	ext := &fakeExternal{}
	a, _ := newTestAdapter(t, ext)
	ctx := context.Background()

	batchID, err := a.CreateRevocationBatch(ctx)
	if err != nil {
		t.Fatalf("CreateRevocationBatch: %v", err)
	}
	if err := a.AddToBatch(ctx, batchID, []types.BatchItem{{CredentialID: "cred-001", EpochID: 1}}); err != nil {
		t.Fatalf("AddToBatch: %v", err)
	}

	result, err := a.ProcessBatch(ctx, batchID)
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if !result.Success || result.ItemCount != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
	if ext.verifyCalls != 0 || ext.revokeCalls != 0 {
		t.Error("batch lifecycle must not touch the external collaborator")
	}
}
