package service

import (
	"context"
	"log"

	"github.com/veriledger/veriledger/internal/veriledger/types"
)

// ExternalVerdict is the membership filter's answer for one credential.
// Valid=false means "possibly revoked"; the collaborator guarantees no
// false negatives.
type ExternalVerdict struct {
	Valid bool
}

// RevocationCommit is what the external collaborator returns after
// committing a revocation on-ledger.  EpochID is nil when the commit
// carried no epoch metadata.
type RevocationCommit struct {
	EpochID    *int64
	PrimeValue string
}

// ExternalCollaborator is the accumulator-backed verification source this
// core sits in front of.  It is consumed, never implemented, here.
type ExternalCollaborator interface {
	VerifyCredential(ctx context.Context, credentialID string, epochID int64) (ExternalVerdict, error)
	RevokeCredential(ctx context.Context, credentialID, issuerID string) (RevocationCommit, error)
}

// Adapter composes the external collaborator with the reconciler and the
// revocation ledger.  Its one hard rule: never return a result less correct
// than calling the collaborator directly — the ledger is strictly an
// optimization, and every internal failure degrades to the collaborator's
// own verdict.
type Adapter struct {
	external   ExternalCollaborator
	reconciler *Reconciler
	ledger     *RevocationLedger
	logger     *log.Logger
}

func NewAdapter(
	external ExternalCollaborator,
	reconciler *Reconciler,
	ledger *RevocationLedger,
	logger *log.Logger,
) *Adapter {
	return &Adapter{external: external, reconciler: reconciler, ledger: ledger, logger: logger}
}

// VerifyCredential obtains the collaborator's verdict and reconciles it
// against the ledger.  A reconciler failure falls back to the unmodified
// external verdict with Optimized=false.
func (a *Adapter) VerifyCredential(ctx context.Context, credentialID string, epochID int64) (types.VerifyResult, error) {
	verdict, err := a.external.VerifyCredential(ctx, credentialID, epochID)
	if err != nil {
		return types.VerifyResult{}, err
	}

	possiblyRevoked := !verdict.Valid
	res, err := a.reconciler.Verify(ctx, credentialID, epochID, possiblyRevoked)
	if err != nil {
		a.logger.Printf("verify %s: reconciler unavailable, using external verdict: %v", credentialID, err)
		return types.VerifyResult{
			Valid:     verdict.Valid,
			Method:    types.MethodExternal,
			Optimized: false,
		}, nil
	}

	res.Optimized = true
	return res, nil
}

// RevokeCredential commits the revocation externally, then records the fact
// on the local ledger.  The external commit is the source of truth: a ledger
// failure is logged and reported via Recorded=false, never propagated.
func (a *Adapter) RevokeCredential(ctx context.Context, credentialID, issuerID string) (types.RevokeResult, error) {
	commit, err := a.external.RevokeCredential(ctx, credentialID, issuerID)
	if err != nil {
		return types.RevokeResult{}, err
	}

	epochID := types.EpochUnknown
	if commit.EpochID != nil {
		epochID = *commit.EpochID
	}

	recorded := true
	err = a.ledger.RecordRevocation(ctx, types.RevocationRequest{
		CredentialID: credentialID,
		EpochID:      epochID,
		IssuerID:     issuerID,
		PrimeValue:   commit.PrimeValue,
	})
	if err != nil {
		// The ledger is a derived cache and can be rebuilt from the chain.
		a.logger.Printf("revoke %s: ledger record failed: %v", credentialID, err)
		recorded = false
	}

	return types.RevokeResult{
		CredentialID: credentialID,
		EpochID:      epochID,
		PrimeValue:   commit.PrimeValue,
		Recorded:     recorded,
	}, nil
}

// Batch lifecycle pass-throughs.  No independent logic: the ledger service
// owns batch semantics.

func (a *Adapter) CreateRevocationBatch(ctx context.Context) (string, error) {
	return a.ledger.CreateBatch(ctx)
}

func (a *Adapter) AddToBatch(ctx context.Context, batchID string, items []types.BatchItem) error {
	return a.ledger.AddToBatch(ctx, batchID, items)
}

func (a *Adapter) ProcessBatch(ctx context.Context, batchID string) (types.ProcessBatchResult, error) {
	return a.ledger.ProcessBatch(ctx, batchID)
}
