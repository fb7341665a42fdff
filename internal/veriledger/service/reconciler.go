package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/veriledger/veriledger/internal/veriledger/store"
	"github.com/veriledger/veriledger/internal/veriledger/types"
)

// Reconciler turns a probabilistic filter verdict into a definitive
// valid/invalid decision, learning filter false positives along the way.
//
// Verify returning an error means "could not resolve against the ledger" —
// it is a fallback signal, not a fault: callers are expected to fall back to
// the external collaborator's own verdict.  The reconciler never produces a
// false negative: a credential with a revocation fact on the ledger is
// always reported invalid.
type Reconciler struct {
	revocations    store.RevocationStore
	falsePositives store.FalsePositiveStore
	metrics        store.MetricStore
	guard          *FalsePositiveGuard
	logger         *log.Logger
}

func NewReconciler(
	rs store.RevocationStore,
	fs store.FalsePositiveStore,
	ms store.MetricStore,
	guard *FalsePositiveGuard,
	logger *log.Logger,
) *Reconciler {
	return &Reconciler{
		revocations:    rs,
		falsePositives: fs,
		metrics:        ms,
		guard:          guard,
		logger:         logger,
	}
}

// Verify resolves one filter verdict.  Decision order:
//
//  1. possiblyRevoked=false — the filter has no false negatives, so the
//     credential is valid.  No ledger reads at all; this is the hot path.
//  2. A revocation fact exists — invalid, authoritative.
//  3. A false-positive observation exists for (credential, epoch) —
//     valid; occurrence count incremented.
//  4. First-seen discrepancy — valid; observation recorded.
func (r *Reconciler) Verify(ctx context.Context, credentialID string, epochID int64, possiblyRevoked bool) (types.VerifyResult, error) {
	started := time.Now()

	if !possiblyRevoked {
		res := types.VerifyResult{Valid: true, Method: types.MethodFilterTrusted}
		r.recordMetric(ctx, epochID, res.Method, started, false)
		return res, nil
	}

	rec, err := r.revocations.FindRevocation(ctx, credentialID)
	if err != nil {
		return types.VerifyResult{}, fmt.Errorf("verify %s: %w", credentialID, err)
	}
	if rec != nil {
		res := types.VerifyResult{
			Valid:          false,
			Method:         types.MethodDefinitive,
			RevocationTime: rec.RevokedAt.Format(time.RFC3339),
		}
		r.recordMetric(ctx, epochID, res.Method, started, false)
		return res, nil
	}

	// Filter said revoked, ledger says no fact exists: a false positive.
	occurrences, created, err := r.falsePositives.Observe(ctx, credentialID, epochID, time.Now().UTC())
	if err != nil {
		return types.VerifyResult{}, fmt.Errorf("verify %s: observe false positive: %w", credentialID, err)
	}

	method := types.MethodFalsePositiveCache
	if created {
		method = types.MethodNewFalsePositive
	}
	res := types.VerifyResult{Valid: true, Method: method, Occurrences: occurrences}
	r.recordMetric(ctx, epochID, method, started, true)
	return res, nil
}

// BatchVerify resolves many verdicts at once, keyed by credential ID.
// Semantically one Verify per credential; the revocation lookups for all
// possibly-revoked credentials are folded into a single multi-row query.
// Credentials the ledger could not resolve are omitted from the result map
// so the caller can fall back for exactly those.
func (r *Reconciler) BatchVerify(ctx context.Context, reqs []types.VerifyRequest) (map[string]types.VerifyResult, error) {
	results := make(map[string]types.VerifyResult, len(reqs))

	var flagged []string
	for _, req := range reqs {
		if !req.PossiblyRevoked {
			started := time.Now()
			results[req.CredentialID] = types.VerifyResult{Valid: true, Method: types.MethodFilterTrusted}
			r.recordMetric(ctx, req.EpochID, types.MethodFilterTrusted, started, false)
			continue
		}
		flagged = append(flagged, req.CredentialID)
	}

	if len(flagged) == 0 {
		return results, nil
	}

	revoked, err := r.revocations.FindRevocations(ctx, flagged)
	if err != nil {
		return nil, fmt.Errorf("batch verify: %w", err)
	}

	for _, req := range reqs {
		if !req.PossiblyRevoked {
			continue
		}
		started := time.Now()

		if rec, ok := revoked[req.CredentialID]; ok {
			results[req.CredentialID] = types.VerifyResult{
				Valid:          false,
				Method:         types.MethodDefinitive,
				RevocationTime: rec.RevokedAt.Format(time.RFC3339),
			}
			r.recordMetric(ctx, req.EpochID, types.MethodDefinitive, started, false)
			continue
		}

		occurrences, created, err := r.falsePositives.Observe(ctx, req.CredentialID, req.EpochID, time.Now().UTC())
		if err != nil {
			// Leave this credential unresolved; the caller falls back.
			r.logger.Printf("batch verify %s: observe false positive: %v", req.CredentialID, err)
			continue
		}

		method := types.MethodFalsePositiveCache
		if created {
			method = types.MethodNewFalsePositive
		}
		results[req.CredentialID] = types.VerifyResult{Valid: true, Method: method, Occurrences: occurrences}
		r.recordMetric(ctx, req.EpochID, method, started, true)
	}

	return results, nil
}

// FalsePositiveStats loads the observation log and runs the guard's
// analysis.  Read-only.
func (r *Reconciler) FalsePositiveStats(ctx context.Context) (types.FalsePositiveStats, error) {
	observations, err := r.falsePositives.AllObservations(ctx)
	if err != nil {
		return types.FalsePositiveStats{}, fmt.Errorf("false positive stats: %w", err)
	}
	return r.guard.Analyze(observations), nil
}

// recordMetric appends one row per decision to the observability log.
// Best-effort: a failed metric write is logged, never escalated — only
// decision-path reads and false-positive writes can make Verify fall back.
func (r *Reconciler) recordMetric(ctx context.Context, epochID int64, method string, started time.Time, falsePositive bool) {
	err := r.metrics.RecordMetric(ctx, store.OperationMetric{
		EpochID:         epochID,
		OperationType:   method,
		ExecutionTimeMs: time.Since(started).Milliseconds(),
		FalsePositive:   falsePositive,
	})
	if err != nil {
		r.logger.Printf("record metric %s: %v", method, err)
	}
}
