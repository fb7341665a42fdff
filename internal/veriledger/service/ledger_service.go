package service

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/veriledger/veriledger/internal/veriledger/store"
	"github.com/veriledger/veriledger/internal/veriledger/types"
)

var (
	ErrInvalidCredentialID = errors.New("credential_id is required")
	ErrBatchNotFound       = store.ErrBatchNotFound
)

// RevocationLedger owns the write side of the revocation ledger: confirmed
// revocation facts, batch lifecycle, and revocation statistics.
type RevocationLedger struct {
	revocations store.RevocationStore
	batches     store.BatchStore
	metrics     store.MetricStore
	logger      *log.Logger
}

func NewRevocationLedger(
	rs store.RevocationStore,
	bs store.BatchStore,
	ms store.MetricStore,
	logger *log.Logger,
) *RevocationLedger {
	return &RevocationLedger{revocations: rs, batches: bs, metrics: ms, logger: logger}
}

// RecordRevocation durably records a confirmed revocation.  Calling it again
// for the same credential is a safe no-op: the fact is already on the
// ledger, so duplicates are success, not failure.  The credential's
// false-positive history is purged in the same transaction.
func (l *RevocationLedger) RecordRevocation(ctx context.Context, req types.RevocationRequest) error {
	if req.CredentialID == "" {
		return ErrInvalidCredentialID
	}

	return l.revocations.InsertRevocations(ctx, []store.RevocationRecord{{
		CredentialID: req.CredentialID,
		RevokedAt:    time.Now().UTC(),
		EpochID:      req.EpochID,
		IssuerID:     req.IssuerID,
		PrimeValue:   req.PrimeValue,
	}})
}

// CreateBatch allocates a new pending batch and returns its ID.
func (l *RevocationLedger) CreateBatch(ctx context.Context) (string, error) {
	batchID := uuid.NewString()
	err := l.batches.CreateBatch(ctx, store.BatchRecord{
		BatchID:   batchID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}
	return batchID, nil
}

// AddToBatch appends items to a pending batch.  All-or-nothing: the store
// rejects the whole call if any item cannot be added.
func (l *RevocationLedger) AddToBatch(ctx context.Context, batchID string, items []types.BatchItem) error {
	recs := make([]store.BatchItemRecord, len(items))
	for i, it := range items {
		if it.CredentialID == "" {
			return ErrInvalidCredentialID
		}
		recs[i] = store.BatchItemRecord{
			CredentialID: it.CredentialID,
			PrimeValue:   it.PrimeValue,
			EpochID:      it.EpochID,
			IssuerID:     it.IssuerID,
		}
	}
	return l.batches.AddItems(ctx, batchID, recs)
}

// ProcessBatch records every item of the batch as a revocation fact, one
// atomic transaction per epoch group, then marks the batch processed.  A
// crash mid-processing leaves whole epoch groups either fully recorded or
// untouched; re-running the batch is safe because revocation inserts are
// idempotent.
//
// Expected failures (empty batch, already processed) come back as a
// Success=false result, not an error.
func (l *RevocationLedger) ProcessBatch(ctx context.Context, batchID string) (types.ProcessBatchResult, error) {
	batch, err := l.batches.FindBatch(ctx, batchID)
	if err != nil {
		return types.ProcessBatchResult{}, err
	}
	if batch == nil {
		return types.ProcessBatchResult{}, ErrBatchNotFound
	}
	if batch.Status == store.BatchProcessed {
		return types.ProcessBatchResult{Success: false, Error: "batch already processed"}, nil
	}

	items, err := l.batches.ItemsByBatch(ctx, batchID)
	if err != nil {
		return types.ProcessBatchResult{}, err
	}
	if len(items) == 0 {
		return types.ProcessBatchResult{Success: false, Error: "batch has no items"}, nil
	}

	byEpoch := make(map[int64][]store.RevocationRecord)
	for _, it := range items {
		byEpoch[it.EpochID] = append(byEpoch[it.EpochID], store.RevocationRecord{
			CredentialID: it.CredentialID,
			RevokedAt:    time.Now().UTC(),
			EpochID:      it.EpochID,
			IssuerID:     it.IssuerID,
			PrimeValue:   it.PrimeValue,
		})
	}

	epochs := make([]int64, 0, len(byEpoch))
	for epoch := range byEpoch {
		epochs = append(epochs, epoch)
	}
	sort.Slice(epochs, func(i, j int) bool { return epochs[i] < epochs[j] })

	started := time.Now()
	for _, epoch := range epochs {
		groupStart := time.Now()
		if err := l.revocations.InsertRevocations(ctx, byEpoch[epoch]); err != nil {
			return types.ProcessBatchResult{}, err
		}
		l.recordMetric(ctx, store.OperationMetric{
			EpochID:         epoch,
			OperationType:   types.OpBatchRevocation,
			ExecutionTimeMs: time.Since(groupStart).Milliseconds(),
		})
	}

	if err := l.batches.MarkBatchProcessed(ctx, batchID, time.Now().UTC()); err != nil {
		return types.ProcessBatchResult{}, err
	}

	return types.ProcessBatchResult{
		Success:         true,
		ItemCount:       len(items),
		ExecutionTimeMs: time.Since(started).Milliseconds(),
	}, nil
}

// RevocationStats is a read-only aggregation over the ledger; no side
// effects.
func (l *RevocationLedger) RevocationStats(ctx context.Context) (types.RevocationStats, error) {
	total, err := l.revocations.CountRevocations(ctx)
	if err != nil {
		return types.RevocationStats{}, err
	}

	byEpoch, err := l.revocations.RevocationsByEpoch(ctx)
	if err != nil {
		return types.RevocationStats{}, err
	}

	batchStats, err := l.batches.BatchStats(ctx)
	if err != nil {
		return types.RevocationStats{}, err
	}

	perf, err := l.metrics.MetricsSummary(ctx)
	if err != nil {
		return types.RevocationStats{}, err
	}

	return types.RevocationStats{
		TotalRevocations: total,
		ByEpoch:          byEpoch,
		Batches:          batchStats,
		Performance:      perf,
	}, nil
}

// recordMetric appends to the observability log.  Metric failures are logged
// and swallowed — observability must never fail a revocation.
func (l *RevocationLedger) recordMetric(ctx context.Context, m store.OperationMetric) {
	if err := l.metrics.RecordMetric(ctx, m); err != nil {
		l.logger.Printf("record metric %s: %v", m.OperationType, err)
	}
}
