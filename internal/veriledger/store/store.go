package store

import (
	"context"
	"errors"
	"time"

	"github.com/veriledger/veriledger/internal/veriledger/types"
)

// RevocationRecord is the definitive fact that a credential is revoked.
// Append-only: at most one per credential, never mutated or deleted.
type RevocationRecord struct {
	CredentialID string
	RevokedAt    time.Time
	EpochID      int64
	IssuerID     string
	PrimeValue   string
}

// FalsePositiveObservation is a learned filter exception: the filter flagged
// (CredentialID, EpochID) but no revocation fact existed at the time.
type FalsePositiveObservation struct {
	CredentialID  string
	EpochID       int64
	FirstObserved time.Time
	Occurrences   int64
}

type BatchRecord struct {
	BatchID     string
	CreatedAt   time.Time
	ProcessedAt *time.Time
	ItemCount   int64
	Status      string
}

type BatchItemRecord struct {
	ItemID       int64
	BatchID      string
	CredentialID string
	PrimeValue   string
	EpochID      int64
	IssuerID     string
	Status       string
}

// OperationMetric is an append-only observability record; never mutated or
// deleted, read only through aggregation.
type OperationMetric struct {
	EpochID         int64
	OperationType   string
	ExecutionTimeMs int64
	RecordedAt      time.Time
	FalsePositive   bool
}

const (
	BatchPending   = "pending"
	BatchProcessed = "processed"
)

var (
	ErrBatchNotFound  = errors.New("batch not found")
	ErrBatchProcessed = errors.New("batch already processed")
)

type RevocationStore interface {
	// InsertRevocations durably records the given revocation facts as one
	// transaction and, in that same transaction, deletes every false-positive
	// observation for those credentials (across all epochs).  Credentials
	// that already have a record are skipped — revocation is idempotent.
	InsertRevocations(ctx context.Context, recs []RevocationRecord) error

	// FindRevocation returns the record for credentialID, or nil if the
	// credential has never been revoked.
	FindRevocation(ctx context.Context, credentialID string) (*RevocationRecord, error)

	// FindRevocations returns the subset of credentialIDs that have a
	// revocation record, keyed by credential ID.
	FindRevocations(ctx context.Context, credentialIDs []string) (map[string]RevocationRecord, error)

	CountRevocations(ctx context.Context) (int64, error)
	RevocationsByEpoch(ctx context.Context) ([]types.EpochCount, error)
}

type FalsePositiveStore interface {
	// Observe records a filter discrepancy for (credentialID, epochID):
	// inserts a fresh observation or increments the existing occurrence
	// count.  Returns the count after the write and whether the observation
	// was newly created.
	Observe(ctx context.Context, credentialID string, epochID int64, at time.Time) (occurrences int64, created bool, err error)

	// FindObservation returns the observation for (credentialID, epochID),
	// or nil if none exists.
	FindObservation(ctx context.Context, credentialID string, epochID int64) (*FalsePositiveObservation, error)

	AllObservations(ctx context.Context) ([]FalsePositiveObservation, error)
}

type BatchStore interface {
	CreateBatch(ctx context.Context, rec BatchRecord) error

	// AddItems appends items to a pending batch and bumps its item count by
	// len(items), atomically: either all items land and the count is updated,
	// or nothing changes.  Returns ErrBatchNotFound or ErrBatchProcessed when
	// the batch cannot accept items.
	AddItems(ctx context.Context, batchID string, items []BatchItemRecord) error

	FindBatch(ctx context.Context, batchID string) (*BatchRecord, error)
	ItemsByBatch(ctx context.Context, batchID string) ([]BatchItemRecord, error)

	// MarkBatchProcessed flips the batch and all of its items to processed.
	// One-way transition.
	MarkBatchProcessed(ctx context.Context, batchID string, at time.Time) error

	BatchStats(ctx context.Context) (types.BatchStats, error)
}

type MetricStore interface {
	RecordMetric(ctx context.Context, m OperationMetric) error

	// MetricsSummary aggregates the metric log per operation type.
	MetricsSummary(ctx context.Context) ([]types.PerformanceMetric, error)
}
