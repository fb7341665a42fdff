package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/veriledger/veriledger/internal/veriledger/store"
	"github.com/veriledger/veriledger/internal/veriledger/types"
)

// Ledger is an in-memory implementation of the store interfaces with the
// same transactional semantics as the SQLite stores.  Intended for tests and
// dev environments.
type Ledger struct {
	mu sync.Mutex

	revocations  map[string]store.RevocationRecord
	observations map[obsKey]*store.FalsePositiveObservation
	batches      map[string]*store.BatchRecord
	items        map[string][]store.BatchItemRecord
	metrics      []store.OperationMetric
	nextItemID   int64

	// FailWrites makes every mutating call return this error.  Test-only
	// hook for exercising fallback paths.
	FailWrites error
}

type obsKey struct {
	credentialID string
	epochID      int64
}

func New() *Ledger {
	return &Ledger{
		revocations:  make(map[string]store.RevocationRecord),
		observations: make(map[obsKey]*store.FalsePositiveObservation),
		batches:      make(map[string]*store.BatchRecord),
		items:        make(map[string][]store.BatchItemRecord),
	}
}

var (
	_ store.RevocationStore    = (*Ledger)(nil)
	_ store.FalsePositiveStore = (*Ledger)(nil)
	_ store.BatchStore         = (*Ledger)(nil)
	_ store.MetricStore        = (*Ledger)(nil)
)

func (l *Ledger) InsertRevocations(_ context.Context, recs []store.RevocationRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailWrites != nil {
		return l.FailWrites
	}

	for _, rec := range recs {
		if _, exists := l.revocations[rec.CredentialID]; exists {
			continue // idempotent
		}
		if rec.RevokedAt.IsZero() {
			rec.RevokedAt = time.Now().UTC()
		}
		l.revocations[rec.CredentialID] = rec

		// Purge stale false-positive history across all epochs.
		for k := range l.observations {
			if k.credentialID == rec.CredentialID {
				delete(l.observations, k)
			}
		}
	}
	return nil
}

func (l *Ledger) FindRevocation(_ context.Context, credentialID string) (*store.RevocationRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.revocations[credentialID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (l *Ledger) FindRevocations(_ context.Context, credentialIDs []string) (map[string]store.RevocationRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]store.RevocationRecord, len(credentialIDs))
	for _, id := range credentialIDs {
		if rec, ok := l.revocations[id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}

func (l *Ledger) CountRevocations(_ context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(len(l.revocations)), nil
}

func (l *Ledger) RevocationsByEpoch(_ context.Context) ([]types.EpochCount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	counts := make(map[int64]int64)
	for _, rec := range l.revocations {
		counts[rec.EpochID]++
	}
	return sortedEpochCounts(counts), nil
}

func (l *Ledger) Observe(_ context.Context, credentialID string, epochID int64, at time.Time) (int64, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailWrites != nil {
		return 0, false, l.FailWrites
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	k := obsKey{credentialID: credentialID, epochID: epochID}
	if obs, ok := l.observations[k]; ok {
		obs.Occurrences++
		return obs.Occurrences, false, nil
	}

	l.observations[k] = &store.FalsePositiveObservation{
		CredentialID:  credentialID,
		EpochID:       epochID,
		FirstObserved: at,
		Occurrences:   1,
	}
	return 1, true, nil
}

func (l *Ledger) FindObservation(_ context.Context, credentialID string, epochID int64) (*store.FalsePositiveObservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	obs, ok := l.observations[obsKey{credentialID: credentialID, epochID: epochID}]
	if !ok {
		return nil, nil
	}
	cp := *obs
	return &cp, nil
}

func (l *Ledger) AllObservations(_ context.Context) ([]store.FalsePositiveObservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]store.FalsePositiveObservation, 0, len(l.observations))
	for _, obs := range l.observations {
		out = append(out, *obs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EpochID != out[j].EpochID {
			return out[i].EpochID < out[j].EpochID
		}
		return out[i].CredentialID < out[j].CredentialID
	})
	return out, nil
}

func (l *Ledger) CreateBatch(_ context.Context, rec store.BatchRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailWrites != nil {
		return l.FailWrites
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.Status = store.BatchPending
	rec.ItemCount = 0
	l.batches[rec.BatchID] = &rec
	return nil
}

func (l *Ledger) AddItems(_ context.Context, batchID string, items []store.BatchItemRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailWrites != nil {
		return l.FailWrites
	}
	if len(items) == 0 {
		return nil
	}

	b, ok := l.batches[batchID]
	if !ok {
		return store.ErrBatchNotFound
	}
	if b.Status == store.BatchProcessed {
		return store.ErrBatchProcessed
	}

	for _, it := range items {
		l.nextItemID++
		it.ItemID = l.nextItemID
		it.BatchID = batchID
		it.Status = store.BatchPending
		l.items[batchID] = append(l.items[batchID], it)
	}
	b.ItemCount += int64(len(items))
	return nil
}

func (l *Ledger) FindBatch(_ context.Context, batchID string) (*store.BatchRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.batches[batchID]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (l *Ledger) ItemsByBatch(_ context.Context, batchID string) ([]store.BatchItemRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]store.BatchItemRecord, len(l.items[batchID]))
	copy(out, l.items[batchID])
	return out, nil
}

func (l *Ledger) MarkBatchProcessed(_ context.Context, batchID string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailWrites != nil {
		return l.FailWrites
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	b, ok := l.batches[batchID]
	if !ok || b.Status != store.BatchPending {
		return store.ErrBatchNotFound
	}
	b.Status = store.BatchProcessed
	b.ProcessedAt = &at

	items := l.items[batchID]
	for i := range items {
		items[i].Status = store.BatchProcessed
	}
	return nil
}

func (l *Ledger) BatchStats(_ context.Context) (types.BatchStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var st types.BatchStats
	for _, b := range l.batches {
		st.TotalBatches++
		st.TotalItems += b.ItemCount
		if b.Status == store.BatchProcessed {
			st.ProcessedBatches++
		} else {
			st.PendingBatches++
		}
	}
	return st, nil
}

func (l *Ledger) RecordMetric(_ context.Context, m store.OperationMetric) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailWrites != nil {
		return l.FailWrites
	}

	if m.RecordedAt.IsZero() {
		m.RecordedAt = time.Now().UTC()
	}
	l.metrics = append(l.metrics, m)
	return nil
}

func (l *Ledger) MetricsSummary(_ context.Context) ([]types.PerformanceMetric, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	byType := make(map[string]*types.PerformanceMetric)
	for _, m := range l.metrics {
		pm, ok := byType[m.OperationType]
		if !ok {
			pm = &types.PerformanceMetric{OperationType: m.OperationType}
			byType[m.OperationType] = pm
		}
		pm.AvgExecutionMs = (pm.AvgExecutionMs*float64(pm.Count) + float64(m.ExecutionTimeMs)) / float64(pm.Count+1)
		pm.Count++
		if m.FalsePositive {
			pm.FalsePositives++
		}
	}

	out := make([]types.PerformanceMetric, 0, len(byType))
	for _, pm := range byType {
		out = append(out, *pm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OperationType < out[j].OperationType })
	return out, nil
}

// Metrics returns a copy of all recorded metrics.  Test-only helper.
func (l *Ledger) Metrics() []store.OperationMetric {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]store.OperationMetric, len(l.metrics))
	copy(out, l.metrics)
	return out
}

func sortedEpochCounts(counts map[int64]int64) []types.EpochCount {
	out := make([]types.EpochCount, 0, len(counts))
	for epoch, n := range counts {
		out = append(out, types.EpochCount{EpochID: epoch, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EpochID < out[j].EpochID })
	return out
}
