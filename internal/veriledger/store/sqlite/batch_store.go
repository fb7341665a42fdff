package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/veriledger/veriledger/internal/db"
	"github.com/veriledger/veriledger/internal/veriledger/store"
	"github.com/veriledger/veriledger/internal/veriledger/types"
)

type BatchStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewBatchStore(db *sql.DB, writer *dbpkg.Worker) *BatchStore {
	return &BatchStore{db: db, writer: writer}
}

func (s *BatchStore) CreateBatch(ctx context.Context, rec store.BatchRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO revocation_batches(batch_id, created_at_ms, item_count, status)
VALUES (?, ?, 0, ?);
`, rec.BatchID, createdAt.UTC().UnixMilli(), store.BatchPending); err != nil {
			return fmt.Errorf("CreateBatch insert: %w", err)
		}
		return nil
	})
}

func (s *BatchStore) AddItems(ctx context.Context, batchID string, items []store.BatchItemRecord) error {
	if len(items) == 0 {
		return nil
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx, `
SELECT status FROM revocation_batches WHERE batch_id = ?;
`, batchID).Scan(&status)
		if err == sql.ErrNoRows {
			return store.ErrBatchNotFound
		}
		if err != nil {
			return fmt.Errorf("AddItems check batch: %w", err)
		}
		if status == store.BatchProcessed {
			return store.ErrBatchProcessed
		}

		for _, it := range items {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO revocation_batch_items(
  batch_id, credential_id, prime_value, epoch_id, issuer_id, status
) VALUES (?, ?, ?, ?, ?, ?);
`, batchID, it.CredentialID, it.PrimeValue, it.EpochID, it.IssuerID, store.BatchPending); err != nil {
				return fmt.Errorf("AddItems insert item %s: %w", it.CredentialID, err)
			}
		}

		// item_count is monotonic: incremented with every successful append,
		// never decremented.
		if _, err := tx.ExecContext(ctx, `
UPDATE revocation_batches SET item_count = item_count + ? WHERE batch_id = ?;
`, len(items), batchID); err != nil {
			return fmt.Errorf("AddItems bump count: %w", err)
		}

		return nil
	})
}

func (s *BatchStore) FindBatch(ctx context.Context, batchID string) (*store.BatchRecord, error) {
	var (
		rec         store.BatchRecord
		createdMs   int64
		processedMs sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT batch_id, created_at_ms, processed_at_ms, item_count, status
FROM revocation_batches
WHERE batch_id = ?;
`, batchID).Scan(&rec.BatchID, &createdMs, &processedMs, &rec.ItemCount, &rec.Status)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindBatch query: %w", err)
	}

	rec.CreatedAt = time.UnixMilli(createdMs).UTC()
	if processedMs.Valid {
		t := time.UnixMilli(processedMs.Int64).UTC()
		rec.ProcessedAt = &t
	}
	return &rec, nil
}

func (s *BatchStore) ItemsByBatch(ctx context.Context, batchID string) ([]store.BatchItemRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT item_id, batch_id, credential_id, prime_value, epoch_id, issuer_id, status
FROM revocation_batch_items
WHERE batch_id = ?
ORDER BY item_id;
`, batchID)
	if err != nil {
		return nil, fmt.Errorf("ItemsByBatch query: %w", err)
	}
	defer rows.Close()

	var out []store.BatchItemRecord
	for rows.Next() {
		var it store.BatchItemRecord
		if err := rows.Scan(&it.ItemID, &it.BatchID, &it.CredentialID, &it.PrimeValue,
			&it.EpochID, &it.IssuerID, &it.Status); err != nil {
			return nil, fmt.Errorf("ItemsByBatch scan: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ItemsByBatch rows: %w", err)
	}

	return out, nil
}

func (s *BatchStore) MarkBatchProcessed(ctx context.Context, batchID string, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	atMs := at.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE revocation_batches
SET status = ?, processed_at_ms = ?
WHERE batch_id = ? AND status = ?;
`, store.BatchProcessed, atMs, batchID, store.BatchPending)
		if err != nil {
			return fmt.Errorf("MarkBatchProcessed batch: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrBatchNotFound
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE revocation_batch_items SET status = ? WHERE batch_id = ?;
`, store.BatchProcessed, batchID); err != nil {
			return fmt.Errorf("MarkBatchProcessed items: %w", err)
		}

		return nil
	})
}

func (s *BatchStore) BatchStats(ctx context.Context) (types.BatchStats, error) {
	var st types.BatchStats
	err := s.db.QueryRowContext(ctx, `
SELECT
  COUNT(*),
  COALESCE(SUM(CASE WHEN status = 'processed' THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(item_count), 0)
FROM revocation_batches;
`).Scan(&st.TotalBatches, &st.ProcessedBatches, &st.PendingBatches, &st.TotalItems)
	if err != nil {
		return types.BatchStats{}, fmt.Errorf("BatchStats: %w", err)
	}
	return st, nil
}
