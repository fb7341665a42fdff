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

type MetricStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewMetricStore(db *sql.DB, writer *dbpkg.Worker) *MetricStore {
	return &MetricStore{db: db, writer: writer}
}

func (s *MetricStore) RecordMetric(ctx context.Context, m store.OperationMetric) error {
	recordedAt := m.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}

	var fp int
	if m.FalsePositive {
		fp = 1
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO operation_metrics(
  epoch_id, operation_type, execution_time_ms, recorded_at_ms, false_positive
) VALUES (?, ?, ?, ?, ?);
`, m.EpochID, m.OperationType, m.ExecutionTimeMs, recordedAt.UTC().UnixMilli(), fp); err != nil {
			return fmt.Errorf("RecordMetric insert: %w", err)
		}
		return nil
	})
}

func (s *MetricStore) MetricsSummary(ctx context.Context) ([]types.PerformanceMetric, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT operation_type, COUNT(*), AVG(execution_time_ms), COALESCE(SUM(false_positive), 0)
FROM operation_metrics
GROUP BY operation_type
ORDER BY operation_type;
`)
	if err != nil {
		return nil, fmt.Errorf("MetricsSummary query: %w", err)
	}
	defer rows.Close()

	var out []types.PerformanceMetric
	for rows.Next() {
		var (
			pm  types.PerformanceMetric
			avg sql.NullFloat64
		)
		if err := rows.Scan(&pm.OperationType, &pm.Count, &avg, &pm.FalsePositives); err != nil {
			return nil, fmt.Errorf("MetricsSummary scan: %w", err)
		}
		pm.AvgExecutionMs = avg.Float64
		out = append(out, pm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("MetricsSummary rows: %w", err)
	}

	return out, nil
}
