package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/veriledger/veriledger/internal/db"
	"github.com/veriledger/veriledger/internal/veriledger/store"
)

type FalsePositiveStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewFalsePositiveStore(db *sql.DB, writer *dbpkg.Worker) *FalsePositiveStore {
	return &FalsePositiveStore{db: db, writer: writer}
}

func (s *FalsePositiveStore) Observe(ctx context.Context, credentialID string, epochID int64, at time.Time) (int64, bool, error) {
	credentialID = strings.TrimSpace(credentialID)
	if at.IsZero() {
		at = time.Now().UTC()
	}
	atMs := at.UTC().UnixMilli()

	var (
		occurrences int64
		created     bool
	)
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO false_positive_observations(
  credential_id, epoch_id, first_observed_ms, occurrence_count
) VALUES (?, ?, ?, 1)
ON CONFLICT(credential_id, epoch_id) DO UPDATE SET
  occurrence_count = occurrence_count + 1;
`, credentialID, epochID, atMs); err != nil {
			return fmt.Errorf("Observe upsert: %w", err)
		}

		if err := tx.QueryRowContext(ctx, `
SELECT occurrence_count FROM false_positive_observations
WHERE credential_id = ? AND epoch_id = ?;
`, credentialID, epochID).Scan(&occurrences); err != nil {
			return fmt.Errorf("Observe read count: %w", err)
		}

		created = occurrences == 1
		return nil
	})
	if err != nil {
		return 0, false, err
	}

	return occurrences, created, nil
}

func (s *FalsePositiveStore) FindObservation(ctx context.Context, credentialID string, epochID int64) (*store.FalsePositiveObservation, error) {
	var (
		obs     store.FalsePositiveObservation
		firstMs int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT credential_id, epoch_id, first_observed_ms, occurrence_count
FROM false_positive_observations
WHERE credential_id = ? AND epoch_id = ?;
`, credentialID, epochID).Scan(&obs.CredentialID, &obs.EpochID, &firstMs, &obs.Occurrences)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindObservation query: %w", err)
	}

	obs.FirstObserved = time.UnixMilli(firstMs).UTC()
	return &obs, nil
}

func (s *FalsePositiveStore) AllObservations(ctx context.Context) ([]store.FalsePositiveObservation, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT credential_id, epoch_id, first_observed_ms, occurrence_count
FROM false_positive_observations
ORDER BY epoch_id, credential_id;
`)
	if err != nil {
		return nil, fmt.Errorf("AllObservations query: %w", err)
	}
	defer rows.Close()

	var out []store.FalsePositiveObservation
	for rows.Next() {
		var (
			obs     store.FalsePositiveObservation
			firstMs int64
		)
		if err := rows.Scan(&obs.CredentialID, &obs.EpochID, &firstMs, &obs.Occurrences); err != nil {
			return nil, fmt.Errorf("AllObservations scan: %w", err)
		}
		obs.FirstObserved = time.UnixMilli(firstMs).UTC()
		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("AllObservations rows: %w", err)
	}

	return out, nil
}
