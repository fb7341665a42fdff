package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/veriledger/veriledger/internal/db"
	"github.com/veriledger/veriledger/internal/veriledger/store"
	"github.com/veriledger/veriledger/internal/veriledger/types"
)

type RevocationStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewRevocationStore(db *sql.DB, writer *dbpkg.Worker) *RevocationStore {
	return &RevocationStore{db: db, writer: writer}
}

// InsertRevocations records the given facts in one transaction.  INSERT OR
// IGNORE keeps duplicate revocations as safe no-ops, and the false-positive
// purge rides the same transaction so a credential is never simultaneously
// "revoked" and "known false positive".
func (s *RevocationStore) InsertRevocations(ctx context.Context, recs []store.RevocationRecord) error {
	if len(recs) == 0 {
		return nil
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, rec := range recs {
			revokedAt := rec.RevokedAt
			if revokedAt.IsZero() {
				revokedAt = time.Now().UTC()
			}

			if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO revocations(
  credential_id, revoked_at_ms, epoch_id, issuer_id, prime_value
) VALUES (?, ?, ?, ?, ?);
`,
				rec.CredentialID, revokedAt.UTC().UnixMilli(), rec.EpochID,
				rec.IssuerID, rec.PrimeValue,
			); err != nil {
				return fmt.Errorf("InsertRevocations insert %s: %w", rec.CredentialID, err)
			}

			// The credential has transitioned from "unconfirmed discrepancy"
			// to "confirmed revoked": its false-positive history is stale
			// across every epoch.
			if _, err := tx.ExecContext(ctx, `
DELETE FROM false_positive_observations WHERE credential_id = ?;
`, rec.CredentialID); err != nil {
				return fmt.Errorf("InsertRevocations purge observations %s: %w", rec.CredentialID, err)
			}
		}
		return nil
	})
}

func (s *RevocationStore) FindRevocation(ctx context.Context, credentialID string) (*store.RevocationRecord, error) {
	credentialID = strings.TrimSpace(credentialID)
	if credentialID == "" {
		return nil, nil
	}

	var (
		rec       store.RevocationRecord
		revokedMs int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT credential_id, revoked_at_ms, epoch_id, issuer_id, prime_value
FROM revocations
WHERE credential_id = ?;
`, credentialID).Scan(&rec.CredentialID, &revokedMs, &rec.EpochID, &rec.IssuerID, &rec.PrimeValue)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindRevocation query: %w", err)
	}

	rec.RevokedAt = time.UnixMilli(revokedMs).UTC()
	return &rec, nil
}

func (s *RevocationStore) FindRevocations(ctx context.Context, credentialIDs []string) (map[string]store.RevocationRecord, error) {
	out := make(map[string]store.RevocationRecord, len(credentialIDs))
	if len(credentialIDs) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(credentialIDs)), ",")
	args := make([]any, len(credentialIDs))
	for i, id := range credentialIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT credential_id, revoked_at_ms, epoch_id, issuer_id, prime_value
FROM revocations
WHERE credential_id IN (`+placeholders+`);
`, args...)
	if err != nil {
		return nil, fmt.Errorf("FindRevocations query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec       store.RevocationRecord
			revokedMs int64
		)
		if err := rows.Scan(&rec.CredentialID, &revokedMs, &rec.EpochID, &rec.IssuerID, &rec.PrimeValue); err != nil {
			return nil, fmt.Errorf("FindRevocations scan: %w", err)
		}
		rec.RevokedAt = time.UnixMilli(revokedMs).UTC()
		out[rec.CredentialID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("FindRevocations rows: %w", err)
	}

	return out, nil
}

func (s *RevocationStore) CountRevocations(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM revocations;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountRevocations: %w", err)
	}
	return n, nil
}

func (s *RevocationStore) RevocationsByEpoch(ctx context.Context) ([]types.EpochCount, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT epoch_id, COUNT(*)
FROM revocations
GROUP BY epoch_id
ORDER BY epoch_id;
`)
	if err != nil {
		return nil, fmt.Errorf("RevocationsByEpoch query: %w", err)
	}
	defer rows.Close()

	var out []types.EpochCount
	for rows.Next() {
		var ec types.EpochCount
		if err := rows.Scan(&ec.EpochID, &ec.Count); err != nil {
			return nil, fmt.Errorf("RevocationsByEpoch scan: %w", err)
		}
		out = append(out, ec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("RevocationsByEpoch rows: %w", err)
	}

	return out, nil
}
