package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SeedDev inserts a handful of revocation facts so the stats endpoints have
// something to show in a fresh dev environment.  Idempotent.
func SeedDev(ctx context.Context, db *sql.DB) error {
	now := time.Now().UTC().UnixMilli()

	seed := []struct {
		credentialID string
		epochID      int64
		primeValue   string
	}{
		{"dev-cred-001", 1, "104729"},
		{"dev-cred-002", 1, "104743"},
		{"dev-cred-003", 2, "104759"},
	}

	for _, s := range seed {
		if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO revocations(credential_id, revoked_at_ms, epoch_id, issuer_id, prime_value)
VALUES (?, ?, ?, 'dev-issuer', ?);`,
			s.credentialID, now, s.epochID, s.primeValue,
		); err != nil {
			return fmt.Errorf("seed revocation %s: %w", s.credentialID, err)
		}
	}

	return nil
}
