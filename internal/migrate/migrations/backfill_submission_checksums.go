package migrations

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/courselab/server/internal/migrate"
)

// backfillSubmissionChecksums fills payload_checksum for submissions created
// before the column existed. Checksums are computed over the raw payload
// bytes the same way the submission handler computes them on write.
func backfillSubmissionChecksums() migrate.Migration {
	return migrate.NewFuncMigration(4, "backfill_submission_checksums", "v1",
		func(ctx context.Context, tx pgx.Tx) error {
			rows, err := tx.Query(ctx, `SELECT id, payload FROM submissions WHERE payload_checksum IS NULL`)
			if err != nil {
				return fmt.Errorf("failed to query submissions: %w", err)
			}

			type pendingRow struct {
				id       int64
				checksum string
			}
			var pending []pendingRow
			for rows.Next() {
				var id int64
				var payload []byte
				if err := rows.Scan(&id, &payload); err != nil {
					rows.Close()
					return fmt.Errorf("failed to scan submission: %w", err)
				}
				sum := sha256.Sum256(payload)
				pending = append(pending, pendingRow{id: id, checksum: hex.EncodeToString(sum[:])})
			}
			rows.Close()
			if err := rows.Err(); err != nil {
				return fmt.Errorf("failed to read submissions: %w", err)
			}

			for _, row := range pending {
				_, err := tx.Exec(ctx,
					`UPDATE submissions SET payload_checksum = $1 WHERE id = $2`,
					row.checksum, row.id,
				)
				if err != nil {
					return fmt.Errorf("failed to update submission %d: %w", row.id, err)
				}
			}

			return nil
		})
}
