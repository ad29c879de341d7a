package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/courselab/server/internal/postgres"
	"github.com/courselab/server/internal/version"
)

// AppliedMigration is one ledger row. A row with a non-nil LastError records
// a failed attempt and does not count as applied.
type AppliedMigration struct {
	Identifier string         `json:"identifier"`
	Sequence   int64          `json:"sequence"`
	Name       string         `json:"name"`
	Checksum   string         `json:"checksum"`
	AppliedAt  time.Time      `json:"applied_at"`
	DurationMs int64          `json:"duration_ms"`
	AppliedBy  string         `json:"applied_by,omitempty"`
	LastError  *FailureReport `json:"last_error,omitempty"`
}

// Ledger is the durable record of applied migrations, stored in the target
// database itself. It is the single source of truth for "already done";
// any I/O error against it is fatal to the run.
type Ledger struct {
	db        postgres.Executor
	table     string
	appliedBy string
	version   *version.Info
}

// NewLedger creates a ledger over the named table. appliedBy identifies the
// replica writing ledger rows; versionInfo may be nil.
func NewLedger(db postgres.Executor, table, appliedBy string, versionInfo *version.Info) *Ledger {
	return &Ledger{
		db:        db,
		table:     table,
		appliedBy: appliedBy,
		version:   versionInfo,
	}
}

func (l *Ledger) tableName() string {
	return pgx.Identifier{l.table}.Sanitize()
}

// EnsureSchema creates the ledger table and its indexes if they do not
// exist. Safe to call repeatedly and from concurrent replicas; the advisory
// lock serializes the callers that matter.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	table := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id text PRIMARY KEY,
			sequence bigint NOT NULL,
			name text NOT NULL,
			checksum text NOT NULL,
			applied_at timestamptz NOT NULL DEFAULT now(),
			duration_ms bigint NOT NULL DEFAULT 0,
			applied_by text,
			applied_by_version jsonb,
			last_error jsonb
		)`, l.tableName())
	index := fmt.Sprintf(`
		CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (sequence)`,
		pgx.Identifier{l.table + "_sequence_key"}.Sanitize(), l.tableName())

	stmts := postgres.Statements{
		postgres.Statement{SQL: table},
		postgres.Statement{SQL: index},
	}
	if err := stmts.Exec(ctx, l.db); err != nil {
		return fmt.Errorf("failed to ensure ledger table %s: %w", l.table, err)
	}
	return nil
}

// ListApplied returns a snapshot of every ledger row ordered by sequence key.
func (l *Ledger) ListApplied(ctx context.Context) ([]AppliedMigration, error) {
	sql := fmt.Sprintf(`
		SELECT id, sequence, name, checksum, applied_at, duration_ms, applied_by, last_error
		FROM %s
		ORDER BY sequence ASC`, l.tableName())

	rows, err := l.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to list applied migrations: %w", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var row AppliedMigration
		var appliedBy *string
		var lastError []byte
		err := rows.Scan(
			&row.Identifier,
			&row.Sequence,
			&row.Name,
			&row.Checksum,
			&row.AppliedAt,
			&row.DurationMs,
			&appliedBy,
			&lastError,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		if appliedBy != nil {
			row.AppliedBy = *appliedBy
		}
		if len(lastError) > 0 {
			var report FailureReport
			if err := json.Unmarshal(lastError, &report); err != nil {
				return nil, fmt.Errorf("failed to decode last_error for %s: %w", row.Identifier, err)
			}
			row.LastError = &report
		}
		applied = append(applied, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger rows: %w", err)
	}

	return applied, nil
}

// RecordSuccess upserts the migration's ledger row. It must be executed on
// the migration's own transaction so the row commits atomically with the
// migration's effects; a retried migration's previous failure is cleared.
func (l *Ledger) RecordSuccess(ctx context.Context, tx pgx.Tx, m Migration, duration time.Duration) error {
	versionJSON, err := l.versionJSON()
	if err != nil {
		return err
	}

	sql := fmt.Sprintf(`
		INSERT INTO %s (id, sequence, name, checksum, applied_at, duration_ms, applied_by, applied_by_version, last_error)
		VALUES (@id, @sequence, @name, @checksum, now(), @duration_ms, @applied_by, @applied_by_version, NULL)
		ON CONFLICT (id) DO UPDATE SET
			checksum = EXCLUDED.checksum,
			applied_at = EXCLUDED.applied_at,
			duration_ms = EXCLUDED.duration_ms,
			applied_by = EXCLUDED.applied_by,
			applied_by_version = EXCLUDED.applied_by_version,
			last_error = NULL`, l.tableName())

	stmt := postgres.Statement{
		SQL: sql,
		Args: pgx.NamedArgs{
			"id":                 m.Identifier(),
			"sequence":           m.Sequence(),
			"name":               m.Name(),
			"checksum":           m.Checksum(),
			"duration_ms":        duration.Milliseconds(),
			"applied_by":         l.appliedBy,
			"applied_by_version": versionJSON,
		},
	}
	if err := stmt.Exec(ctx, tx); err != nil {
		// the upsert conflicts on id, so a unique violation can only come
		// from the sequence index: a different identifier already owns this
		// sequence key, i.e. a previously applied migration was renamed
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf(
				"ledger already has a different migration recorded for sequence %d (was %s renamed?): %w",
				m.Sequence(), m.Identifier(), err,
			)
		}
		return fmt.Errorf("failed to record success for %s: %w", m.Identifier(), err)
	}
	return nil
}

// RecordFailure upserts a failure row for the migration. It runs on its own
// connection, outside the rolled-back migration transaction, and is invoked
// on a best-effort basis.
func (l *Ledger) RecordFailure(ctx context.Context, m Migration, report *FailureReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode failure report for %s: %w", m.Identifier(), err)
	}
	versionJSON, err := l.versionJSON()
	if err != nil {
		return err
	}

	sql := fmt.Sprintf(`
		INSERT INTO %s (id, sequence, name, checksum, applied_at, duration_ms, applied_by, applied_by_version, last_error)
		VALUES (@id, @sequence, @name, @checksum, now(), 0, @applied_by, @applied_by_version, @last_error)
		ON CONFLICT (id) DO UPDATE SET
			applied_at = EXCLUDED.applied_at,
			applied_by = EXCLUDED.applied_by,
			applied_by_version = EXCLUDED.applied_by_version,
			last_error = EXCLUDED.last_error`, l.tableName())

	stmt := postgres.Statement{
		SQL: sql,
		Args: pgx.NamedArgs{
			"id":                 m.Identifier(),
			"sequence":           m.Sequence(),
			"name":               m.Name(),
			"checksum":           m.Checksum(),
			"applied_by":         l.appliedBy,
			"applied_by_version": versionJSON,
			"last_error":         reportJSON,
		},
	}
	if err := stmt.Exec(ctx, l.db); err != nil {
		return fmt.Errorf("failed to record failure for %s: %w", m.Identifier(), err)
	}
	return nil
}

func (l *Ledger) versionJSON() ([]byte, error) {
	if l.version == nil {
		return nil, nil
	}
	raw, err := json.Marshal(l.version)
	if err != nil {
		return nil, fmt.Errorf("failed to encode version info: %w", err)
	}
	return raw, nil
}
