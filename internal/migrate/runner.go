package migrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/courselab/server/internal/postgres"
)

// DB is the database surface the runner needs: plain statement execution for
// preflight checks plus transaction control for applying migrations.
// *pgxpool.Pool satisfies it.
type DB interface {
	postgres.Executor
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CatalogSource yields the ordered migration sequence.
type CatalogSource interface {
	Discover() ([]Migration, error)
}

// LedgerStore is the durable applied-migrations record.
type LedgerStore interface {
	EnsureSchema(ctx context.Context) error
	ListApplied(ctx context.Context) ([]AppliedMigration, error)
	RecordSuccess(ctx context.Context, tx pgx.Tx, m Migration, duration time.Duration) error
	RecordFailure(ctx context.Context, m Migration, report *FailureReport) error
}

// Locker provides cluster-wide mutual exclusion for the run.
type Locker interface {
	Acquire(ctx context.Context) (*LockHandle, error)
	Release(ctx context.Context, handle *LockHandle) error
}

// Options tune runner behavior beyond its collaborators.
type Options struct {
	// RetryFailed re-attempts migrations whose ledger rows record a failure.
	// When false such rows abort the run until an operator clears them.
	RetryFailed bool
	// MinServerVersion, when set, aborts the run if the database server is
	// older than this version.
	MinServerVersion *semver.Version
}

// Runner orchestrates one migration pass: acquire the lock, diff the catalog
// against the ledger, apply each pending migration in its own transaction,
// release the lock. It is the only component with side effects beyond reads;
// the host process must not serve traffic until Run returns nil.
type Runner struct {
	db      DB
	catalog CatalogSource
	ledger  LedgerStore
	lock    Locker
	logger  zerolog.Logger
	opts    Options
}

func NewRunner(
	db DB,
	catalog CatalogSource,
	ledger LedgerStore,
	lock Locker,
	logger zerolog.Logger,
	opts Options,
) *Runner {
	return &Runner{
		db:      db,
		catalog: catalog,
		ledger:  ledger,
		lock:    lock,
		logger: logger.With().
			Str("component", "migration_runner").
			Logger(),
		opts: opts,
	}
}

// Run applies all pending migrations and blocks until they are done or one
// fails. It is safe to call from any number of replicas concurrently: exactly
// one applies each pending migration, the rest wait on the lock and then find
// nothing left to do. Even a run with no pending migrations acquires and
// releases the lock, which is cheap and bounded. The one exception is an
// empty catalog: with no migrations at all there is nothing to serialize, so
// the run returns before locking.
func (r *Runner) Run(ctx context.Context) error {
	runID := uuid.NewString()
	logger := r.logger.With().Str("run_id", runID).Logger()

	units, err := r.catalog.Discover()
	if err != nil {
		return err
	}
	if len(units) == 0 {
		logger.Info().Msg("catalog is empty, nothing to migrate")
		return nil
	}

	if r.opts.MinServerVersion != nil {
		if err := r.checkServerVersion(ctx); err != nil {
			return err
		}
	}

	handle, err := r.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := r.lock.Release(context.WithoutCancel(ctx), handle); err != nil {
			logger.Err(err).Msg("failed to release migration lock")
		}
	}()

	if err := r.ledger.EnsureSchema(ctx); err != nil {
		return err
	}

	applied, err := r.ledger.ListApplied(ctx)
	if err != nil {
		return err
	}

	pending, err := r.diff(units, applied)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		logger.Info().Int("applied", len(applied)).Msg("schema is up to date, no migrations to run")
		return nil
	}

	logger.Info().
		Int("pending", len(pending)).
		Str("first", pending[0].Identifier()).
		Str("last", pending[len(pending)-1].Identifier()).
		Msg("applying pending migrations")

	for _, unit := range pending {
		if err := r.applyUnit(ctx, logger, unit); err != nil {
			return err
		}
	}

	logger.Info().Int("applied", len(pending)).Msg("migrations complete")
	return nil
}

// diff validates recorded checksums and returns the migrations that still
// need to run, in ascending sequence order. Integrity is checked for the
// whole catalog before anything is applied, so a divergent history aborts the
// run without side effects.
func (r *Runner) diff(units []Migration, applied []AppliedMigration) ([]Migration, error) {
	byID := make(map[string]AppliedMigration, len(applied))
	for _, row := range applied {
		byID[row.Identifier] = row
	}

	var pending []Migration
	for _, unit := range units {
		row, ok := byID[unit.Identifier()]
		if !ok {
			pending = append(pending, unit)
			continue
		}
		if row.LastError != nil {
			// A failed attempt's checksum is not authoritative: the body may
			// legitimately have been fixed since.
			if !r.opts.RetryFailed {
				return nil, fmt.Errorf(
					"migration %s failed on a previous run (%s): %w",
					unit.Identifier(), row.LastError.Message, ErrRetryDisabled,
				)
			}
			pending = append(pending, unit)
			continue
		}
		if row.Checksum != unit.Checksum() {
			return nil, &IntegrityError{
				Identifier: unit.Identifier(),
				Recorded:   row.Checksum,
				Current:    unit.Checksum(),
			}
		}
	}

	return pending, nil
}

// applyUnit executes one migration in its own transaction, writing the ledger
// success row as the transaction's last statement. A crash at any point
// leaves either no trace or a fully applied, fully recorded migration.
func (r *Runner) applyUnit(ctx context.Context, logger zerolog.Logger, unit Migration) error {
	identifier := unit.Identifier()
	logger.Info().Str("migration", identifier).Msg("applying migration")
	start := time.Now()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for %s: %w", identifier, err)
	}

	if err := unit.Apply(ctx, tx); err != nil {
		return r.abortUnit(ctx, logger, tx, unit, fmt.Errorf("apply failed: %w", err))
	}

	if err := r.ledger.RecordSuccess(ctx, tx, unit, time.Since(start)); err != nil {
		return r.abortUnit(ctx, logger, tx, unit, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return r.abortUnit(ctx, logger, tx, unit, fmt.Errorf("commit failed: %w", err))
	}

	logger.Info().
		Str("migration", identifier).
		Dur("duration", time.Since(start)).
		Msg("migration applied")

	return nil
}

// abortUnit rolls the unit's transaction back, records the failure outside it
// on a best-effort basis, and returns the terminal *MigrationError.
func (r *Runner) abortUnit(
	ctx context.Context,
	logger zerolog.Logger,
	tx pgx.Tx,
	unit Migration,
	cause error,
) error {
	// Rollback after a failed commit returns pgx.ErrTxClosed, which is fine.
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		logger.Err(err).Str("migration", unit.Identifier()).Msg("failed to roll back migration transaction")
	}

	runErr := &MigrationError{Identifier: unit.Identifier(), Err: cause}

	report := NormalizeFailure(runErr)
	if err := r.ledger.RecordFailure(context.WithoutCancel(ctx), unit, report); err != nil {
		logger.Err(err).Str("migration", unit.Identifier()).Msg("failed to record migration failure")
	}

	logger.Err(cause).
		Str("migration", unit.Identifier()).
		Msg("migration failed, stopping run")

	return runErr
}

func (r *Runner) checkServerVersion(ctx context.Context) error {
	current, err := postgres.ServerVersion(ctx, r.db)
	if err != nil {
		return err
	}
	if current.LessThan(r.opts.MinServerVersion) {
		return fmt.Errorf(
			"database server version %s is older than the minimum supported %s",
			current, r.opts.MinServerVersion,
		)
	}
	return nil
}
