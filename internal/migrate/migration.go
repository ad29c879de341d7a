package migrate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Migration is one discrete, ordered schema or data change. Implementations
// are immutable once discovered: the sequence key orders migrations, the
// identifier names them in the ledger, and the checksum detects silently
// edited bodies on later runs.
type Migration interface {
	// Sequence returns the migration's ordering key. Keys must be unique
	// across the whole catalog.
	Sequence() int64
	// Name returns the human-readable portion of the identity.
	Name() string
	// Identifier returns the stable identity recorded in the ledger,
	// e.g. "0002_create_assessments".
	Identifier() string
	// Checksum returns a stable content fingerprint.
	Checksum() string
	// Apply executes the migration inside the supplied transaction. The
	// transaction is rolled back in full if Apply returns an error.
	Apply(ctx context.Context, tx pgx.Tx) error
}

// SQLMigration is a migration discovered from a .sql file. The whole body is
// executed as a single script; pgx sends it via the simple protocol, so it
// may contain multiple statements.
type SQLMigration struct {
	sequence   int64
	name       string
	identifier string
	body       string
}

func NewSQLMigration(sequence int64, name, identifier, body string) *SQLMigration {
	return &SQLMigration{
		sequence:   sequence,
		name:       name,
		identifier: identifier,
		body:       body,
	}
}

func (m *SQLMigration) Sequence() int64 {
	return m.sequence
}

func (m *SQLMigration) Name() string {
	return m.name
}

func (m *SQLMigration) Identifier() string {
	return m.identifier
}

func (m *SQLMigration) Checksum() string {
	sum := sha256.Sum256([]byte(m.body))
	return hex.EncodeToString(sum[:])
}

func (m *SQLMigration) Apply(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, m.body)
	return err
}

// ApplyFunc is the body of a code migration.
type ApplyFunc func(ctx context.Context, tx pgx.Tx) error

// FuncMigration is a migration implemented in Go, for data changes that
// can't be expressed as plain SQL. Since code can't be checksummed the way a
// SQL body can, the author declares a fingerprint and must bump it whenever
// the migration's effect changes.
type FuncMigration struct {
	sequence    int64
	name        string
	fingerprint string
	fn          ApplyFunc
}

func NewFuncMigration(sequence int64, name, fingerprint string, fn ApplyFunc) *FuncMigration {
	return &FuncMigration{
		sequence:    sequence,
		name:        name,
		fingerprint: fingerprint,
		fn:          fn,
	}
}

func (m *FuncMigration) Sequence() int64 {
	return m.sequence
}

func (m *FuncMigration) Name() string {
	return m.name
}

func (m *FuncMigration) Identifier() string {
	return fmt.Sprintf("%04d_%s", m.sequence, m.name)
}

func (m *FuncMigration) Checksum() string {
	sum := sha256.Sum256([]byte(m.Identifier() + "\n" + m.fingerprint))
	return hex.EncodeToString(sum[:])
}

func (m *FuncMigration) Apply(ctx context.Context, tx pgx.Tx) error {
	return m.fn(ctx, tx)
}
