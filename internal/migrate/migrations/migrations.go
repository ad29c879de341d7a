// Package migrations holds the migrations that ship with the server: SQL
// files embedded in the binary plus code migrations for changes that plain
// SQL can't express. Migrations _must_ be written so that re-running a failed
// attempt from scratch is safe, and we should prefer non-destructive changes
// in order to allow rollbacks.
package migrations

import (
	"embed"

	"github.com/spf13/afero"

	"github.com/courselab/server/internal/migrate"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

// Dir is the directory within Files containing the embedded SQL migrations.
const Dir = "sql"

// Files returns the embedded SQL migration files as an afero filesystem.
func Files() afero.Fs {
	return afero.FromIOFS{FS: sqlFiles}
}

// All returns the code migrations in chronological order. Sequence keys are
// shared with the SQL files; add new migrations with the next free key.
func All() []migrate.Migration {
	return []migrate.Migration{
		backfillSubmissionChecksums(),
	}
}
