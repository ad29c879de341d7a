package migrate_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courselab/server/internal/migrate"
)

func writeMigrations(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()

	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("migrations", 0o755))
	for name, body := range files {
		require.NoError(t, afero.WriteFile(fsys, "migrations/"+name, []byte(body), 0o644))
	}
	return fsys
}

func TestCatalogDiscover(t *testing.T) {
	t.Run("orders by sequence key", func(t *testing.T) {
		fsys := writeMigrations(t, map[string]string{
			"0010_add_index.sql":   "CREATE INDEX foo_idx ON foo (bar);",
			"0002_create_foo.sql":  "CREATE TABLE foo (bar text);",
			"0001_create_init.sql": "CREATE TABLE init (id bigint);",
		})

		catalog := migrate.NewCatalog()
		catalog.AddDir(fsys, "migrations")

		units, err := catalog.Discover()
		require.NoError(t, err)
		require.Len(t, units, 3)

		assert.Equal(t, "0001_create_init", units[0].Identifier())
		assert.Equal(t, "0002_create_foo", units[1].Identifier())
		assert.Equal(t, "0010_add_index", units[2].Identifier())
		assert.Equal(t, int64(1), units[0].Sequence())
		assert.Equal(t, "create_foo", units[1].Name())
	})

	t.Run("merges registered code migrations", func(t *testing.T) {
		fsys := writeMigrations(t, map[string]string{
			"0001_create_foo.sql": "CREATE TABLE foo (bar text);",
			"0003_add_index.sql":  "CREATE INDEX foo_idx ON foo (bar);",
		})

		catalog := migrate.NewCatalog()
		catalog.AddDir(fsys, "migrations")
		catalog.Register(migrate.NewFuncMigration(2, "backfill_foo", "v1",
			func(_ context.Context, _ pgx.Tx) error { return nil },
		))

		units, err := catalog.Discover()
		require.NoError(t, err)
		require.Len(t, units, 3)

		assert.Equal(t, "0001_create_foo", units[0].Identifier())
		assert.Equal(t, "0002_backfill_foo", units[1].Identifier())
		assert.Equal(t, "0003_add_index", units[2].Identifier())
	})

	t.Run("is deterministic", func(t *testing.T) {
		fsys := writeMigrations(t, map[string]string{
			"0001_create_foo.sql": "CREATE TABLE foo (bar text);",
			"0002_add_index.sql":  "CREATE INDEX foo_idx ON foo (bar);",
		})

		catalog := migrate.NewCatalog()
		catalog.AddDir(fsys, "migrations")

		first, err := catalog.Discover()
		require.NoError(t, err)
		second, err := catalog.Discover()
		require.NoError(t, err)

		require.Len(t, second, len(first))
		for i := range first {
			assert.Equal(t, first[i].Identifier(), second[i].Identifier())
			assert.Equal(t, first[i].Checksum(), second[i].Checksum())
		}
	})

	t.Run("ignores non-sql files", func(t *testing.T) {
		fsys := writeMigrations(t, map[string]string{
			"0001_create_foo.sql": "CREATE TABLE foo (bar text);",
			"README.md":           "notes",
		})

		catalog := migrate.NewCatalog()
		catalog.AddDir(fsys, "migrations")

		units, err := catalog.Discover()
		require.NoError(t, err)
		assert.Len(t, units, 1)
	})

	t.Run("duplicate sequence keys", func(t *testing.T) {
		fsys := writeMigrations(t, map[string]string{
			"0001_create_foo.sql": "CREATE TABLE foo (bar text);",
			"0001_create_bar.sql": "CREATE TABLE bar (baz text);",
		})

		catalog := migrate.NewCatalog()
		catalog.AddDir(fsys, "migrations")

		_, err := catalog.Discover()
		var discoveryErr *migrate.DiscoveryError
		require.ErrorAs(t, err, &discoveryErr)
		assert.Contains(t, discoveryErr.Reason, "ambiguous ordering")
		assert.Contains(t, discoveryErr.Reason, "sequence key 1")
	})

	t.Run("duplicate sequence across sources", func(t *testing.T) {
		fsys := writeMigrations(t, map[string]string{
			"0001_create_foo.sql": "CREATE TABLE foo (bar text);",
		})

		catalog := migrate.NewCatalog()
		catalog.AddDir(fsys, "migrations")
		catalog.Register(migrate.NewFuncMigration(1, "backfill_foo", "v1",
			func(_ context.Context, _ pgx.Tx) error { return nil },
		))

		_, err := catalog.Discover()
		var discoveryErr *migrate.DiscoveryError
		assert.ErrorAs(t, err, &discoveryErr)
	})

	t.Run("invalid file name", func(t *testing.T) {
		fsys := writeMigrations(t, map[string]string{
			"create_foo.sql": "CREATE TABLE foo (bar text);",
		})

		catalog := migrate.NewCatalog()
		catalog.AddDir(fsys, "migrations")

		_, err := catalog.Discover()
		var discoveryErr *migrate.DiscoveryError
		require.ErrorAs(t, err, &discoveryErr)
		assert.Contains(t, discoveryErr.Path, "create_foo.sql")
	})

	t.Run("empty body", func(t *testing.T) {
		fsys := writeMigrations(t, map[string]string{
			"0001_create_foo.sql": "   \n",
		})

		catalog := migrate.NewCatalog()
		catalog.AddDir(fsys, "migrations")

		_, err := catalog.Discover()
		var discoveryErr *migrate.DiscoveryError
		require.ErrorAs(t, err, &discoveryErr)
		assert.Contains(t, discoveryErr.Reason, "empty")
	})

	t.Run("missing directory", func(t *testing.T) {
		catalog := migrate.NewCatalog()
		catalog.AddDir(afero.NewMemMapFs(), "does-not-exist")

		_, err := catalog.Discover()
		var discoveryErr *migrate.DiscoveryError
		assert.ErrorAs(t, err, &discoveryErr)
	})

	t.Run("checksum tracks body content", func(t *testing.T) {
		first := migrate.NewSQLMigration(1, "create_foo", "0001_create_foo", "CREATE TABLE foo (bar text);")
		second := migrate.NewSQLMigration(1, "create_foo", "0001_create_foo", "CREATE TABLE foo (baz text);")

		assert.NotEqual(t, first.Checksum(), second.Checksum())
		assert.Equal(t, first.Checksum(), migrate.NewSQLMigration(1, "create_foo", "0001_create_foo", "CREATE TABLE foo (bar text);").Checksum())
	})
}
