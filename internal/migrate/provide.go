package migrate

import (
	"github.com/Masterminds/semver/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/samber/do"
	"github.com/spf13/afero"

	"github.com/courselab/server/internal/config"
	"github.com/courselab/server/internal/version"
)

// MinServerVersion is the oldest PostgreSQL release the migrations are
// written against.
var MinServerVersion = semver.MustParse("13.0.0")

// CatalogExtras lets the host register additional catalog sources (the
// embedded SQL files, code migrations, a configured directory) before the
// runner is built.
type CatalogExtras struct {
	Fs         afero.Fs
	Dir        string
	Migrations []Migration
}

// Provide registers the migration catalog, ledger, lock, and runner.
func Provide(i *do.Injector, extras ...CatalogExtras) {
	provideCatalog(i, extras...)
	provideLedger(i)
	provideLock(i)
	provideRunner(i)
}

func provideCatalog(i *do.Injector, extras ...CatalogExtras) {
	do.Provide(i, func(i *do.Injector) (*Catalog, error) {
		cfg, err := do.Invoke[config.Config](i)
		if err != nil {
			return nil, err
		}

		catalog := NewCatalog()
		for _, extra := range extras {
			if extra.Fs != nil {
				catalog.AddDir(extra.Fs, extra.Dir)
			}
			catalog.Register(extra.Migrations...)
		}
		if cfg.Migrations.Dir != "" {
			catalog.AddDir(afero.NewBasePathFs(afero.NewOsFs(), cfg.Migrations.Dir), ".")
		}
		return catalog, nil
	})
}

func provideLedger(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*Ledger, error) {
		cfg, err := do.Invoke[config.Config](i)
		if err != nil {
			return nil, err
		}
		pool, err := do.Invoke[*pgxpool.Pool](i)
		if err != nil {
			return nil, err
		}

		// failure to get version info is non-fatal
		versionInfo, _ := version.GetInfo()

		return NewLedger(pool, cfg.Migrations.Table, cfg.HostID, versionInfo), nil
	})
}

func provideLock(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*SessionLock, error) {
		cfg, err := do.Invoke[config.Config](i)
		if err != nil {
			return nil, err
		}
		pool, err := do.Invoke[*pgxpool.Pool](i)
		if err != nil {
			return nil, err
		}
		logger, err := do.Invoke[zerolog.Logger](i)
		if err != nil {
			return nil, err
		}

		return NewSessionLock(pool, cfg.Migrations.LockName, cfg.Migrations.LockTimeout(), logger), nil
	})
}

func provideRunner(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*Runner, error) {
		cfg, err := do.Invoke[config.Config](i)
		if err != nil {
			return nil, err
		}
		pool, err := do.Invoke[*pgxpool.Pool](i)
		if err != nil {
			return nil, err
		}
		catalog, err := do.Invoke[*Catalog](i)
		if err != nil {
			return nil, err
		}
		ledger, err := do.Invoke[*Ledger](i)
		if err != nil {
			return nil, err
		}
		lock, err := do.Invoke[*SessionLock](i)
		if err != nil {
			return nil, err
		}
		logger, err := do.Invoke[zerolog.Logger](i)
		if err != nil {
			return nil, err
		}

		return NewRunner(pool, catalog, ledger, lock, logger, Options{
			RetryFailed:      cfg.Migrations.RetryFailed,
			MinServerVersion: MinServerVersion,
		}), nil
	})
}
