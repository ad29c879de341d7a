package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/samber/do"

	"github.com/courselab/server/internal/api"
	"github.com/courselab/server/internal/config"
	"github.com/courselab/server/internal/migrate"
)

type App struct {
	cfg    config.Config
	logger zerolog.Logger
	pool   *pgxpool.Pool
	runner *migrate.Runner
	api    *api.Server
}

func NewApp(i *do.Injector) (*App, error) {
	cfg, err := do.Invoke[config.Config](i)
	if err != nil {
		return nil, err
	}
	logger, err := do.Invoke[zerolog.Logger](i)
	if err != nil {
		return nil, err
	}
	pool, err := do.Invoke[*pgxpool.Pool](i)
	if err != nil {
		return nil, err
	}
	runner, err := do.Invoke[*migrate.Runner](i)
	if err != nil {
		return nil, err
	}
	apiServer, err := do.Invoke[*api.Server](i)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		runner: runner,
		api:    apiServer,
	}, nil
}

// Run applies pending migrations and then serves HTTP until ctx is
// cancelled. The server never starts if migrations fail.
func (a *App) Run(ctx context.Context) error {
	if err := a.runMigrations(ctx); err != nil {
		return err
	}

	a.api.Start()

	select {
	case <-ctx.Done():
		a.logger.Info().Msg("got shutdown signal")
		return a.Shutdown(nil)
	case err := <-a.api.Error():
		return a.Shutdown(err)
	}
}

func (a *App) runMigrations(ctx context.Context) error {
	if err := a.runner.Run(ctx); err != nil {
		if report := migrate.NormalizeFailure(err); report != nil {
			a.logger.Error().
				Interface("failure", report).
				Msg("migrations failed")
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (a *App) Shutdown(reason error) error {
	errs := []error{reason}

	if a.api != nil {
		a.logger.Info().Msg("stopping api")
		errs = append(errs, a.api.Shutdown())
	}
	if a.pool != nil {
		a.logger.Info().Msg("closing database pool")
		a.pool.Close()
	}

	return errors.Join(errs...)
}
