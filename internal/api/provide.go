package api

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/samber/do"

	"github.com/courselab/server/internal/config"
	"github.com/courselab/server/internal/migrate"
)

// Provide registers the HTTP service and server.
func Provide(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*Service, error) {
		pool, err := do.Invoke[*pgxpool.Pool](i)
		if err != nil {
			return nil, err
		}
		ledger, err := do.Invoke[*migrate.Ledger](i)
		if err != nil {
			return nil, err
		}
		logger, err := do.Invoke[zerolog.Logger](i)
		if err != nil {
			return nil, err
		}

		return NewService(pool, ledger, logger), nil
	})

	do.Provide(i, func(i *do.Injector) (*Server, error) {
		cfg, err := do.Invoke[config.Config](i)
		if err != nil {
			return nil, err
		}
		logger, err := do.Invoke[zerolog.Logger](i)
		if err != nil {
			return nil, err
		}
		svc, err := do.Invoke[*Service](i)
		if err != nil {
			return nil, err
		}

		return NewServer(cfg, logger, svc), nil
	})
}
