package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/do"

	"github.com/courselab/server/internal/config"
)

func Provide(i *do.Injector) {
	providePool(i)
}

func providePool(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*pgxpool.Pool, error) {
		cfg, err := do.Invoke[config.Config](i)
		if err != nil {
			return nil, err
		}
		return NewPool(context.Background(), cfg)
	})
}
