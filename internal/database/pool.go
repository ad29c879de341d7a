package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courselab/server/internal/config"
	"github.com/courselab/server/internal/postgres"
)

// NewPool opens a connection pool to the application database. The pool is
// shared by the migration runner and the API; the runner additionally checks
// out dedicated connections for session-scoped advisory locks.
func NewPool(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	dsn := &postgres.DSN{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		DBName:      cfg.Database.DBName,
		SSLMode:     cfg.Database.SSLMode,
		SSLRootCert: cfg.Database.SSLRootCert,
	}

	conf, err := pgxpool.ParseConfig(dsn.String())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if cfg.Database.MaxConns > 0 {
		conf.MaxConns = cfg.Database.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return pool, nil
}
