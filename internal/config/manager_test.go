package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courselab/server/internal/config"
)

func TestManager(t *testing.T) {
	t.Run("defaults with overrides", func(t *testing.T) {
		user := config.Config{
			HostID: "test-host",
			Database: config.Database{
				Host:   "db.internal",
				Port:   5433,
				DBName: "courselab_test",
			},
			Migrations: config.Migrations{
				LockTimeoutSeconds: 30,
				RetryFailed:        true,
			},
		}

		manager := config.NewManager(structSource(t, user))
		require.NoError(t, manager.Load())

		cfg := manager.Config()
		assert.Equal(t, "test-host", cfg.HostID)
		assert.Equal(t, "db.internal", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "courselab_test", cfg.Database.DBName)
		// values absent from the user config fall back to defaults
		assert.Equal(t, "prefer", cfg.Database.SSLMode)
		assert.Equal(t, "schema_migrations", cfg.Migrations.Table)
		assert.Equal(t, 3000, cfg.HTTP.Port)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, 30*time.Second, cfg.Migrations.LockTimeout())
	})

	t.Run("later sources take precedence", func(t *testing.T) {
		first := config.Config{
			HostID: "host-1",
			Migrations: config.Migrations{
				LockTimeoutSeconds: 60,
				RetryFailed:        true,
			},
		}
		second := config.Config{
			HostID: "host-2",
			Migrations: config.Migrations{
				RetryFailed: true,
			},
		}

		manager := config.NewManager(structSource(t, first), structSource(t, second))
		require.NoError(t, manager.Load())

		cfg := manager.Config()
		assert.Equal(t, "host-2", cfg.HostID)
		// untouched by the second source
		assert.Equal(t, time.Minute, cfg.Migrations.LockTimeout())
	})

	t.Run("single-connection pool is rejected", func(t *testing.T) {
		user := config.Config{
			HostID: "test-host",
			Database: config.Database{
				MaxConns: 1,
			},
			Migrations: config.Migrations{
				RetryFailed: true,
			},
		}

		manager := config.NewManager(structSource(t, user))
		assert.ErrorContains(t, manager.Load(), "max_conns must be at least 2")
	})

	t.Run("invalid user-specified config", func(t *testing.T) {
		user := config.Config{
			HostID: "test-host",
			Migrations: config.Migrations{
				LockTimeoutSeconds: -1,
				RetryFailed:        true,
			},
		}

		manager := config.NewManager(structSource(t, user))
		assert.ErrorContains(t, manager.Load(), "lock_timeout_seconds must be positive")
	})
}

func structSource(t *testing.T, cfg config.Config) *config.Source {
	t.Helper()

	source, err := config.NewStructSource(cfg)
	require.NoError(t, err)

	return source
}
