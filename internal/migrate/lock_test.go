package migrate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockKey(t *testing.T) {
	t.Run("is deterministic", func(t *testing.T) {
		assert.Equal(t, LockKey("courselab:migrations"), LockKey("courselab:migrations"))
	})

	t.Run("differs across names", func(t *testing.T) {
		assert.NotEqual(t, LockKey("courselab:migrations"), LockKey("courselab:sessions"))
	})
}

func TestPollUntil(t *testing.T) {
	t.Run("returns on first success", func(t *testing.T) {
		calls := 0
		ok, err := pollUntil(context.Background(), time.Second, time.Millisecond,
			func(_ context.Context) (bool, error) {
				calls++
				return true, nil
			})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries until success", func(t *testing.T) {
		calls := 0
		ok, err := pollUntil(context.Background(), time.Second, time.Millisecond,
			func(_ context.Context) (bool, error) {
				calls++
				return calls >= 3, nil
			})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 3, calls)
	})

	t.Run("times out without error", func(t *testing.T) {
		ok, err := pollUntil(context.Background(), 20*time.Millisecond, 5*time.Millisecond,
			func(_ context.Context) (bool, error) {
				return false, nil
			})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("surfaces try errors", func(t *testing.T) {
		tryErr := errors.New("connection reset")
		_, err := pollUntil(context.Background(), time.Second, time.Millisecond,
			func(_ context.Context) (bool, error) {
				return false, tryErr
			})
		assert.ErrorIs(t, err, tryErr)
	})

	t.Run("surfaces parent cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := pollUntil(ctx, time.Second, time.Millisecond,
			func(ctx context.Context) (bool, error) {
				return false, ctx.Err()
			})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

type fakeLockRow struct {
	locked bool
	err    error
}

func (r *fakeLockRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*bool) = r.locked
	return nil
}

type fakeLockConn struct {
	row fakeLockRow
}

func (c *fakeLockConn) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return &c.row
}

func TestTryAdvisoryLock(t *testing.T) {
	t.Run("lock granted", func(t *testing.T) {
		try := tryAdvisoryLock(&fakeLockConn{row: fakeLockRow{locked: true}}, 42)

		ok, err := try(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("lock held elsewhere", func(t *testing.T) {
		try := tryAdvisoryLock(&fakeLockConn{row: fakeLockRow{locked: false}}, 42)

		ok, err := try(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("server lock_timeout keeps the poll going", func(t *testing.T) {
		row := fakeLockRow{err: &pgconn.PgError{Code: pgerrcode.LockNotAvailable}}
		try := tryAdvisoryLock(&fakeLockConn{row: row}, 42)

		ok, err := try(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("transport errors surface", func(t *testing.T) {
		row := fakeLockRow{err: errors.New("connection reset")}
		try := tryAdvisoryLock(&fakeLockConn{row: row}, 42)

		_, err := try(context.Background())
		assert.ErrorContains(t, err, "connection reset")
	})
}

func TestLockTimeoutError(t *testing.T) {
	err := &LockTimeoutError{Name: "courselab:migrations", Timeout: 30 * time.Second}

	assert.ErrorIs(t, err, ErrLockUnavailable)
	assert.Contains(t, err.Error(), "courselab:migrations")
	assert.Contains(t, err.Error(), "30s")
}
