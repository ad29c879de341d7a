package migrate

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/courselab/server/internal/postgres"
)

const defaultRetryInterval = 500 * time.Millisecond

// LockKey hashes a lock name into the bigint keyspace used by Postgres
// advisory locks. Every replica pointed at the same database derives the same
// key from the same configured name.
func LockKey(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return int64(h.Sum64())
}

// LockHandle represents ownership of the advisory lock. It pins the acquiring
// session's connection: the lock lives exactly as long as that session, so a
// crashed holder releases it without any cleanup protocol.
type LockHandle struct {
	Name       string
	Key        int64
	AcquiredAt time.Time
	conn       *pgxpool.Conn
}

// SessionLock is a cluster-wide mutual exclusion primitive built on
// pg_try_advisory_lock. Mutual exclusion is enforced by the database, not by
// application state.
type SessionLock struct {
	pool          *pgxpool.Pool
	name          string
	timeout       time.Duration
	retryInterval time.Duration
	logger        zerolog.Logger
}

func NewSessionLock(pool *pgxpool.Pool, name string, timeout time.Duration, logger zerolog.Logger) *SessionLock {
	return &SessionLock{
		pool:          pool,
		name:          name,
		timeout:       timeout,
		retryInterval: defaultRetryInterval,
		logger: logger.With().
			Str("component", "session_lock").
			Str("lock_name", name).
			Logger(),
	}
}

// Acquire checks a connection out of the pool and polls the advisory lock
// until it is granted or the timeout elapses. On timeout it returns a
// *LockTimeoutError, matchable with errors.Is(err, ErrLockUnavailable);
// contention is expected whenever replicas race at startup.
func (l *SessionLock) Acquire(ctx context.Context) (*LockHandle, error) {
	key := LockKey(l.name)

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock connection: %w", err)
	}

	locked, err := pollUntil(ctx, l.timeout, l.retryInterval, tryAdvisoryLock(conn, key))
	if err != nil {
		conn.Release()
		return nil, err
	}
	if !locked {
		conn.Release()
		l.logger.Warn().Dur("timeout", l.timeout).Msg("timed out waiting for migration lock")
		return nil, &LockTimeoutError{Name: l.name, Timeout: l.timeout}
	}

	l.logger.Debug().Int64("lock_key", key).Msg("acquired migration lock")

	return &LockHandle{
		Name:       l.name,
		Key:        key,
		AcquiredAt: time.Now(),
		conn:       conn,
	}, nil
}

// Release unlocks the advisory lock and returns the pinned connection to the
// pool. Safe to call exactly once per handle; the session would release the
// lock on its own if the process died instead.
func (l *SessionLock) Release(ctx context.Context, handle *LockHandle) error {
	defer handle.conn.Release()

	var unlocked bool
	err := handle.conn.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", handle.Key).Scan(&unlocked)
	if err != nil {
		return fmt.Errorf("failed to release advisory lock: %w", err)
	}
	if !unlocked {
		// The session didn't hold the lock. Should be unreachable while
		// handles are acquired only through Acquire.
		l.logger.Warn().Int64("lock_key", handle.Key).Msg("advisory lock was not held at release")
	}

	l.logger.Debug().
		Dur("held_for", time.Since(handle.AcquiredAt)).
		Msg("released migration lock")

	return nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// tryAdvisoryLock returns a poll function for the advisory lock. A session
// with a server-side lock_timeout raises lock_not_available instead of
// returning false; both mean "not granted yet" and keep the poll going.
func tryAdvisoryLock(conn rowQuerier, key int64) func(ctx context.Context) (bool, error) {
	return func(ctx context.Context) (bool, error) {
		var locked bool
		err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&locked)
		if postgres.IsLockNotAvailable(err) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("failed to poll advisory lock: %w", err)
		}
		return locked, nil
	}
}

// pollUntil invokes try until it reports success, the timeout elapses, or
// parent is cancelled. A timeout returns (false, nil) so the caller can
// surface its own typed error; parent cancellation and try errors surface
// directly.
func pollUntil(
	parent context.Context,
	timeout time.Duration,
	interval time.Duration,
	try func(ctx context.Context) (bool, error),
) (bool, error) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := try(ctx)
		if err != nil {
			if parent.Err() != nil {
				return false, parent.Err()
			}
			if ctx.Err() != nil {
				return false, nil
			}
			return false, err
		}
		if ok {
			return true, nil
		}

		select {
		case <-ctx.Done():
			if parent.Err() != nil {
				return false, parent.Err()
			}
			return false, nil
		case <-ticker.C:
		}
	}
}
