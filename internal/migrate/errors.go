package migrate

import (
	"errors"
	"fmt"
	"time"
)

// ErrLockUnavailable matches lock acquisition timeouts via errors.Is, so
// callers can distinguish "another replica is migrating" from real failures.
var ErrLockUnavailable = errors.New("migration lock unavailable")

// ErrRetryDisabled is returned when a previously failed migration is
// encountered while migrations.retry_failed is false. The failed ledger row
// must be cleared by an operator before startup can proceed.
var ErrRetryDisabled = errors.New("retry of failed migrations is disabled")

// DiscoveryError indicates that the migration catalog could not be resolved
// into an unambiguous ordered sequence.
type DiscoveryError struct {
	Path   string
	Reason string
	Err    error
}

func (e *DiscoveryError) Error() string {
	msg := fmt.Sprintf("migration discovery failed: %s", e.Reason)
	if e.Path != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err)
	}
	return msg
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// LockTimeoutError indicates that the advisory lock could not be acquired
// within the configured timeout.
type LockTimeoutError struct {
	Name    string
	Timeout time.Duration
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("failed to acquire lock %q within %s", e.Name, e.Timeout)
}

func (e *LockTimeoutError) Is(target error) bool {
	return target == ErrLockUnavailable
}

// IntegrityError indicates that a previously applied migration's body has
// changed since it was recorded in the ledger.
type IntegrityError struct {
	Identifier string
	Recorded   string
	Current    string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf(
		"checksum mismatch for applied migration %s: ledger has %s, catalog has %s",
		e.Identifier, e.Recorded, e.Current,
	)
}

// MigrationError indicates that a single migration failed to apply. No later
// migrations are attempted after one of these.
type MigrationError struct {
	Identifier string
	Err        error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %s failed: %s", e.Identifier, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}
