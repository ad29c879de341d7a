package testutils

import (
	"testing"

	"github.com/rs/zerolog"
)

// Logger returns a zerolog logger for use in tests. It is silent unless the
// test is run with -v, in which case output goes through t.Log.
func Logger(t testing.TB) zerolog.Logger {
	t.Helper()

	if !testing.Verbose() {
		return zerolog.Nop()
	}

	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}
