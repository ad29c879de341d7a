package testutils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// GoldenTest compares an actual value against a known good copy stored under
// golden_test/ and committed to the repository. Run the test with the
// package's -update flag to regenerate the stored copy.
type GoldenTest[T any] struct {
	// FileExtension defaults to '.json'.
	FileExtension string
	// Marshal defaults to a wrapper around json.MarshalIndent
	Marshal func(v any) ([]byte, error)
	// Unmarshal defaults to json.Unmarshal
	Unmarshal func(data []byte, v any) error
	// Compare defaults to require.Equal
	Compare func(t testing.TB, expected, actual T)
}

func (g *GoldenTest[T]) Run(t testing.TB, actual T, update bool) {
	t.Helper()

	path := g.goldenPath(t)
	if update {
		g.write(t, path, actual)
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		t.Fatalf("golden file %s does not exist. re-run with the update flag to create it.", path)
	}
	require.NoError(t, err)

	unmarshal := json.Unmarshal
	if g.Unmarshal != nil {
		unmarshal = g.Unmarshal
	}

	var expected T
	require.NoError(t, unmarshal(data, &expected))

	if g.Compare != nil {
		g.Compare(t, expected, actual)
		return
	}
	require.Equal(t, expected, actual)
}

func (g *GoldenTest[T]) goldenPath(t testing.TB) string {
	ext := g.FileExtension
	if ext == "" {
		ext = ".json"
	}
	return filepath.Join("golden_test", t.Name()+ext)
}

func (g *GoldenTest[T]) write(t testing.TB, path string, actual T) {
	marshal := func(v any) ([]byte, error) {
		return json.MarshalIndent(v, "", "  ")
	}
	if g.Marshal != nil {
		marshal = g.Marshal
	}

	data, err := marshal(actual)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}
