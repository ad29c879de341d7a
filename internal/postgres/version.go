package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ServerVersion queries and parses the server's version. Postgres reports
// versions like "16.2" or "16.2 (Debian 16.2-1.pgdg120+2)"; only the leading
// version number is considered.
func ServerVersion(ctx context.Context, conn Executor) (*semver.Version, error) {
	raw, err := Query[string]{SQL: "SHOW server_version"}.Row(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to query server version: %w", err)
	}

	version, err := semver.NewVersion(strings.Fields(raw)[0])
	if err != nil {
		return nil, fmt.Errorf("failed to parse server version %q: %w", raw, err)
	}
	return version, nil
}
