package migrate

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// fileNamePattern matches migration file names like "0001_create_courses.sql"
// or "20240131093000-backfill_titles.sql". The numeric prefix is the sequence
// key; the remainder is the name.
var fileNamePattern = regexp.MustCompile(`^(\d+)[_-](.+)\.sql$`)

type catalogDir struct {
	fsys afero.Fs
	dir  string
}

// Catalog discovers migrations from one or more directories of SQL files plus
// any registered code migrations, and resolves them into a single strictly
// ordered sequence. Discovery has no side effects and is deterministic for an
// unchanged source.
type Catalog struct {
	dirs       []catalogDir
	registered []Migration
}

func NewCatalog() *Catalog {
	return &Catalog{}
}

// AddDir adds a directory of .sql migration files to the catalog source.
func (c *Catalog) AddDir(fsys afero.Fs, dir string) {
	c.dirs = append(c.dirs, catalogDir{fsys: fsys, dir: dir})
}

// Register adds code migrations to the catalog source.
func (c *Catalog) Register(migrations ...Migration) {
	c.registered = append(c.registered, migrations...)
}

// Discover returns every migration ordered by ascending sequence key. It
// fails with a *DiscoveryError if a file name does not follow the naming
// convention, a body cannot be read or is empty, or two migrations resolve to
// the same sequence key.
func (c *Catalog) Discover() ([]Migration, error) {
	var units []Migration
	for _, d := range c.dirs {
		discovered, err := discoverDir(d.fsys, d.dir)
		if err != nil {
			return nil, err
		}
		units = append(units, discovered...)
	}
	units = append(units, c.registered...)

	sort.SliceStable(units, func(i, j int) bool {
		return units[i].Sequence() < units[j].Sequence()
	})

	for i := 1; i < len(units); i++ {
		if units[i].Sequence() == units[i-1].Sequence() {
			return nil, &DiscoveryError{
				Reason: fmt.Sprintf(
					"ambiguous ordering: %s and %s share sequence key %d",
					units[i-1].Identifier(), units[i].Identifier(), units[i].Sequence(),
				),
			}
		}
	}

	return units, nil
}

func discoverDir(fsys afero.Fs, dir string) ([]Migration, error) {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, &DiscoveryError{Path: dir, Reason: "failed to read migration directory", Err: err}
	}

	var units []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		filePath := path.Join(dir, entry.Name())
		match := fileNamePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			return nil, &DiscoveryError{
				Path:   filePath,
				Reason: "file name does not match <sequence>_<name>.sql",
			}
		}

		sequence, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil {
			return nil, &DiscoveryError{Path: filePath, Reason: "invalid sequence prefix", Err: err}
		}

		body, err := afero.ReadFile(fsys, filePath)
		if err != nil {
			return nil, &DiscoveryError{Path: filePath, Reason: "failed to read migration body", Err: err}
		}
		if strings.TrimSpace(string(body)) == "" {
			return nil, &DiscoveryError{Path: filePath, Reason: "migration body is empty"}
		}

		identifier := strings.TrimSuffix(entry.Name(), ".sql")
		units = append(units, NewSQLMigration(sequence, match[2], identifier, string(body)))
	}

	return units, nil
}
