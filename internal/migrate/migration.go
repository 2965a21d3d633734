// Package migrate sequences schema migrations against an executor.
//
// Migrations are registered explicitly and ordered by name. The applied
// history lives in one table of the target database and must always be a
// prefix of the registered list; any divergence is a ConsistencyError and is
// never resolved automatically.
package migrate

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/schemadiff"
	"github.com/roach88/typedsql/internal/sqlir"
)

// HistoryTable is the SQL name of the applied-migration history.
const HistoryTable = "_typedsql_migrations"

// History returns the schema of the history table.
func History() *schema.Table {
	return schema.NewTable("typedsql.migrations", HistoryTable).
		Column("Name", schema.String, schema.PrimaryKey(), schema.Length(255)).
		Column("Version", schema.String, schema.Length(64)).
		MustBuild()
}

// Migration is one named step of a schema's history.
type Migration struct {
	Name string
	Up   []sqlir.Statement
	Down []sqlir.Statement
	// Snapshot is the schema after Up. It may be nil for hand-written
	// migrations.
	Snapshot []*schema.Table
}

// Version returns the fingerprint of the snapshot, or "" without one.
func (m Migration) Version() (string, error) {
	if m.Snapshot == nil {
		return "", nil
	}
	return schema.Fingerprint(m.Snapshot)
}

// FromSnapshots builds one migration per snapshot. Each Up is the diff from
// the previous snapshot (empty for the first) and each Down its inverse.
func FromSnapshots(names []string, snapshots [][]*schema.Table) ([]Migration, error) {
	if len(names) != len(snapshots) {
		return nil, fmt.Errorf("%d names for %d snapshots", len(names), len(snapshots))
	}
	out := make([]Migration, 0, len(names))
	var prev []*schema.Table
	for i, name := range names {
		next := snapshots[i]
		if err := schema.Validate(next); err != nil {
			return nil, fmt.Errorf("migration %q: %w", name, err)
		}
		up, down, err := schemadiff.Migration(prev, next)
		if err != nil {
			return nil, fmt.Errorf("migration %q: %w", name, err)
		}
		out = append(out, Migration{Name: name, Up: up, Down: down, Snapshot: next})
		prev = next
	}
	return out, nil
}

// sortMigrations orders migrations by name and rejects duplicate or empty
// names.
func sortMigrations(ms []Migration) ([]Migration, error) {
	out := slices.Clone(ms)
	slices.SortStableFunc(out, func(a, b Migration) int { return strings.Compare(a.Name, b.Name) })
	for i, m := range out {
		if m.Name == "" {
			return nil, errors.New("migration with empty name")
		}
		if i > 0 && out[i-1].Name == m.Name {
			return nil, fmt.Errorf("duplicate migration %q", m.Name)
		}
	}
	return out, nil
}

// ConsistencyError reports applied history that is not a prefix of the
// registered migrations.
type ConsistencyError struct {
	Index    int
	Applied  string
	Expected string
}

func (e *ConsistencyError) Error() string {
	if e.Expected == "" {
		return fmt.Sprintf("have applied %q at position %d, expected no migration", e.Applied, e.Index)
	}
	return fmt.Sprintf("have applied %q, expected %q", e.Applied, e.Expected)
}

// IsConsistencyError reports whether err wraps a ConsistencyError.
func IsConsistencyError(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}

// Record is one row of the history table.
type Record struct {
	Name    string
	Version string
}

// check verifies that applied is a prefix of ms.
func check(ms []Migration, applied []Record) error {
	for i, a := range applied {
		if i >= len(ms) {
			return &ConsistencyError{Index: i, Applied: a.Name}
		}
		if ms[i].Name != a.Name {
			return &ConsistencyError{Index: i, Applied: a.Name, Expected: ms[i].Name}
		}
	}
	return nil
}
