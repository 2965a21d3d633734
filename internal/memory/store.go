// Package memory is the in-memory backing store of the dialect-free executor.
//
// Every table keeps its rows in an arena: a row receives a stable integer
// index when inserted and keeps it until deleted. Query evaluation carries
// these indices alongside projected values so UPDATE and DELETE can address
// the original rows.
//
// Thread-safety: a Store is owned by one executor and is not safe for
// concurrent use.
package memory

import (
	"fmt"
	"iter"

	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/schemadiff"
	"github.com/roach88/typedsql/internal/sqlir"
	"github.com/roach88/typedsql/internal/value"
)

// Store holds the catalog and the rows of every table.
type Store struct {
	catalog []*schema.Table
	tables  map[string]*Table
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{tables: make(map[string]*Table)}
}

// Catalog returns a copy of the current schema snapshot.
func (s *Store) Catalog() []*schema.Table {
	return schema.CloneTables(s.catalog)
}

// Table returns the table with the given SQL name.
func (s *Store) Table(name string) (*Table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("table %q does not exist", name)
	}
	return t, nil
}

// Apply runs a DDL statement. Row data follows the schema change: new
// nullable columns are NULL, new NOT NULL columns get the zero value of their
// kind, dropped columns are removed from every row.
func (s *Store) Apply(stmt sqlir.Statement) error {
	if ai, ok := stmt.(*sqlir.AddIndex); ok && ai.Index.Unique {
		t, err := s.Table(ai.TableName)
		if err != nil {
			return err
		}
		if err := t.checkIndexUnique(ai.Index); err != nil {
			return err
		}
	}

	catalog, err := schemadiff.Apply(s.catalog, stmt)
	if err != nil {
		return err
	}

	switch st := stmt.(type) {
	case *sqlir.CreateTable:
		s.tables[st.Table.Name] = &Table{}
	case *sqlir.DropTable:
		delete(s.tables, st.TableName)
	case *sqlir.AddColumn:
		t := s.tables[st.TableName]
		fill := value.Zero(st.Column.Type.Kind)
		if st.Column.Type.Nullable {
			fill = nil
		}
		for _, r := range t.rows {
			if r != nil {
				r.Set(st.Column.MemberName, fill)
			}
		}
	case *sqlir.DropColumn:
		t := s.tables[st.TableName]
		col := t.schema.ColumnBySqlName(st.ColumnName)
		for i, r := range t.rows {
			if r != nil {
				t.rows[i] = without(r, col.MemberName)
			}
		}
	}

	s.catalog = catalog
	for _, ts := range catalog {
		s.tables[ts.Name].schema = ts
	}
	return nil
}

func without(r *value.Record, member string) *value.Record {
	out := value.NewRecord()
	for _, n := range r.Names() {
		if n == member {
			continue
		}
		v, _ := r.Get(n)
		out.Set(n, v)
	}
	return out
}

// Snapshot is a saved copy of a store.
type Snapshot struct {
	catalog []*schema.Table
	tables  map[string]*Table
}

// Snapshot copies the catalog and all rows.
func (s *Store) Snapshot() *Snapshot {
	tables := make(map[string]*Table, len(s.tables))
	for name, t := range s.tables {
		tables[name] = t.clone()
	}
	return &Snapshot{catalog: schema.CloneTables(s.catalog), tables: tables}
}

// Restore replaces the store contents with a snapshot. The snapshot stays
// usable for further restores.
func (s *Store) Restore(snap *Snapshot) {
	s.catalog = schema.CloneTables(snap.catalog)
	s.tables = make(map[string]*Table, len(snap.tables))
	for name, t := range snap.tables {
		cp := t.clone()
		cp.schema = schema.FindTable(s.catalog, name)
		s.tables[name] = cp
	}
}

// Table is one table's arena.
type Table struct {
	schema   *schema.Table
	rows     []*value.Record
	identity int64
}

// Schema returns the table's current schema.
func (t *Table) Schema() *schema.Table {
	return t.schema
}

func (t *Table) clone() *Table {
	cp := &Table{schema: t.schema, identity: t.identity, rows: make([]*value.Record, len(t.rows))}
	for i, r := range t.rows {
		cp.rows[i] = r.Clone()
	}
	return cp
}

// Len returns the number of live rows.
func (t *Table) Len() int {
	n := 0
	for _, r := range t.rows {
		if r != nil {
			n++
		}
	}
	return n
}

// Rows yields live rows with their arena index, in insertion order.
// The records belong to the store and must not be modified.
func (t *Table) Rows() iter.Seq2[int, *value.Record] {
	return func(yield func(int, *value.Record) bool) {
		for i, r := range t.rows {
			if r == nil {
				continue
			}
			if !yield(i, r) {
				return
			}
		}
	}
}

// Row returns the live row at index i.
func (t *Table) Row(i int) (*value.Record, bool) {
	if i < 0 || i >= len(t.rows) || t.rows[i] == nil {
		return nil, false
	}
	return t.rows[i], true
}
