package schema

import "slices"

// TableID is the identity of a declared table. It is stable across renames of
// the table's SQL name.
type TableID string

// Column describes one table field.
type Column struct {
	MemberName    string
	SqlName       string
	Type          Type
	PrimaryKey    bool
	AutoIncrement bool
	Info          TypeInfo
}

// Clone returns a copy of c.
func (c *Column) Clone() *Column {
	cp := *c
	return &cp
}

// ForeignKey links source columns to columns of another table.
// Column lists hold SQL names.
type ForeignKey struct {
	Name             string
	Columns          []string
	ReferenceTable   TableID
	ReferenceColumns []string
}

// Clone returns a deep copy of fk.
func (fk *ForeignKey) Clone() *ForeignKey {
	return &ForeignKey{
		Name:             fk.Name,
		Columns:          slices.Clone(fk.Columns),
		ReferenceTable:   fk.ReferenceTable,
		ReferenceColumns: slices.Clone(fk.ReferenceColumns),
	}
}

// Index describes a (possibly unique) index over SQL column names.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Clone returns a deep copy of ix.
func (ix *Index) Clone() *Index {
	return &Index{Name: ix.Name, Columns: slices.Clone(ix.Columns), Unique: ix.Unique}
}

// Table is the unit of a schema snapshot.
type Table struct {
	ID          TableID
	Name        string
	Columns     []*Column
	ForeignKeys []*ForeignKey
	Indices     []*Index
}

// Column returns the column with the given member name, or nil.
func (t *Table) Column(member string) *Column {
	for _, c := range t.Columns {
		if c.MemberName == member {
			return c
		}
	}
	return nil
}

// ColumnBySqlName returns the column with the given SQL name, or nil.
func (t *Table) ColumnBySqlName(name string) *Column {
	for _, c := range t.Columns {
		if c.SqlName == name {
			return c
		}
	}
	return nil
}

// PrimaryKey returns the primary key columns in declaration order.
func (t *Table) PrimaryKey() []*Column {
	var pk []*Column
	for _, c := range t.Columns {
		if c.PrimaryKey {
			pk = append(pk, c)
		}
	}
	return pk
}

// IdentityColumn returns the auto-increment column, or nil.
func (t *Table) IdentityColumn() *Column {
	for _, c := range t.Columns {
		if c.AutoIncrement {
			return c
		}
	}
	return nil
}

// ForeignKey returns the foreign key with the given name, or nil.
func (t *Table) ForeignKey(name string) *ForeignKey {
	for _, fk := range t.ForeignKeys {
		if fk.Name == name {
			return fk
		}
	}
	return nil
}

// Index returns the index with the given name, or nil.
func (t *Table) Index(name string) *Index {
	for _, ix := range t.Indices {
		if ix.Name == name {
			return ix
		}
	}
	return nil
}

// Clone returns a deep copy of t.
func (t *Table) Clone() *Table {
	cp := &Table{ID: t.ID, Name: t.Name}
	for _, c := range t.Columns {
		cp.Columns = append(cp.Columns, c.Clone())
	}
	for _, fk := range t.ForeignKeys {
		cp.ForeignKeys = append(cp.ForeignKeys, fk.Clone())
	}
	for _, ix := range t.Indices {
		cp.Indices = append(cp.Indices, ix.Clone())
	}
	return cp
}

// FindTable returns the table named name in tables, or nil.
func FindTable(tables []*Table, name string) *Table {
	for _, t := range tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// ResolveTable returns the table with identity id in tables, or nil.
func ResolveTable(tables []*Table, id TableID) *Table {
	for _, t := range tables {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// CloneTables deep-copies a snapshot.
func CloneTables(tables []*Table) []*Table {
	out := make([]*Table, 0, len(tables))
	for _, t := range tables {
		out = append(out, t.Clone())
	}
	return out
}
