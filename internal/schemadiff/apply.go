package schemadiff

import (
	"fmt"
	"slices"

	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/sqlir"
)

// Apply interprets DDL statements against a snapshot and returns the
// resulting snapshot. The input is not modified. Non-DDL statements are
// rejected.
//
// CreateTable yields the table without indices or foreign keys; those arrive
// through their own statements, exactly as Compare emits them.
func Apply(tables []*schema.Table, stmts ...sqlir.Statement) ([]*schema.Table, error) {
	out := schema.CloneTables(tables)
	for i, s := range stmts {
		var err error
		out, err = applyOne(out, s)
		if err != nil {
			return nil, fmt.Errorf("statement %d (%s): %w", i, sqlir.TypeName(s), err)
		}
	}
	return out, nil
}

func applyOne(tables []*schema.Table, s sqlir.Statement) ([]*schema.Table, error) {
	switch st := s.(type) {
	case *sqlir.CreateTable:
		if schema.FindTable(tables, st.Table.Name) != nil {
			return nil, fmt.Errorf("table %q already exists", st.Table.Name)
		}
		t := st.Table.Clone()
		t.ForeignKeys = nil
		t.Indices = nil
		return append(tables, t), nil

	case *sqlir.DropTable:
		i := slices.IndexFunc(tables, func(t *schema.Table) bool { return t.Name == st.TableName })
		if i < 0 {
			return nil, fmt.Errorf("table %q does not exist", st.TableName)
		}
		return slices.Delete(tables, i, i+1), nil

	case *sqlir.AddColumn:
		t, err := find(tables, st.TableName)
		if err != nil {
			return nil, err
		}
		if t.ColumnBySqlName(st.Column.SqlName) != nil {
			return nil, fmt.Errorf("table %q: column %q already exists", t.Name, st.Column.SqlName)
		}
		t.Columns = append(t.Columns, st.Column.Clone())
		return tables, nil

	case *sqlir.DropColumn:
		t, err := find(tables, st.TableName)
		if err != nil {
			return nil, err
		}
		i := slices.IndexFunc(t.Columns, func(c *schema.Column) bool { return c.SqlName == st.ColumnName })
		if i < 0 {
			return nil, fmt.Errorf("table %q: column %q does not exist", t.Name, st.ColumnName)
		}
		t.Columns = slices.Delete(t.Columns, i, i+1)
		return tables, nil

	case *sqlir.AddForeignKey:
		t, err := find(tables, st.TableName)
		if err != nil {
			return nil, err
		}
		if t.ForeignKey(st.ForeignKey.Name) != nil {
			return nil, fmt.Errorf("table %q: foreign key %q already exists", t.Name, st.ForeignKey.Name)
		}
		t.ForeignKeys = append(t.ForeignKeys, st.ForeignKey.Clone())
		return tables, nil

	case *sqlir.DropForeignKey:
		t, err := find(tables, st.TableName)
		if err != nil {
			return nil, err
		}
		i := slices.IndexFunc(t.ForeignKeys, func(fk *schema.ForeignKey) bool { return fk.Name == st.Name })
		if i < 0 {
			return nil, fmt.Errorf("table %q: foreign key %q does not exist", t.Name, st.Name)
		}
		t.ForeignKeys = slices.Delete(t.ForeignKeys, i, i+1)
		return tables, nil

	case *sqlir.AddIndex:
		t, err := find(tables, st.TableName)
		if err != nil {
			return nil, err
		}
		if t.Index(st.Index.Name) != nil {
			return nil, fmt.Errorf("table %q: index %q already exists", t.Name, st.Index.Name)
		}
		t.Indices = append(t.Indices, st.Index.Clone())
		return tables, nil

	case *sqlir.DropIndex:
		t, err := find(tables, st.TableName)
		if err != nil {
			return nil, err
		}
		i := slices.IndexFunc(t.Indices, func(ix *schema.Index) bool { return ix.Name == st.Name })
		if i < 0 {
			return nil, fmt.Errorf("table %q: index %q does not exist", t.Name, st.Name)
		}
		t.Indices = slices.Delete(t.Indices, i, i+1)
		return tables, nil
	}
	return nil, sqlir.Unsupported("statement", sqlir.TypeName(s))
}

func find(tables []*schema.Table, name string) (*schema.Table, error) {
	t := schema.FindTable(tables, name)
	if t == nil {
		return nil, fmt.Errorf("table %q does not exist", name)
	}
	return t, nil
}
