// Package schemadiff computes the DDL that turns one schema snapshot into
// another.
//
// Compare emits statements in a fixed order:
//
//  1. drop every foreign key of every previous table
//  2. drop previous tables missing from next
//  3. create new tables; for kept tables diff indices and columns
//  4. add every foreign key of every next table
//
// Foreign keys are dropped and re-added unconditionally so that no table or
// column statement ever runs while a constraint references it. The Down
// migration of a pair is Compare(next, previous).
package schemadiff

import (
	"fmt"
	"slices"

	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/sqlir"
)

// Compare returns the statements that transform previous into next. Tables
// match by SQL name, columns by SQL name, indices by name.
func Compare(previous, next []*schema.Table) ([]sqlir.Statement, error) {
	var out []sqlir.Statement

	for _, t := range previous {
		for _, fk := range t.ForeignKeys {
			out = append(out, &sqlir.DropForeignKey{TableName: t.Name, Name: fk.Name})
		}
	}

	for _, t := range previous {
		if schema.FindTable(next, t.Name) == nil {
			out = append(out, &sqlir.DropTable{TableName: t.Name})
		}
	}

	for _, t := range next {
		prev := schema.FindTable(previous, t.Name)
		if prev == nil {
			out = append(out, &sqlir.CreateTable{Table: t})
			for _, ix := range t.Indices {
				out = append(out, &sqlir.AddIndex{TableName: t.Name, Index: ix})
			}
			continue
		}
		drops, adds := compareIndices(prev, t)
		out = append(out, drops...)
		out = append(out, compareColumns(prev, t)...)
		out = append(out, adds...)
	}

	for _, t := range next {
		for _, fk := range t.ForeignKeys {
			ref := schema.ResolveTable(next, fk.ReferenceTable)
			if ref == nil {
				return nil, fmt.Errorf("table %q: foreign key %q references unknown table %q", t.Name, fk.Name, fk.ReferenceTable)
			}
			out = append(out, &sqlir.AddForeignKey{TableName: t.Name, ForeignKey: fk, ReferenceTableName: ref.Name})
		}
	}
	return out, nil
}

// Migration returns the up and down statement lists between two snapshots.
func Migration(previous, next []*schema.Table) (up, down []sqlir.Statement, err error) {
	up, err = Compare(previous, next)
	if err != nil {
		return nil, nil, fmt.Errorf("compare up: %w", err)
	}
	down, err = Compare(next, previous)
	if err != nil {
		return nil, nil, fmt.Errorf("compare down: %w", err)
	}
	return up, down, nil
}

// compareColumns never alters a column in place: a changed column is dropped
// and added again.
func compareColumns(prev, next *schema.Table) []sqlir.Statement {
	var out []sqlir.Statement
	for _, c := range prev.Columns {
		nc := next.ColumnBySqlName(c.SqlName)
		if nc == nil || ColumnChanged(c, nc) {
			out = append(out, &sqlir.DropColumn{TableName: next.Name, ColumnName: c.SqlName})
		}
	}
	for _, c := range next.Columns {
		pc := prev.ColumnBySqlName(c.SqlName)
		if pc == nil || ColumnChanged(pc, c) {
			out = append(out, &sqlir.AddColumn{TableName: next.Name, Column: c})
		}
	}
	return out
}

// ColumnChanged reports whether two columns with the same SQL name differ in
// storage: type, nullability, key flags or the size hints relevant to the kind.
func ColumnChanged(a, b *schema.Column) bool {
	if a.Type != b.Type || a.PrimaryKey != b.PrimaryKey || a.AutoIncrement != b.AutoIncrement {
		return true
	}
	switch a.Type.Kind {
	case schema.String:
		return a.Info.StringLength != b.Info.StringLength || a.Info.NVarChar != b.Info.NVarChar
	case schema.Decimal:
		ap, as := a.Info.DecimalSize()
		bp, bs := b.Info.DecimalSize()
		return ap != bp || as != bs
	}
	return false
}

// compareIndices returns the index drops, which run before column changes,
// and the index adds, which run after them.
func compareIndices(prev, next *schema.Table) (drops, adds []sqlir.Statement) {
	for _, ix := range prev.Indices {
		nix := next.Index(ix.Name)
		if nix == nil || indexChanged(ix, nix) {
			drops = append(drops, &sqlir.DropIndex{TableName: next.Name, Name: ix.Name})
		}
	}
	for _, ix := range next.Indices {
		pix := prev.Index(ix.Name)
		if pix == nil || indexChanged(pix, ix) {
			adds = append(adds, &sqlir.AddIndex{TableName: next.Name, Index: ix})
		}
	}
	return drops, adds
}

func indexChanged(a, b *schema.Index) bool {
	return a.Unique != b.Unique || !slices.Equal(a.Columns, b.Columns)
}
