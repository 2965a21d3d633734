package schema

import (
	"errors"
	"fmt"
)

// ValidateTable checks the per-table invariants: column member names, column
// SQL names, foreign key names and index names are unique, and every key or
// index references existing columns.
func ValidateTable(t *Table) error {
	if t.Name == "" {
		return fmt.Errorf("table %q: name is required", t.ID)
	}
	var errs []error

	members := make(map[string]bool, len(t.Columns))
	sqlNames := make(map[string]bool, len(t.Columns))
	identities := 0
	for _, c := range t.Columns {
		if c.MemberName == "" || c.SqlName == "" {
			errs = append(errs, fmt.Errorf("column with empty name"))
			continue
		}
		if members[c.MemberName] {
			errs = append(errs, fmt.Errorf("duplicate column member %q", c.MemberName))
		}
		if sqlNames[c.SqlName] {
			errs = append(errs, fmt.Errorf("duplicate column %q", c.SqlName))
		}
		members[c.MemberName] = true
		sqlNames[c.SqlName] = true
		if c.AutoIncrement {
			identities++
			if !c.Type.Kind.IsInteger() {
				errs = append(errs, fmt.Errorf("auto-increment column %q must be an integer", c.SqlName))
			}
		}
	}
	if identities > 1 {
		errs = append(errs, fmt.Errorf("at most one auto-increment column allowed"))
	}

	fks := make(map[string]bool, len(t.ForeignKeys))
	for _, fk := range t.ForeignKeys {
		if fks[fk.Name] {
			errs = append(errs, fmt.Errorf("duplicate foreign key %q", fk.Name))
		}
		fks[fk.Name] = true
		if len(fk.Columns) == 0 || len(fk.Columns) != len(fk.ReferenceColumns) {
			errs = append(errs, fmt.Errorf("foreign key %q: column lists must be non-empty and of equal length", fk.Name))
		}
		for _, col := range fk.Columns {
			if !sqlNames[col] {
				errs = append(errs, fmt.Errorf("foreign key %q: unknown column %q", fk.Name, col))
			}
		}
	}

	ixs := make(map[string]bool, len(t.Indices))
	for _, ix := range t.Indices {
		if ixs[ix.Name] {
			errs = append(errs, fmt.Errorf("duplicate index %q", ix.Name))
		}
		ixs[ix.Name] = true
		if len(ix.Columns) == 0 {
			errs = append(errs, fmt.Errorf("index %q: no columns", ix.Name))
		}
		for _, col := range ix.Columns {
			if !sqlNames[col] {
				errs = append(errs, fmt.Errorf("index %q: unknown column %q", ix.Name, col))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("table %q: %w", t.Name, errors.Join(errs...))
	}
	return nil
}

// Validate checks a whole snapshot: every table is valid, table names and
// identities are unique, and every foreign key resolves to a known table.
func Validate(tables []*Table) error {
	var errs []error
	names := make(map[string]bool, len(tables))
	ids := make(map[TableID]bool, len(tables))
	for _, t := range tables {
		if err := ValidateTable(t); err != nil {
			errs = append(errs, err)
		}
		if names[t.Name] {
			errs = append(errs, fmt.Errorf("duplicate table %q", t.Name))
		}
		names[t.Name] = true
		if t.ID != "" {
			if ids[t.ID] {
				errs = append(errs, fmt.Errorf("duplicate table identity %q", t.ID))
			}
			ids[t.ID] = true
		}
	}
	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			if ResolveTable(tables, fk.ReferenceTable) == nil {
				errs = append(errs, fmt.Errorf("table %q: foreign key %q references unknown table %q", t.Name, fk.Name, fk.ReferenceTable))
			}
		}
	}
	return errors.Join(errs...)
}
