package memory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/value"
)

// ErrConstraint is wrapped by NOT NULL, primary key and unique index
// violations.
var ErrConstraint = errors.New("constraint violation")

// Insert adds a row from values keyed by column member name and returns its
// arena index and the identity value assigned, if the table has an identity
// column. Missing nullable columns are NULL; a missing identity column is
// assigned the next counter value.
func (t *Table) Insert(values *value.Record) (int, any, error) {
	row := value.NewRecord()
	var identity any
	for _, c := range t.schema.Columns {
		v, _ := values.Get(c.MemberName)
		if c.AutoIncrement && v == nil {
			t.identity++
			v = t.identity
			identity = v
		}
		cv, err := coerce(c, v)
		if err != nil {
			return 0, nil, err
		}
		if c.AutoIncrement && cv != nil {
			if n, ok := cv.(int64); ok && n > t.identity {
				t.identity = n
			}
			identity = cv
		}
		row.Set(c.MemberName, cv)
	}
	for _, n := range values.Names() {
		if t.schema.Column(n) == nil {
			return 0, nil, fmt.Errorf("table %q has no column %q", t.schema.Name, n)
		}
	}
	if err := t.checkUnique(row, -1); err != nil {
		return 0, nil, err
	}
	t.rows = append(t.rows, row)
	return len(t.rows) - 1, identity, nil
}

// Update assigns the fields of changes to the row at index i.
func (t *Table) Update(i int, changes *value.Record) error {
	cur, ok := t.Row(i)
	if !ok {
		return fmt.Errorf("table %q: no row %d", t.schema.Name, i)
	}
	row := cur.Clone()
	for _, n := range changes.Names() {
		c := t.schema.Column(n)
		if c == nil {
			return fmt.Errorf("table %q has no column %q", t.schema.Name, n)
		}
		v, _ := changes.Get(n)
		cv, err := coerce(c, v)
		if err != nil {
			return err
		}
		row.Set(n, cv)
	}
	if err := t.checkUnique(row, i); err != nil {
		return err
	}
	t.rows[i] = row
	return nil
}

// Delete removes the row at index i. The index is never reused.
func (t *Table) Delete(i int) error {
	if _, ok := t.Row(i); !ok {
		return fmt.Errorf("table %q: no row %d", t.schema.Name, i)
	}
	t.rows[i] = nil
	return nil
}

func coerce(c *schema.Column, v any) (any, error) {
	if v == nil {
		if !c.Type.Nullable {
			return nil, fmt.Errorf("%w: column %q cannot be NULL", ErrConstraint, c.SqlName)
		}
		return nil, nil
	}
	cv, err := value.Coerce(v, c.Type.Kind)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", c.SqlName, err)
	}
	return cv, nil
}

// checkUnique enforces the primary key and unique indices against every live
// row except skip. Keys containing NULL never conflict.
func (t *Table) checkUnique(row *value.Record, skip int) error {
	var keys [][]*schema.Column
	if pk := t.schema.PrimaryKey(); len(pk) > 0 {
		keys = append(keys, pk)
	}
	for _, ix := range t.schema.Indices {
		if ix.Unique {
			keys = append(keys, t.indexColumns(ix))
		}
	}
	for _, cols := range keys {
		k, ok := tupleKey(row, cols)
		if !ok || len(cols) == 0 {
			continue
		}
		for i, other := range t.rows {
			if other == nil || i == skip {
				continue
			}
			if key, has := tupleKey(other, cols); has && key == k {
				return fmt.Errorf("%w: duplicate key %s in table %q", ErrConstraint, k, t.schema.Name)
			}
		}
	}
	return nil
}

func (t *Table) checkIndexUnique(ix *schema.Index) error {
	cols := t.indexColumns(ix)
	seen := make(map[string]bool)
	for _, r := range t.rows {
		if r == nil {
			continue
		}
		k, ok := tupleKey(r, cols)
		if !ok || len(cols) == 0 {
			continue
		}
		if seen[k] {
			return fmt.Errorf("%w: index %q: duplicate key %s", ErrConstraint, ix.Name, k)
		}
		seen[k] = true
	}
	return nil
}

func (t *Table) indexColumns(ix *schema.Index) []*schema.Column {
	cols := make([]*schema.Column, 0, len(ix.Columns))
	for _, name := range ix.Columns {
		if c := t.schema.ColumnBySqlName(name); c != nil {
			cols = append(cols, c)
		}
	}
	return cols
}

func tupleKey(r *value.Record, cols []*schema.Column) (string, bool) {
	var b strings.Builder
	for _, c := range cols {
		v, _ := r.Get(c.MemberName)
		if v == nil {
			return "", false
		}
		b.WriteString(value.Key(v))
	}
	return b.String(), true
}
