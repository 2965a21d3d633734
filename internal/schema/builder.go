package schema

import (
	"errors"
	"fmt"
)

// ColumnOption configures a column declared through TableBuilder.
type ColumnOption func(*Column)

// SqlName overrides the SQL name of a column (defaults to the member name).
func SqlName(name string) ColumnOption {
	return func(c *Column) { c.SqlName = name }
}

// Nullable marks the column nullable.
func Nullable() ColumnOption {
	return func(c *Column) { c.Type.Nullable = true }
}

// PrimaryKey marks the column as part of the primary key.
func PrimaryKey() ColumnOption {
	return func(c *Column) { c.PrimaryKey = true }
}

// AutoIncrement marks the column as the identity column.
func AutoIncrement() ColumnOption {
	return func(c *Column) { c.AutoIncrement = true }
}

// Length sets the maximum length of a string column.
func Length(n int) ColumnOption {
	return func(c *Column) { c.Info.StringLength = n }
}

// NVarChar marks a string column as unicode.
func NVarChar() ColumnOption {
	return func(c *Column) { c.Info.NVarChar = true }
}

// Precision sets precision and scale of a decimal column.
func Precision(precision, scale int) ColumnOption {
	return func(c *Column) {
		c.Info.Precision = precision
		c.Info.Scale = scale
	}
}

// TableBuilder declares a table explicitly, replacing runtime type introspection.
//
// Example:
//
//	products := schema.NewTable("Product", "products").
//	    Column("Id", schema.Int32, schema.PrimaryKey(), schema.AutoIncrement()).
//	    Column("Name", schema.String, schema.Length(100)).
//	    Column("UnitId", schema.Int32).
//	    ForeignKey("FK_products_units", []string{"UnitId"}, "Unit", []string{"Id"}).
//	    MustBuild()
type TableBuilder struct {
	table *Table
	errs  []error
}

// NewTable starts a table declaration.
func NewTable(id TableID, name string) *TableBuilder {
	return &TableBuilder{table: &Table{ID: id, Name: name}}
}

// Column adds a column.
func (b *TableBuilder) Column(member string, kind Kind, opts ...ColumnOption) *TableBuilder {
	c := &Column{MemberName: member, SqlName: member, Type: Of(kind)}
	for _, opt := range opts {
		opt(c)
	}
	if kind == Record || kind == KindInvalid {
		b.errs = append(b.errs, fmt.Errorf("column %q: invalid kind %s", member, kind))
	}
	b.table.Columns = append(b.table.Columns, c)
	return b
}

// ForeignKey adds a foreign key over SQL column names.
func (b *TableBuilder) ForeignKey(name string, columns []string, ref TableID, refColumns []string) *TableBuilder {
	b.table.ForeignKeys = append(b.table.ForeignKeys, &ForeignKey{
		Name:             name,
		Columns:          columns,
		ReferenceTable:   ref,
		ReferenceColumns: refColumns,
	})
	return b
}

// Index adds an index over SQL column names.
func (b *TableBuilder) Index(name string, unique bool, columns ...string) *TableBuilder {
	b.table.Indices = append(b.table.Indices, &Index{Name: name, Columns: columns, Unique: unique})
	return b
}

// Build validates and returns the table.
func (b *TableBuilder) Build() (*Table, error) {
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("table %q: %w", b.table.Name, errors.Join(b.errs...))
	}
	if err := ValidateTable(b.table); err != nil {
		return nil, err
	}
	return b.table, nil
}

// MustBuild is like Build but panics on error. Intended for static declarations.
func (b *TableBuilder) MustBuild() *Table {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}
