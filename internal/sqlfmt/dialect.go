package sqlfmt

import (
	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/sqlir"
)

type variableStyle int

const (
	variablesNative variableStyle = iota
	variablesTable
)

type identityCapture int

const (
	// captureNative reads the identity with a dialect function.
	captureNative identityCapture = iota

	// captureReturning wraps the INSERT in a CTE updating VariablesTable.
	captureReturning

	// captureRowID updates VariablesTable with last_insert_rowid().
	captureRowID
)

// dialect supplies the dialect-specific pieces of the shared renderer.
type dialect interface {
	name() string
	quote(ident string) string

	// marker returns the marker of the n-th parameter of a command, 1-based.
	// With reuseMarkers n counts distinct names.
	marker(n int, name string) string
	namedParams() bool
	reuseMarkers() bool

	literalBool(b bool) string
	emptyBinary() string
	null(t schema.Type) (string, error)

	// boolValues reports whether boolean columns and predicates are
	// interchangeable. SQL Server needs conversions both ways.
	boolValues() bool

	columnType(c *schema.Column) (string, error)
	castType(t schema.Type) (string, error)
	identityDefinition() string

	// window renders OFFSET/LIMIT. ordered tells whether ORDER BY was emitted.
	window(q *sqlir.Query, ordered bool) string

	datePart(f sqlir.Func, arg string) string
	concat(args []string) string
	coalesce(a, b string) string
	divide(k schema.Kind, l, r string) string
	lastIdentity(t schema.Type) (string, error)

	variables() variableStyle
	variable(name string) string
	capture() identityCapture
	singleBatch() bool

	insertDefault(table string) string
	addColumn() string
	update(r *render, st *sqlir.Update) (string, error)
	delete(r *render, st *sqlir.Delete) (string, error)
	dropForeignKey(table, name string) string
	dropIndex(table, name string) string
	foreignKeys() bool
}

// base holds the defaults shared by most dialects.
type base struct{}

func (base) namedParams() bool  { return false }
func (base) reuseMarkers() bool { return false }
func (base) boolValues() bool   { return true }
func (base) emptyBinary() string {
	return "X''"
}
func (base) null(schema.Type) (string, error) { return "NULL", nil }
func (base) literalBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}
func (base) coalesce(a, b string) string {
	return "COALESCE(" + a + ", " + b + ")"
}
func (base) divide(_ schema.Kind, l, r string) string {
	return l + " / " + r
}
func (base) variables() variableStyle    { return variablesNative }
func (base) variable(name string) string { return "@" + name }
func (base) capture() identityCapture    { return captureNative }
func (base) singleBatch() bool           { return false }
func (base) addColumn() string           { return "ADD COLUMN" }
func (base) foreignKeys() bool           { return true }

func (base) insertDefault(table string) string {
	return "INSERT INTO " + table + " DEFAULT VALUES"
}

func (base) dropIndex(_, name string) string {
	return "DROP INDEX " + name
}

func (base) dropForeignKey(table, name string) string {
	return "ALTER TABLE " + table + " DROP CONSTRAINT " + name
}

// limitOffset renders LIMIT/OFFSET; unbounded is the LIMIT used when only an
// offset is set.
func limitOffset(q *sqlir.Query, unbounded string) string {
	var s string
	switch {
	case q.Limit != nil:
		s = " LIMIT " + itoa(*q.Limit)
	case q.Offset != nil && unbounded != "":
		s = " LIMIT " + unbounded
	}
	if q.Offset != nil {
		s += " OFFSET " + itoa(*q.Offset)
	}
	return s
}

func unsupportedType(d dialect, t schema.Type) error {
	return &sqlir.UnsupportedError{Construct: "column type", Name: t.Unwrap().String(), Dialect: d.name()}
}
