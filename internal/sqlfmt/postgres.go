package sqlfmt

import (
	"fmt"
	"strings"

	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/sqlir"
)

type postgres struct{ base }

func (postgres) name() string                         { return PostgresName }
func (postgres) quote(ident string) string            { return quoteWith(`"`, `"`, ident) }
func (postgres) marker(n int, _ string) string        { return "$" + itoa(n) }
func (postgres) reuseMarkers() bool                   { return true }
func (postgres) emptyBinary() string                  { return "''::bytea" }
func (postgres) identityDefinition() string           { return " GENERATED BY DEFAULT AS IDENTITY" }
func (postgres) variables() variableStyle             { return variablesTable }
func (postgres) capture() identityCapture             { return captureReturning }
func (postgres) window(q *sqlir.Query, _ bool) string { return limitOffset(q, "") }

func (d postgres) variable(name string) string {
	return "(SELECT " + d.quote(name) + " FROM " + d.quote(VariablesTable) + ")"
}

// null types the literal; an untyped NULL is text to the planner.
func (d postgres) null(t schema.Type) (string, error) {
	ct, err := d.castType(t)
	if err != nil {
		return "", err
	}
	return "CAST(NULL AS " + ct + ")", nil
}

func (d postgres) columnType(c *schema.Column) (string, error) {
	switch c.Type.Kind {
	case schema.String:
		if c.Info.StringLength > 0 {
			return fmt.Sprintf("VARCHAR(%d)", c.Info.StringLength), nil
		}
	case schema.Decimal:
		p, s := c.Info.DecimalSize()
		return fmt.Sprintf("NUMERIC(%d,%d)", p, s), nil
	}
	return d.castType(c.Type)
}

func (d postgres) castType(t schema.Type) (string, error) {
	switch t.Kind {
	case schema.Bool:
		return "BOOLEAN", nil
	case schema.Int8, schema.Int16:
		return "SMALLINT", nil
	case schema.Int32:
		return "INTEGER", nil
	case schema.Int64:
		return "BIGINT", nil
	case schema.Float32:
		return "REAL", nil
	case schema.Float64:
		return "DOUBLE PRECISION", nil
	case schema.Decimal:
		return fmt.Sprintf("NUMERIC(%d,%d)", schema.DefaultDecimalPrecision, schema.DefaultDecimalScale), nil
	case schema.String:
		return "TEXT", nil
	case schema.DateTime:
		return "TIMESTAMP", nil
	case schema.Binary:
		return "BYTEA", nil
	}
	return "", unsupportedType(d, t)
}

// datePart truncates EXTRACT, which returns fractional seconds.
func (postgres) datePart(f sqlir.Func, arg string) string {
	x := "EXTRACT(" + strings.ToUpper(string(f)) + " FROM " + arg + ")"
	if f == sqlir.FuncSecond {
		x = "FLOOR(" + x + ")"
	}
	return "CAST(" + x + " AS INTEGER)"
}

func (postgres) concat(args []string) string {
	return strings.Join(args, " || ")
}

func (d postgres) lastIdentity(t schema.Type) (string, error) {
	ct, err := d.castType(t)
	if err != nil {
		return "", err
	}
	return "CAST(" + d.variable(identityColumn) + " AS " + ct + ")", nil
}

func (postgres) update(r *render, st *sqlir.Update) (string, error) {
	return r.updateFrom(st)
}

func (postgres) delete(r *render, st *sqlir.Delete) (string, error) {
	q := st.Query
	using, ons, err := r.fromList(q.Joins, "DELETE")
	if err != nil {
		return "", err
	}
	sql := "DELETE FROM " + r.table(st.Table.Name) + " AS " + q.FromAlias
	if using != "" {
		sql += " USING " + using
	}
	w, err := r.where(append(ons, q.Wheres...))
	if err != nil {
		return "", err
	}
	return sql + w, nil
}
