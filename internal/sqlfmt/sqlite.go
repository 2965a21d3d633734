package sqlfmt

import (
	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/sqlir"
)

// sqlite renders for SQLite 3.35 or later. Declared types follow the names
// go-sqlite3 maps back to Go values.
type sqlite struct{ base }

func (sqlite) name() string                         { return SQLiteName }
func (sqlite) quote(ident string) string            { return quoteWith(`"`, `"`, ident) }
func (sqlite) marker(int, string) string            { return "?" }
func (sqlite) variables() variableStyle             { return variablesTable }
func (sqlite) capture() identityCapture             { return captureRowID }
func (sqlite) foreignKeys() bool                    { return false }
func (sqlite) identityDefinition() string           { return " PRIMARY KEY AUTOINCREMENT" }
func (sqlite) window(q *sqlir.Query, _ bool) string { return limitOffset(q, "-1") }

func (sqlite) literalBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (d sqlite) variable(name string) string {
	return "(SELECT " + d.quote(name) + " FROM " + d.quote(VariablesTable) + ")"
}

func (d sqlite) columnType(c *schema.Column) (string, error) {
	switch c.Type.Kind {
	case schema.Bool:
		return "BOOLEAN", nil
	case schema.DateTime:
		return "DATETIME", nil
	}
	return d.castType(c.Type)
}

// castType keeps DATETIME values as text; CAST to a numeric affinity would
// truncate them to the year.
func (d sqlite) castType(t schema.Type) (string, error) {
	switch {
	case t.Kind == schema.Bool, t.Kind.IsInteger() && t.Kind != schema.UInt64:
		return "INTEGER", nil
	case t.Kind == schema.Float32, t.Kind == schema.Float64:
		return "REAL", nil
	case t.Kind == schema.Decimal:
		return "NUMERIC", nil
	case t.Kind == schema.String, t.Kind == schema.DateTime:
		return "TEXT", nil
	case t.Kind == schema.Binary:
		return "BLOB", nil
	}
	return "", unsupportedType(d, t)
}

var sqliteDateFormats = map[sqlir.Func]string{
	sqlir.FuncYear:   "%Y",
	sqlir.FuncMonth:  "%m",
	sqlir.FuncDay:    "%d",
	sqlir.FuncHour:   "%H",
	sqlir.FuncMinute: "%M",
	sqlir.FuncSecond: "%S",
}

func (sqlite) datePart(f sqlir.Func, arg string) string {
	return "CAST(strftime('" + sqliteDateFormats[f] + "', " + arg + ") AS INTEGER)"
}

func (sqlite) concat(args []string) string {
	s := args[0]
	for _, a := range args[1:] {
		s += " || " + a
	}
	return s
}

func (d sqlite) lastIdentity(schema.Type) (string, error) {
	return d.variable(identityColumn), nil
}

func (sqlite) update(r *render, st *sqlir.Update) (string, error) {
	return r.updateFrom(st)
}

// delete filters by rowid when joins narrow the rows; DELETE has no FROM
// list in SQLite.
func (sqlite) delete(r *render, st *sqlir.Delete) (string, error) {
	q := st.Query
	table := r.table(st.Table.Name)
	if len(q.Joins) == 0 {
		w, err := r.where(q.Wheres)
		if err != nil {
			return "", err
		}
		return "DELETE FROM " + table + " AS " + q.FromAlias + w, nil
	}
	joins, err := r.joinClauses(q.Joins)
	if err != nil {
		return "", err
	}
	w, err := r.where(q.Wheres)
	if err != nil {
		return "", err
	}
	return "DELETE FROM " + table + " WHERE rowid IN (SELECT " + q.FromAlias + ".rowid FROM " + table + " AS " + q.FromAlias + joins + w + ")", nil
}
