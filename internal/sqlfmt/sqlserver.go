package sqlfmt

import (
	"fmt"
	"strings"

	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/sqlir"
)

// sqlserver renders T-SQL. Variables only live for one batch, so a statement
// list becomes a single transaction-wrapped command.
type sqlserver struct{ base }

func (sqlserver) name() string                { return SQLServerName }
func (sqlserver) quote(ident string) string   { return quoteWith("[", "]", ident) }
func (sqlserver) namedParams() bool           { return true }
func (sqlserver) reuseMarkers() bool          { return true }
func (sqlserver) boolValues() bool            { return false }
func (sqlserver) emptyBinary() string         { return "0x" }
func (sqlserver) identityDefinition() string  { return " IDENTITY(1,1)" }
func (sqlserver) singleBatch() bool           { return true }
func (sqlserver) addColumn() string           { return "ADD" }
func (sqlserver) concat(args []string) string { return strings.Join(args, " + ") }

// marker binds by name; parser-generated names are unique per statement list.
func (sqlserver) marker(_ int, name string) string { return "@" + name }

func (sqlserver) literalBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (sqlserver) dropIndex(table, name string) string {
	return "DROP INDEX " + name + " ON " + table
}

func (d sqlserver) columnType(c *schema.Column) (string, error) {
	switch c.Type.Kind {
	case schema.String:
		size := "MAX"
		if c.Info.StringLength > 0 {
			size = itoa(c.Info.StringLength)
		}
		if c.Info.NVarChar || c.Info.StringLength == 0 {
			return "NVARCHAR(" + size + ")", nil
		}
		return "VARCHAR(" + size + ")", nil
	case schema.Binary:
		if c.Info.StringLength > 0 {
			return "VARBINARY(" + itoa(c.Info.StringLength) + ")", nil
		}
	case schema.Decimal:
		p, s := c.Info.DecimalSize()
		return fmt.Sprintf("DECIMAL(%d,%d)", p, s), nil
	}
	return d.castType(c.Type)
}

func (d sqlserver) castType(t schema.Type) (string, error) {
	switch t.Kind {
	case schema.Bool:
		return "BIT", nil
	case schema.Int8, schema.Int16:
		return "SMALLINT", nil
	case schema.UInt8:
		return "TINYINT", nil
	case schema.Int32:
		return "INT", nil
	case schema.Int64:
		return "BIGINT", nil
	case schema.Float32:
		return "REAL", nil
	case schema.Float64:
		return "FLOAT", nil
	case schema.Decimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", schema.DefaultDecimalPrecision, schema.DefaultDecimalScale), nil
	case schema.String:
		return "NVARCHAR(MAX)", nil
	case schema.DateTime:
		return "DATETIME2", nil
	case schema.Binary:
		return "VARBINARY(MAX)", nil
	}
	return "", unsupportedType(d, t)
}

// window uses OFFSET/FETCH, which requires an ORDER BY.
func (sqlserver) window(q *sqlir.Query, ordered bool) string {
	var s string
	if !ordered {
		s = " ORDER BY (SELECT NULL)"
	}
	off := 0
	if q.Offset != nil {
		off = *q.Offset
	}
	s += " OFFSET " + itoa(off) + " ROWS"
	if q.Limit != nil {
		s += " FETCH NEXT " + itoa(*q.Limit) + " ROWS ONLY"
	}
	return s
}

func (sqlserver) datePart(f sqlir.Func, arg string) string {
	return "DATEPART(" + strings.ToLower(string(f)) + ", " + arg + ")"
}

func (d sqlserver) lastIdentity(t schema.Type) (string, error) {
	ct, err := d.castType(t)
	if err != nil {
		return "", err
	}
	return "CAST(SCOPE_IDENTITY() AS " + ct + ")", nil
}

func (sqlserver) update(r *render, st *sqlir.Update) (string, error) {
	q := st.Query
	set, err := r.assignments(st.Set, "")
	if err != nil {
		return "", err
	}
	joins, err := r.joinClauses(q.Joins)
	if err != nil {
		return "", err
	}
	w, err := r.where(q.Wheres)
	if err != nil {
		return "", err
	}
	return "UPDATE " + q.FromAlias + " SET " + set + " FROM " + r.table(st.Table.Name) + " AS " + q.FromAlias + joins + w, nil
}

func (sqlserver) delete(r *render, st *sqlir.Delete) (string, error) {
	return deleteAliased(r, st)
}
