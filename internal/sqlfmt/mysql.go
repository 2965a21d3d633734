package sqlfmt

import (
	"fmt"
	"strings"

	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/sqlir"
)

type mysql struct{ base }

func (mysql) name() string                  { return MySQLName }
func (mysql) quote(ident string) string     { return quoteWith("`", "`", ident) }
func (mysql) marker(int, string) string     { return "?" }
func (mysql) identityDefinition() string    { return " AUTO_INCREMENT" }
func (mysql) coalesce(a, b string) string   { return "IFNULL(" + a + ", " + b + ")" }
func (mysql) insertDefault(t string) string { return "INSERT INTO " + t + " () VALUES ()" }

func (mysql) dropForeignKey(table, name string) string {
	return "ALTER TABLE " + table + " DROP FOREIGN KEY " + name
}

func (mysql) dropIndex(table, name string) string {
	return "DROP INDEX " + name + " ON " + table
}

func (d mysql) columnType(c *schema.Column) (string, error) {
	switch c.Type.Kind {
	case schema.Bool:
		return "BOOLEAN", nil
	case schema.Int8:
		return "TINYINT", nil
	case schema.UInt8:
		return "TINYINT UNSIGNED", nil
	case schema.Int16:
		return "SMALLINT", nil
	case schema.UInt16:
		return "SMALLINT UNSIGNED", nil
	case schema.Int32:
		return "INT", nil
	case schema.UInt32:
		return "INT UNSIGNED", nil
	case schema.Int64:
		return "BIGINT", nil
	case schema.UInt64:
		return "BIGINT UNSIGNED", nil
	case schema.Float32:
		return "FLOAT", nil
	case schema.Float64:
		return "DOUBLE", nil
	case schema.Decimal:
		p, s := c.Info.DecimalSize()
		return fmt.Sprintf("DECIMAL(%d,%d)", p, s), nil
	case schema.String:
		if c.Info.StringLength == 0 {
			return "LONGTEXT", nil
		}
		return fmt.Sprintf("VARCHAR(%d)", c.Info.StringLength), nil
	case schema.DateTime:
		return "DATETIME", nil
	case schema.Binary:
		if c.Info.StringLength == 0 {
			return "LONGBLOB", nil
		}
		return fmt.Sprintf("VARBINARY(%d)", c.Info.StringLength), nil
	}
	return "", unsupportedType(d, c.Type)
}

// castType uses the restricted type names CAST accepts.
func (d mysql) castType(t schema.Type) (string, error) {
	switch {
	case t.Kind == schema.Bool, t.Kind.IsInteger() && !t.Kind.IsUnsigned():
		return "SIGNED", nil
	case t.Kind.IsUnsigned():
		return "UNSIGNED", nil
	case t.Kind == schema.Float32, t.Kind == schema.Float64:
		return "DOUBLE", nil
	case t.Kind == schema.Decimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", schema.DefaultDecimalPrecision, schema.DefaultDecimalScale), nil
	case t.Kind == schema.String:
		return "CHAR", nil
	case t.Kind == schema.DateTime:
		return "DATETIME", nil
	case t.Kind == schema.Binary:
		return "BINARY", nil
	}
	return "", unsupportedType(d, t)
}

// window needs a LIMIT whenever OFFSET is set.
func (mysql) window(q *sqlir.Query, _ bool) string {
	return limitOffset(q, "18446744073709551615")
}

func (mysql) datePart(f sqlir.Func, arg string) string {
	return strings.ToUpper(string(f)) + "(" + arg + ")"
}

func (mysql) concat(args []string) string {
	return "CONCAT(" + strings.Join(args, ", ") + ")"
}

// divide uses DIV for integers; "/" yields a decimal.
func (mysql) divide(k schema.Kind, l, r string) string {
	if k.IsInteger() {
		return l + " DIV " + r
	}
	return l + " / " + r
}

func (mysql) lastIdentity(schema.Type) (string, error) {
	return "LAST_INSERT_ID()", nil
}

func (mysql) update(r *render, st *sqlir.Update) (string, error) {
	q := st.Query
	joins, err := r.joinClauses(q.Joins)
	if err != nil {
		return "", err
	}
	set, err := r.assignments(st.Set, q.FromAlias)
	if err != nil {
		return "", err
	}
	w, err := r.where(q.Wheres)
	if err != nil {
		return "", err
	}
	return "UPDATE " + r.table(st.Table.Name) + " AS " + q.FromAlias + joins + " SET " + set + w, nil
}

func (mysql) delete(r *render, st *sqlir.Delete) (string, error) {
	return deleteAliased(r, st)
}

// deleteAliased renders DELETE a FROM t AS a JOIN ... WHERE, shared by MySQL
// and SQL Server.
func deleteAliased(r *render, st *sqlir.Delete) (string, error) {
	q := st.Query
	joins, err := r.joinClauses(q.Joins)
	if err != nil {
		return "", err
	}
	w, err := r.where(q.Wheres)
	if err != nil {
		return "", err
	}
	return "DELETE " + q.FromAlias + " FROM " + r.table(st.Table.Name) + " AS " + q.FromAlias + joins + w, nil
}
