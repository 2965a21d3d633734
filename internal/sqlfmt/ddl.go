package sqlfmt

import (
	"fmt"
	"strings"

	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/sqlir"
)

func (r *render) ddl(st sqlir.Statement) ([]Command, error) {
	var sql string
	switch x := st.(type) {
	case *sqlir.CreateTable:
		s, err := r.createTable(x.Table)
		if err != nil {
			return nil, err
		}
		sql = s
	case *sqlir.DropTable:
		sql = "DROP TABLE " + r.table(x.TableName)
	case *sqlir.AddColumn:
		def, err := r.columnDefinition(x.Column, true)
		if err != nil {
			return nil, err
		}
		sql = "ALTER TABLE " + r.table(x.TableName) + " " + r.d.addColumn() + " " + def
	case *sqlir.DropColumn:
		sql = "ALTER TABLE " + r.table(x.TableName) + " DROP COLUMN " + r.d.quote(x.ColumnName)
	case *sqlir.AddForeignKey:
		if !r.d.foreignKeys() {
			return r.unsupportedForeignKey("AddForeignKey")
		}
		fk := x.ForeignKey
		sql = "ALTER TABLE " + r.table(x.TableName) + " ADD CONSTRAINT " + r.d.quote(fk.Name) +
			" FOREIGN KEY (" + r.quoteList(fk.Columns) + ") REFERENCES " + r.table(x.ReferenceTableName) +
			" (" + r.quoteList(fk.ReferenceColumns) + ")"
	case *sqlir.DropForeignKey:
		if !r.d.foreignKeys() {
			return r.unsupportedForeignKey("DropForeignKey")
		}
		sql = r.d.dropForeignKey(r.table(x.TableName), r.d.quote(x.Name))
	case *sqlir.AddIndex:
		kw := "CREATE INDEX "
		if x.Index.Unique {
			kw = "CREATE UNIQUE INDEX "
		}
		sql = kw + r.d.quote(x.Index.Name) + " ON " + r.table(x.TableName) + " (" + r.quoteList(x.Index.Columns) + ")"
	case *sqlir.DropIndex:
		sql = r.d.dropIndex(r.table(x.TableName), r.d.quote(x.Name))
	default:
		return nil, &sqlir.UnsupportedError{Construct: "statement", Name: sqlir.TypeName(st), Dialect: r.d.name()}
	}
	return []Command{r.command(sql)}, nil
}

func (r *render) unsupportedForeignKey(name string) ([]Command, error) {
	if r.opts.ignoreForeignKeys {
		return nil, nil
	}
	return nil, &sqlir.UnsupportedError{Construct: "statement", Name: name, Dialect: r.d.name(), Detail: "constraints cannot be altered"}
}

func (r *render) quoteList(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = r.d.quote(n)
	}
	return strings.Join(out, ", ")
}

func (r *render) createTable(t *schema.Table) (string, error) {
	lines := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		def, err := r.columnDefinition(c, false)
		if err != nil {
			return "", fmt.Errorf("table %q: %w", t.Name, err)
		}
		lines = append(lines, def)
	}
	pk := t.PrimaryKey()
	inline := r.d.name() == SQLiteName && t.IdentityColumn() != nil
	if inline && len(pk) != 1 {
		return "", &sqlir.UnsupportedError{Construct: "column", Name: "AutoIncrement", Dialect: r.d.name(), Detail: "identity must be the only primary key column"}
	}
	if len(pk) > 0 && !inline {
		names := make([]string, len(pk))
		for i, c := range pk {
			names[i] = c.SqlName
		}
		lines = append(lines, "PRIMARY KEY ("+r.quoteList(names)+")")
	}
	return "CREATE TABLE " + r.table(t.Name) + " (\n  " + strings.Join(lines, ",\n  ") + "\n)", nil
}

// columnDefinition renders name, type, nullability and identity. Added NOT
// NULL columns default to the zero value so existing rows stay valid.
func (r *render) columnDefinition(c *schema.Column, added bool) (string, error) {
	t, err := r.d.columnType(c)
	if err != nil {
		return "", fmt.Errorf("column %q: %w", c.SqlName, err)
	}
	def := r.d.quote(c.SqlName) + " " + t
	if c.Type.Nullable {
		def += " NULL"
	} else {
		def += " NOT NULL"
	}
	switch {
	case c.AutoIncrement:
		def += r.d.identityDefinition()
	case added && !c.Type.Nullable:
		def += " DEFAULT " + r.zeroLiteral(c.Type.Kind)
	}
	return def, nil
}
