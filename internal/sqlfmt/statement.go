package sqlfmt

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/sqlir"
)

func (r *render) statement(st sqlir.Statement) ([]Command, error) {
	if sqlir.IsDDL(st) {
		return r.ddl(st)
	}
	switch x := st.(type) {
	case *sqlir.SelectStatement:
		s, err := r.query(x.Query, false)
		if err != nil {
			return nil, err
		}
		c := r.command(s)
		c.Query = true
		return []Command{c}, nil
	case *sqlir.Insert:
		return r.insert(x)
	case *sqlir.InsertSelect:
		return r.insertSelect(x)
	case *sqlir.Update:
		s, err := r.d.update(r, x)
		if err != nil {
			return nil, err
		}
		return []Command{counted(r.command(s))}, nil
	case *sqlir.Delete:
		s, err := r.d.delete(r, x)
		if err != nil {
			return nil, err
		}
		return []Command{counted(r.command(s))}, nil
	case *sqlir.DeclareVariable:
		return r.declare(x)
	case *sqlir.SetVariable:
		return r.set(x)
	case *sqlir.If:
		return r.ifBlock(x)
	}
	return nil, &sqlir.UnsupportedError{Construct: "statement", Name: sqlir.TypeName(st), Dialect: r.d.name()}
}

func counted(c Command) Command {
	c.Counted = true
	return c
}

func (r *render) insert(st *sqlir.Insert) ([]Command, error) {
	table := r.table(st.Table.Name)
	var sql string
	if len(st.Values) == 0 {
		sql = r.d.insertDefault(table)
	} else {
		cols := make([]string, len(st.Values))
		vals := make([]string, len(st.Values))
		for i, a := range st.Values {
			cols[i] = r.d.quote(a.Column.SqlName)
			s, err := r.expr(a.Value)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", a.Column.MemberName, err)
			}
			vals[i] = s
		}
		sql = "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(vals, ", ") + ")"
	}

	id := st.Table.IdentityColumn()
	if id == nil || r.d.variables() != variablesTable {
		return []Command{counted(r.command(sql))}, nil
	}
	vt, ic := r.d.quote(VariablesTable), r.d.quote(identityColumn)
	switch r.d.capture() {
	case captureReturning:
		sql = "WITH " + r.d.quote("__inserted") + " AS (" + sql + " RETURNING " + r.d.quote(id.SqlName) + ") " +
			"UPDATE " + vt + " SET " + ic + " = (SELECT " + r.d.quote(id.SqlName) + " FROM " + r.d.quote("__inserted") + ")"
		return []Command{counted(r.command(sql))}, nil
	case captureRowID:
		return []Command{
			counted(r.command(sql)),
			r.command("UPDATE " + vt + " SET " + ic + " = last_insert_rowid()"),
		}, nil
	}
	return []Command{counted(r.command(sql))}, nil
}

func (r *render) insertSelect(st *sqlir.InsertSelect) ([]Command, error) {
	cols := make([]string, len(st.Columns))
	for i, c := range st.Columns {
		cols[i] = r.d.quote(c.SqlName)
	}
	q, err := r.query(st.Query, false)
	if err != nil {
		return nil, err
	}
	sql := "INSERT INTO " + r.table(st.Table.Name) + " (" + strings.Join(cols, ", ") + ") " + q
	return []Command{counted(r.command(sql))}, nil
}

// assignments renders SET items. qualify prefixes the target alias.
func (r *render) assignments(set []sqlir.Assignment, qualify string) (string, error) {
	parts := make([]string, len(set))
	for i, a := range set {
		v, err := r.expr(a.Value)
		if err != nil {
			return "", fmt.Errorf("column %q: %w", a.Column.MemberName, err)
		}
		col := r.d.quote(a.Column.SqlName)
		if qualify != "" {
			col = qualify + "." + col
		}
		parts[i] = col + " = " + v
	}
	return strings.Join(parts, ", "), nil
}

// joinClauses renders JOIN clauses in order.
func (r *render) joinClauses(joins []*sqlir.Join) (string, error) {
	var b strings.Builder
	for _, j := range joins {
		s, err := r.join(j)
		if err != nil {
			return "", err
		}
		b.WriteString(" " + s)
	}
	return b.String(), nil
}

// fromList renders the joins of an UPDATE ... FROM or DELETE ... USING as a
// comma list and returns their ON predicates, which move into WHERE. Only
// inner joins can be rewritten this way.
func (r *render) fromList(joins []*sqlir.Join, stmt string) (string, []sqlir.Expr, error) {
	srcs := make([]string, 0, len(joins))
	var ons []sqlir.Expr
	for _, j := range joins {
		if j.Type != sqlir.InnerJoin {
			return "", nil, &sqlir.UnsupportedError{Construct: "join", Name: stmt, Dialect: r.d.name(), Detail: "only inner joins supported"}
		}
		s, err := r.source(j)
		if err != nil {
			return "", nil, err
		}
		srcs = append(srcs, s)
		ons = append(ons, j.On)
	}
	return strings.Join(srcs, ", "), ons, nil
}

// where renders " WHERE ..." for preds, or "" when there are none.
func (r *render) where(preds []sqlir.Expr) (string, error) {
	s, err := r.conjunction(preds)
	if err != nil || s == "" {
		return "", err
	}
	return " WHERE " + s, nil
}

// updateFrom renders UPDATE t AS a SET ... FROM ... WHERE, shared by
// PostgreSQL and SQLite.
func (r *render) updateFrom(st *sqlir.Update) (string, error) {
	q := st.Query
	set, err := r.assignments(st.Set, "")
	if err != nil {
		return "", err
	}
	from, ons, err := r.fromList(q.Joins, "UPDATE")
	if err != nil {
		return "", err
	}
	sql := "UPDATE " + r.table(st.Table.Name) + " AS " + q.FromAlias + " SET " + set
	if from != "" {
		sql += " FROM " + from
	}
	w, err := r.where(append(ons, q.Wheres...))
	if err != nil {
		return "", err
	}
	return sql + w, nil
}

func (r *render) declare(st *sqlir.DeclareVariable) ([]Command, error) {
	switch {
	case r.d.variables() == variablesTable:
		return nil, nil
	case r.d.name() == SQLServerName:
		t, err := r.d.castType(st.Placeholder.Type)
		if err != nil {
			return nil, err
		}
		return []Command{r.command("DECLARE " + r.d.variable(st.Placeholder.Name) + " " + t)}, nil
	}
	return []Command{r.command("SET " + r.d.variable(st.Placeholder.Name) + " = NULL")}, nil
}

func (r *render) set(st *sqlir.SetVariable) ([]Command, error) {
	v, err := r.expr(st.Value)
	if err != nil {
		return nil, err
	}
	if r.d.variables() == variablesTable {
		sql := "UPDATE " + r.d.quote(VariablesTable) + " SET " + r.d.quote(st.Placeholder.Name) + " = " + v
		return []Command{r.command(sql)}, nil
	}
	return []Command{r.command("SET " + r.d.variable(st.Placeholder.Name) + " = " + v)}, nil
}

// variablesProlog recreates VariablesTable with one row of NULLs.
func (r *render) variablesProlog(stmts []sqlir.Statement) ([]Command, error) {
	vt := r.d.quote(VariablesTable)
	idType, err := r.d.columnType(&schema.Column{Type: schema.NullableOf(schema.Int64)})
	if err != nil {
		return nil, err
	}
	cols := []string{r.d.quote(identityColumn) + " " + idType + " NULL"}
	for _, ph := range declaredVariables(stmts) {
		t, err := r.d.columnType(&schema.Column{SqlName: ph.Name, Type: ph.Type.OrNull()})
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", ph.Name, err)
		}
		cols = append(cols, r.d.quote(ph.Name)+" "+t+" NULL")
	}
	return []Command{
		r.command("DROP TABLE IF EXISTS " + vt),
		r.command("CREATE TEMPORARY TABLE " + vt + " (" + strings.Join(cols, ", ") + ")"),
		r.command("INSERT INTO " + vt + " (" + r.d.quote(identityColumn) + ") VALUES (NULL)"),
	}, nil
}

// ifBlock renders IF ... BEGIN ... END, which only SQL Server supports.
func (r *render) ifBlock(st *sqlir.If) ([]Command, error) {
	if r.d.name() != SQLServerName {
		return nil, &sqlir.UnsupportedError{Construct: "statement", Name: "If", Dialect: r.d.name()}
	}
	test, err := r.predicate(st.Test)
	if err != nil {
		return nil, err
	}
	then, err := r.block(st.Then)
	if err != nil {
		return nil, err
	}
	sql := "IF " + test + "\nBEGIN\n" + then + "END"
	if len(st.Else) > 0 {
		els, err := r.block(st.Else)
		if err != nil {
			return nil, err
		}
		sql += "\nELSE\nBEGIN\n" + els + "END"
	}
	c := r.command(sql)
	c.Counted = true
	return []Command{c}, nil
}

// block renders nested statements; their parameters join the enclosing
// command.
func (r *render) block(stmts []sqlir.Statement) (string, error) {
	var b strings.Builder
	outer := r.params
	for _, st := range stmts {
		r.params = nil
		cmds, err := r.statement(st)
		if err != nil {
			return "", err
		}
		for _, c := range cmds {
			b.WriteString("  " + c.SQL + ";\n")
			for _, p := range c.Params {
				if !slices.Contains(outer, p) {
					outer = append(outer, p)
				}
			}
		}
	}
	r.params = outer
	return b.String(), nil
}
