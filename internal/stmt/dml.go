package stmt

import (
	"fmt"

	"github.com/roach88/typedsql/internal/query"
	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/sqlir"
	"github.com/roach88/typedsql/internal/value"
)

type assign struct {
	column *schema.Column
	value  query.Expr
}

// Insert inserts one row. A table with an identity column records the
// generated value for query.LastInsertIdentity.
type Insert struct {
	table  *schema.Table
	values []assign
	err    error
}

// Value assigns a column by member name.
func (s *Insert) Value(member string, e query.Expr) *Insert {
	col := s.table.Column(member)
	switch {
	case s.err != nil:
	case col == nil:
		s.err = fmt.Errorf("insert expression can only call Value(): table %q has no member %q", s.table.Name, member)
	case assigned(s.values, col):
		s.err = fmt.Errorf("insert into %q assigns %q twice", s.table.Name, member)
	default:
		s.values = append(s.values, assign{column: col, value: e})
	}
	return s
}

func assigned(values []assign, col *schema.Column) bool {
	for _, a := range values {
		if a.column == col {
			return true
		}
	}
	return false
}

func (s *Insert) Parse(p *query.Parser) ([]sqlir.Statement, error) {
	if s.err != nil {
		return nil, s.err
	}
	if err := requireColumns(s.table, s.values); err != nil {
		return nil, err
	}
	out := &sqlir.Insert{Table: s.table}
	for _, a := range s.values {
		e, err := parseAssignment(p, a)
		if err != nil {
			return nil, err
		}
		out.Values = append(out.Values, sqlir.Assignment{Column: a.column, Value: e})
	}
	return []sqlir.Statement{out}, nil
}

func (s *Insert) Run(env *query.Env) (Result, error) {
	if _, err := s.Parse(query.NewParser()); err != nil {
		return Result{}, err
	}
	rec := value.NewRecord()
	for _, a := range s.values {
		v, err := env.Eval(a.value)
		if err != nil {
			return Result{}, fmt.Errorf("column %q: %w", a.column.MemberName, err)
		}
		rec.Set(a.column.MemberName, v)
	}
	t, err := env.Store().Table(s.table.Name)
	if err != nil {
		return Result{}, err
	}
	_, id, err := t.Insert(rec)
	if err != nil {
		return Result{}, err
	}
	if id != nil {
		env.SetIdentity(id)
	}
	return Result{Affected: 1}, nil
}

// requireColumns checks that every NOT NULL column without an identity is
// assigned.
func requireColumns(t *schema.Table, values []assign) error {
	for _, c := range t.Columns {
		if c.Type.Nullable || c.AutoIncrement || assigned(values, c) {
			continue
		}
		return fmt.Errorf("insert into %q: column %q requires a value", t.Name, c.MemberName)
	}
	return nil
}

func parseAssignment(p *query.Parser, a assign, bindings ...query.Binding) (sqlir.Expr, error) {
	e, err := p.ParseExpr(a.value, a.column.Type, bindings...)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", a.column.MemberName, err)
	}
	if e.Type().Kind != a.column.Type.Kind {
		return nil, &sqlir.TypeError{Op: "assignment to " + a.column.MemberName, Left: a.column.Type.String(), Right: e.Type().String()}
	}
	return e, nil
}

// InsertSelect inserts the rows of a query. It does not record an identity.
type InsertSelect struct {
	table *schema.Table
	query *query.Query
}

func (s *InsertSelect) Parse(p *query.Parser) ([]sqlir.Statement, error) {
	q, err := p.Parse(s.query)
	if err != nil {
		return nil, err
	}
	out := &sqlir.InsertSelect{Table: s.table, Query: q}
	var values []assign
	for _, m := range q.Result.Members {
		col := s.table.Column(m.MemberName())
		if col == nil {
			return nil, fmt.Errorf("insert into %q: no column for member %q", s.table.Name, m.MemberName())
		}
		if m.Expr().Type().Kind != col.Type.Kind {
			return nil, &sqlir.TypeError{Op: "insert into " + col.MemberName, Left: col.Type.String(), Right: m.Expr().Type().String()}
		}
		out.Columns = append(out.Columns, col)
		values = append(values, assign{column: col})
	}
	if err := requireColumns(s.table, values); err != nil {
		return nil, err
	}
	return []sqlir.Statement{out}, nil
}

func (s *InsertSelect) Run(env *query.Env) (Result, error) {
	if _, err := s.Parse(query.NewParser()); err != nil {
		return Result{}, err
	}
	recs, err := env.Records(s.query)
	if err != nil {
		return Result{}, err
	}
	t, err := env.Store().Table(s.table.Name)
	if err != nil {
		return Result{}, err
	}
	for _, rec := range recs {
		if _, _, err := t.Insert(rec); err != nil {
			return Result{}, err
		}
	}
	return Result{Affected: int64(len(recs))}, nil
}

// Select returns the rows of a query.
type Select struct {
	query *query.Query
}

func (s *Select) Parse(p *query.Parser) ([]sqlir.Statement, error) {
	q, err := p.Parse(s.query)
	if err != nil {
		return nil, err
	}
	return []sqlir.Statement{&sqlir.SelectStatement{Query: q}}, nil
}

func (s *Select) Run(env *query.Env) (Result, error) {
	recs, err := env.Records(s.query)
	if err != nil {
		return Result{}, err
	}
	if recs == nil {
		recs = []*value.Record{}
	}
	return Result{Rows: recs}, nil
}

// Update sets columns of the target rows selected by a query.
type Update struct {
	target *schema.Table
	query  *query.Query
	param  string
	set    []assign
	err    error
}

// Set assigns a column of the target by member name; e sees the query row
// through the update parameter.
func (s *Update) Set(member string, e query.Expr) *Update {
	col := s.target.Column(member)
	switch {
	case s.err != nil:
	case col == nil:
		s.err = fmt.Errorf("update of %q: no member %q", s.target.Name, member)
	case assigned(s.set, col):
		s.err = fmt.Errorf("update of %q assigns %q twice", s.target.Name, member)
	default:
		s.set = append(s.set, assign{column: col, value: e})
	}
	return s
}

func (s *Update) Parse(p *query.Parser) ([]sqlir.Statement, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.set) == 0 {
		return nil, fmt.Errorf("update of %q sets no column", s.target.Name)
	}
	q, err := parseTarget(p, s.target, s.query, "Update")
	if err != nil {
		return nil, err
	}
	out := &sqlir.Update{Table: s.target, Query: q}
	for _, a := range s.set {
		e, err := parseAssignment(p, a, query.Binding{Param: s.param, Result: q.Result})
		if err != nil {
			return nil, err
		}
		out.Set = append(out.Set, sqlir.Assignment{Column: a.column, Value: e})
	}
	return []sqlir.Statement{out}, nil
}

func (s *Update) Run(env *query.Env) (Result, error) {
	if _, err := s.Parse(query.NewParser()); err != nil {
		return Result{}, err
	}
	rows, err := env.Rows(s.query)
	if err != nil {
		return Result{}, err
	}
	t, err := env.Store().Table(s.target.Name)
	if err != nil {
		return Result{}, err
	}

	// Compute every change against the rows as they were before applying any.
	type change struct {
		index int
		rec   *value.Record
	}
	var changes []change
	seen := make(map[int]bool)
	for _, r := range rows {
		i, ok := r.Source(s.target.Name)
		if !ok {
			return Result{}, fmt.Errorf("update of %q: row has no source in the target", s.target.Name)
		}
		if seen[i] {
			continue
		}
		seen[i] = true
		rec := value.NewRecord()
		for _, a := range s.set {
			v, err := env.Eval(a.value, query.Bound{Param: s.param, Record: r.Record})
			if err != nil {
				return Result{}, fmt.Errorf("column %q: %w", a.column.MemberName, err)
			}
			rec.Set(a.column.MemberName, v)
		}
		changes = append(changes, change{index: i, rec: rec})
	}
	for _, c := range changes {
		if err := t.Update(c.index, c.rec); err != nil {
			return Result{}, err
		}
	}
	return Result{Affected: int64(len(changes))}, nil
}

// Delete removes the target rows selected by a query.
type Delete struct {
	target *schema.Table
	query  *query.Query
}

func (s *Delete) Parse(p *query.Parser) ([]sqlir.Statement, error) {
	q, err := parseTarget(p, s.target, s.query, "Delete")
	if err != nil {
		return nil, err
	}
	return []sqlir.Statement{&sqlir.Delete{Table: s.target, Query: q}}, nil
}

func (s *Delete) Run(env *query.Env) (Result, error) {
	if _, err := s.Parse(query.NewParser()); err != nil {
		return Result{}, err
	}
	rows, err := env.Rows(s.query)
	if err != nil {
		return Result{}, err
	}
	t, err := env.Store().Table(s.target.Name)
	if err != nil {
		return Result{}, err
	}
	seen := make(map[int]bool)
	for _, r := range rows {
		i, ok := r.Source(s.target.Name)
		if !ok {
			return Result{}, fmt.Errorf("delete from %q: row has no source in the target", s.target.Name)
		}
		seen[i] = true
	}
	for i := range seen {
		if err := t.Delete(i); err != nil {
			return Result{}, err
		}
	}
	return Result{Affected: int64(len(seen))}, nil
}

// parseTarget parses the row-selecting query of an Update or Delete. It must
// read the target table directly: joins and filters are allowed, grouping,
// aggregation and windows are not.
func parseTarget(p *query.Parser, target *schema.Table, q *query.Query, stmt string) (*sqlir.Query, error) {
	pq, err := p.Parse(q)
	if err != nil {
		return nil, err
	}
	if pq.From == nil || pq.From.Name != target.Name {
		return nil, &sqlir.UnsupportedError{Construct: "statement", Name: stmt, Detail: fmt.Sprintf("query must start From %q", target.Name)}
	}
	if !pq.IsFlat() {
		return nil, &sqlir.UnsupportedError{Construct: "statement", Name: stmt, Detail: "query must not group, aggregate, offset or limit"}
	}
	pq.OrderBys = nil
	return pq, nil
}
