// Package stmt builds statement lists: ordered DML, DDL and session-variable
// statements that run as one batch.
//
// Every statement has two interpretations. Parse translates it to sqlir for
// the formatters; Run executes it against a query.Env. Both reject the same
// shapes so a list behaves the same on a database and in memory.
package stmt

import (
	"fmt"

	"github.com/roach88/typedsql/internal/query"
	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/sqlir"
	"github.com/roach88/typedsql/internal/value"
)

// Statement is one entry of a List.
type Statement interface {
	// Parse translates the statement. p is shared by the whole list.
	Parse(p *query.Parser) ([]sqlir.Statement, error)

	// Run executes the statement in memory.
	Run(env *query.Env) (Result, error)
}

// Result is the outcome of a statement or list.
type Result struct {
	// Affected counts distinct target rows changed by DML.
	Affected int64

	// Rows holds the rows of the last Select, nil if there was none.
	Rows []*value.Record
}

func (r *Result) add(other Result) {
	r.Affected += other.Affected
	if other.Rows != nil {
		r.Rows = other.Rows
	}
}

// List is an ordered statement list. Builder methods append and return the
// new statement for further configuration.
type List struct {
	stmts    []Statement
	declared map[string]bool
	err      error
}

// New returns an empty list.
func New() *List {
	return &List{declared: make(map[string]bool)}
}

func (l *List) child() *List {
	return &List{declared: l.declared}
}

// Add appends statements.
func (l *List) Add(stmts ...Statement) *List {
	l.stmts = append(l.stmts, stmts...)
	return l
}

// Statements returns the statements in order.
func (l *List) Statements() []Statement {
	return l.stmts
}

// Len returns the number of statements.
func (l *List) Len() int {
	return len(l.stmts)
}

// Parse translates every statement with one shared parser.
func (l *List) Parse(p *query.Parser) ([]sqlir.Statement, error) {
	if l.err != nil {
		return nil, l.err
	}
	var out []sqlir.Statement
	for i, s := range l.stmts {
		parsed, err := s.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("statement %d: %w", i, err)
		}
		out = append(out, parsed...)
	}
	return out, nil
}

// Run executes every statement in order and stops at the first error.
func (l *List) Run(env *query.Env) (Result, error) {
	if l.err != nil {
		return Result{}, l.err
	}
	var res Result
	for i, s := range l.stmts {
		r, err := s.Run(env)
		if err != nil {
			return res, fmt.Errorf("statement %d: %w", i, err)
		}
		res.add(r)
	}
	return res, nil
}

// Declare declares a session variable of type t, NULL until set.
func (l *List) Declare(name string, t schema.Type) *query.Variable {
	v := query.NewVariable(name, t)
	if l.declared[name] && l.err == nil {
		l.err = fmt.Errorf("variable %q declared twice", name)
	}
	l.declared[name] = true
	l.Add(&Declare{v: v})
	return v
}

// Set assigns e to v.
func (l *List) Set(v *query.Variable, e query.Expr) {
	l.Add(&Set{v: v, value: e})
}

// Insert appends an insert into t; assign columns with Value.
func (l *List) Insert(t *schema.Table) *Insert {
	ins := &Insert{table: t}
	l.Add(ins)
	return ins
}

// InsertSelect appends an insert of the rows of q into t. Result members map
// to columns by member name.
func (l *List) InsertSelect(t *schema.Table, q *query.Query) *InsertSelect {
	ins := &InsertSelect{table: t, query: q}
	l.Add(ins)
	return ins
}

// Select appends a query whose rows become the list result.
func (l *List) Select(q *query.Query) *Select {
	s := &Select{query: q}
	l.Add(s)
	return s
}

// Update appends an update of the rows of target selected by q. q must start
// From target; param binds its rows in Set expressions.
func (l *List) Update(target *schema.Table, q *query.Query, param string) *Update {
	u := &Update{target: target, query: q, param: param}
	l.Add(u)
	return u
}

// Delete appends a delete of the rows of target selected by q.
func (l *List) Delete(target *schema.Table, q *query.Query) *Delete {
	d := &Delete{target: target, query: q}
	l.Add(d)
	return d
}

// If appends a conditional. then and els fill the branches; els may be nil.
func (l *List) If(test query.Expr, then, els func(*List)) *If {
	s := &If{test: test, then: l.child(), els: l.child()}
	if then != nil {
		then(s.then)
	}
	if els != nil {
		els(s.els)
	}
	l.Add(s)
	return s
}

// DDL appends schema statements, such as the output of the schema differ.
func (l *List) DDL(stmts ...sqlir.Statement) *List {
	for _, s := range stmts {
		l.Add(&DDL{stmt: s})
	}
	return l
}

// CreateTable appends a table creation with its indices.
func (l *List) CreateTable(t *schema.Table) *List {
	l.DDL(&sqlir.CreateTable{Table: t})
	for _, ix := range t.Indices {
		l.DDL(&sqlir.AddIndex{TableName: t.Name, Index: ix})
	}
	return l
}

// DropTable appends a table drop.
func (l *List) DropTable(name string) *List {
	return l.DDL(&sqlir.DropTable{TableName: name})
}
