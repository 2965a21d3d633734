package stmt

import (
	"fmt"

	"github.com/roach88/typedsql/internal/query"
	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/sqlir"
	"github.com/roach88/typedsql/internal/value"
)

// Declare declares a session variable.
type Declare struct {
	v *query.Variable
}

func (s *Declare) Parse(p *query.Parser) ([]sqlir.Statement, error) {
	return []sqlir.Statement{&sqlir.DeclareVariable{Placeholder: p.Placeholder(s.v)}}, nil
}

func (s *Declare) Run(env *query.Env) (Result, error) {
	env.SetVar(s.v, nil)
	return Result{}, nil
}

// Set assigns a session variable.
type Set struct {
	v     *query.Variable
	value query.Expr
}

func (s *Set) Parse(p *query.Parser) ([]sqlir.Statement, error) {
	e, err := p.ParseExpr(s.value, s.v.Type())
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", s.v.Name(), err)
	}
	if e.Type().Kind != s.v.Type().Kind {
		return nil, &sqlir.TypeError{Op: "assignment to " + s.v.Name(), Left: s.v.Type().String(), Right: e.Type().String()}
	}
	return []sqlir.Statement{&sqlir.SetVariable{Placeholder: p.Placeholder(s.v), Value: e}}, nil
}

func (s *Set) Run(env *query.Env) (Result, error) {
	if _, err := s.Parse(query.NewParser()); err != nil {
		return Result{}, err
	}
	v, err := env.Eval(s.value)
	if err != nil {
		return Result{}, fmt.Errorf("variable %q: %w", s.v.Name(), err)
	}
	if v != nil {
		if v, err = value.Coerce(v, s.v.Type().Kind); err != nil {
			return Result{}, fmt.Errorf("variable %q: %w", s.v.Name(), err)
		}
	}
	env.SetVar(s.v, v)
	return Result{}, nil
}

// If runs one of two nested lists. A NULL test takes the else branch.
type If struct {
	test query.Expr
	then *List
	els  *List
}

func (s *If) Parse(p *query.Parser) ([]sqlir.Statement, error) {
	test, err := p.ParseExpr(s.test, schema.Of(schema.Bool))
	if err != nil {
		return nil, err
	}
	if test.Type().Kind != schema.Bool {
		return nil, &sqlir.TypeError{Op: "if", Left: schema.Of(schema.Bool).String(), Right: test.Type().String()}
	}
	then, err := s.then.Parse(p)
	if err != nil {
		return nil, fmt.Errorf("then: %w", err)
	}
	els, err := s.els.Parse(p)
	if err != nil {
		return nil, fmt.Errorf("else: %w", err)
	}
	return []sqlir.Statement{&sqlir.If{Test: test, Then: then, Else: els}}, nil
}

func (s *If) Run(env *query.Env) (Result, error) {
	v, err := env.Eval(s.test)
	if err != nil {
		return Result{}, err
	}
	if b, ok := v.(bool); ok && b {
		return s.then.Run(env)
	}
	return s.els.Run(env)
}

// DDL wraps a schema statement.
type DDL struct {
	stmt sqlir.Statement
}

func (s *DDL) Parse(*query.Parser) ([]sqlir.Statement, error) {
	if !sqlir.IsDDL(s.stmt) {
		return nil, sqlir.Unsupported("statement", fmt.Sprintf("%T", s.stmt))
	}
	return []sqlir.Statement{s.stmt}, nil
}

func (s *DDL) Run(env *query.Env) (Result, error) {
	if !sqlir.IsDDL(s.stmt) {
		return Result{}, sqlir.Unsupported("statement", fmt.Sprintf("%T", s.stmt))
	}
	return Result{}, env.Store().Apply(s.stmt)
}
