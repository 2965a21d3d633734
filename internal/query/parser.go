package query

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/sqlir"
)

// Parser translates queries and expressions into sqlir.
//
// One Parser is used for a whole statement list: table aliases (a0, a1, ...)
// and constant parameters (p0, p1, ...) are numbered across every statement it
// parses, and each Variable maps to a single Placeholder.
type Parser struct {
	aliases   int
	constants map[string]any
	order     []string
	vars      map[*Variable]*sqlir.Placeholder
}

// NewParser returns a parser with empty alias and constant state.
func NewParser() *Parser {
	return &Parser{
		constants: make(map[string]any),
		vars:      make(map[*Variable]*sqlir.Placeholder),
	}
}

// Binding binds a parameter name to the members of a parsed query result.
type Binding struct {
	Param  string
	Result *sqlir.SubQueryResult
}

// Parse translates q into a sqlir query.
func (p *Parser) Parse(q *Query) (*sqlir.Query, error) {
	return p.parseQuery(q, nil)
}

// ParseExpr translates e. Row parameters referenced by e must be bound. A
// valid want type coerces constants and types NULL literals.
func (p *Parser) ParseExpr(e Expr, want schema.Type, bindings ...Binding) (sqlir.Expr, error) {
	var sc *scope
	for _, b := range bindings {
		sc = sc.with(b.Param, &binding{result: b.Result})
	}
	var w *schema.Type
	if want.IsValid() {
		w = &want
	}
	return p.expr(e, sc, w)
}

// Placeholder returns the placeholder of v, creating it on first use.
func (p *Parser) Placeholder(v *Variable) *sqlir.Placeholder {
	ph, ok := p.vars[v]
	if !ok {
		ph = &sqlir.Placeholder{Name: v.name, Type: v.typ, Kind: sqlir.SessionVariable}
		p.vars[v] = ph
	}
	return ph
}

// Params returns the constant parameter names in creation order.
func (p *Parser) Params() []string {
	return slices.Clone(p.order)
}

// Constants returns a copy of the constant parameter values by name.
func (p *Parser) Constants() map[string]any {
	return maps.Clone(p.constants)
}

// Args resolves parameter names to their bound values.
func (p *Parser) Args(names []string) ([]any, error) {
	args := make([]any, len(names))
	for i, n := range names {
		v, ok := p.constants[n]
		if !ok {
			return nil, fmt.Errorf("unknown parameter %q", n)
		}
		args[i] = v
	}
	return args, nil
}

func (p *Parser) alias() string {
	a := fmt.Sprintf("a%d", p.aliases)
	p.aliases++
	return a
}

func (p *Parser) constant(v any, t schema.Type) *sqlir.Param {
	name := fmt.Sprintf("p%d", len(p.order))
	p.constants[name] = v
	p.order = append(p.order, name)
	return &sqlir.Param{Name: name, T: t}
}

type binding struct {
	result *sqlir.SubQueryResult

	// group is set for a GroupBy group or an implicitly aggregated row. Its
	// members are only readable inside aggregate arguments.
	group bool
}

type scope struct {
	name  string
	b     *binding
	outer *scope
}

func (s *scope) with(name string, b *binding) *scope {
	return &scope{name: name, b: b, outer: s}
}

func (s *scope) lookup(name string) (*binding, error) {
	for cur := s; cur != nil; cur = cur.outer {
		if cur.name == name {
			return cur.b, nil
		}
	}
	return nil, fmt.Errorf("unbound parameter %q", name)
}

// parsed is a query under construction plus grouping state for Having.
type parsed struct {
	q     *sqlir.Query
	group *groupInfo
}

type groupInfo struct {
	key   *sqlir.SubQueryResult
	elems *sqlir.SubQueryResult
}

func (p *Parser) parseQuery(q *Query, outer *scope) (*sqlir.Query, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	st, err := p.parseStage(q, outer)
	if err != nil {
		return nil, err
	}
	return st.q, nil
}

func (p *Parser) parseStage(q *Query, outer *scope) (*parsed, error) {
	switch s := q.stage.(type) {
	case *fromStage:
		alias := p.alias()
		return &parsed{q: &sqlir.Query{
			From:      s.table,
			FromAlias: alias,
			Result:    &sqlir.SubQueryResult{Members: tableMembers(s.table, alias, false)},
		}}, nil
	case *valuesStage:
		res, err := p.projection(s.proj, outer)
		if err != nil {
			return nil, err
		}
		return &parsed{q: &sqlir.Query{Result: res}}, nil
	}

	pp, err := p.parseStage(q.parent, outer)
	if err != nil {
		return nil, err
	}
	cur := pp.q

	switch s := q.stage.(type) {
	case *whereStage:
		cur = p.flatten(cur)
		pred, err := p.predicate(s.pred, outer.with(s.param, &binding{result: cur.Result}))
		if err != nil {
			return nil, fmt.Errorf("Where: %w", err)
		}
		cur.Wheres = append(cur.Wheres, pred)
		return &parsed{q: cur}, nil

	case *joinStage:
		cur = p.flatten(cur)
		if err := p.join(cur, s, outer); err != nil {
			return nil, fmt.Errorf("%s: %w", s.stageName(), err)
		}
		return &parsed{q: cur}, nil

	case *groupStage:
		cur = p.flatten(cur)
		cur.OrderBys = nil
		elems := cur.Result
		key, err := p.projection(s.key, outer.with(s.param, &binding{result: elems}))
		if err != nil {
			return nil, fmt.Errorf("GroupBy key: %w", err)
		}
		for _, m := range key.Members {
			cur.GroupBys = append(cur.GroupBys, m.Expr())
		}
		sc := outer.with(s.keyParam, &binding{result: key}).with(s.groupParam, &binding{result: elems, group: true})
		res, err := p.projection(s.result, sc)
		if err != nil {
			return nil, fmt.Errorf("GroupBy result: %w", err)
		}
		cur.Result = res
		return &parsed{q: cur, group: &groupInfo{key: key, elems: elems}}, nil

	case *havingStage:
		sc := outer.with(s.keyParam, &binding{result: pp.group.key}).with(s.groupParam, &binding{result: pp.group.elems, group: true})
		pred, err := p.predicate(s.pred, sc)
		if err != nil {
			return nil, fmt.Errorf("Having: %w", err)
		}
		cur.Havings = append(cur.Havings, pred)
		return &parsed{q: cur, group: pp.group}, nil

	case *orderStage:
		if !s.then {
			cur = p.flatten(cur)
		}
		key, err := p.expr(s.key, outer.with(s.param, &binding{result: cur.Result}), nil)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.stageName(), err)
		}
		if !s.then {
			cur.OrderBys = nil
		}
		cur.OrderBys = append(cur.OrderBys, sqlir.OrderBy{Expr: key, Descending: s.desc})
		return &parsed{q: cur}, nil

	case *offsetStage:
		n := s.n
		cur.Offset = &n
		return &parsed{q: cur}, nil

	case *limitStage:
		n := s.n
		cur.Limit = &n
		return &parsed{q: cur}, nil

	case *selectStage:
		b := &binding{result: cur.Result}
		if s.proj.hasAggregate() {
			if !cur.IsFlat() || isSourceless(cur) {
				cur = p.wrap(cur)
			}
			cur.OrderBys = nil
			b = &binding{result: cur.Result, group: true}
		}
		res, err := p.projection(s.proj, outer.with(s.param, b))
		if err != nil {
			return nil, fmt.Errorf("Select: %w", err)
		}
		cur.Result = res
		return &parsed{q: cur}, nil
	}
	return nil, sqlir.Unsupported("stage", fmt.Sprintf("%T", q.stage))
}

func (p *Parser) join(cur *sqlir.Query, s *joinStage, outer *scope) error {
	j := &sqlir.Join{Type: s.kind}
	left := s.kind == sqlir.LeftJoin
	var right *sqlir.SubQueryResult
	if f, ok := s.right.stage.(*fromStage); ok && s.right.parent == nil {
		j.Alias = p.alias()
		j.Table = f.table
		right = &sqlir.SubQueryResult{Members: tableMembers(f.table, j.Alias, left)}
	} else {
		rq, err := p.parseQuery(s.right, outer)
		if err != nil {
			return err
		}
		if !rq.HasWindow() {
			rq.OrderBys = nil
		}
		j.Alias = p.alias()
		j.Query = rq
		right = &sqlir.SubQueryResult{Members: joinMembers(rq.Result, j.Alias, left)}
	}

	sc := outer.with(s.left, &binding{result: cur.Result}).with(s.param, &binding{result: right})
	on, err := p.predicate(s.on, sc)
	if err != nil {
		return fmt.Errorf("on: %w", err)
	}
	j.On = on
	res, err := p.projection(s.proj, sc)
	if err != nil {
		return err
	}
	cur.Joins = append(cur.Joins, j)
	cur.Result = res
	return nil
}

func tableMembers(t *schema.Table, alias string, nullable bool) []sqlir.Member {
	members := make([]sqlir.Member, 0, len(t.Columns))
	for _, c := range t.Columns {
		members = append(members, &sqlir.TableFieldMember{Name: c.MemberName, Alias: alias, Column: c, Nullable: nullable})
	}
	return members
}

func joinMembers(res *sqlir.SubQueryResult, alias string, nullable bool) []sqlir.Member {
	members := make([]sqlir.Member, 0, len(res.Members))
	for _, m := range res.Members {
		members = append(members, &sqlir.JoinFieldMember{
			Name:       m.MemberName(),
			Alias:      alias,
			SourceName: m.MemberName(),
			Source:     m,
			Nullable:   nullable,
		})
	}
	return members
}

func isSourceless(q *sqlir.Query) bool {
	return q.From == nil && q.FromQuery == nil
}

// flatten returns q if clauses can be added to it directly, or a new query
// selecting from q as a subquery.
func (p *Parser) flatten(q *sqlir.Query) *sqlir.Query {
	if q.IsFlat() && !isSourceless(q) {
		return q
	}
	return p.wrap(q)
}

// wrap nests inner as the FROM subquery of a new query exposing the same
// members. The inner ordering only survives when a window depends on it.
func (p *Parser) wrap(inner *sqlir.Query) *sqlir.Query {
	if !inner.HasWindow() {
		inner.OrderBys = nil
	}
	alias := p.alias()
	return &sqlir.Query{
		FromQuery: inner,
		FromAlias: alias,
		Result:    &sqlir.SubQueryResult{Members: joinMembers(inner.Result, alias, false)},
	}
}

// projection translates proj into result members. An item whose expression
// is a whole row or nested record expands to one member per field, named
// "item.field".
func (p *Parser) projection(proj Projection, sc *scope) (*sqlir.SubQueryResult, error) {
	res := &sqlir.SubQueryResult{}
	seen := make(map[string]bool)
	add := func(m sqlir.Member) error {
		if seen[m.MemberName()] {
			return fmt.Errorf("duplicate member name %q", m.MemberName())
		}
		seen[m.MemberName()] = true
		res.Members = append(res.Members, m)
		return nil
	}

	for _, it := range proj {
		if it.Name == "" || strings.Contains(it.Name, ".") {
			return nil, fmt.Errorf("invalid member name %q", it.Name)
		}
		if ref, ok := it.Expr.(*refExpr); ok {
			members, err := p.refMembers(ref, sc)
			if err != nil {
				return nil, err
			}
			prefix := strings.Join(ref.path, ".")
			if len(members) == 1 && members[0].MemberName() == prefix && prefix != "" {
				if err := add(sqlir.Rename(members[0], it.Name)); err != nil {
					return nil, err
				}
				continue
			}
			for _, m := range members {
				rest := m.MemberName()
				if prefix != "" {
					rest = strings.TrimPrefix(rest, prefix+".")
				}
				if err := add(sqlir.Rename(m, it.Name+"."+rest)); err != nil {
					return nil, err
				}
			}
			continue
		}
		e, err := p.expr(it.Expr, sc, nil)
		if err != nil {
			return nil, fmt.Errorf("member %q: %w", it.Name, err)
		}
		if _, ok := e.(*sqlir.RowRef); ok {
			return nil, fmt.Errorf("member %q: a row can only be projected directly", it.Name)
		}
		if err := add(&sqlir.ExprMember{Name: it.Name, Value: e}); err != nil {
			return nil, err
		}
	}
	if len(res.Members) == 0 {
		return nil, fmt.Errorf("empty projection")
	}
	return res, nil
}

// refMembers resolves a reference to the single member it names or to the
// members of the record it names.
func (p *Parser) refMembers(ref *refExpr, sc *scope) ([]sqlir.Member, error) {
	b, err := sc.lookup(ref.param)
	if err != nil {
		return nil, err
	}
	if b.group {
		return nil, fmt.Errorf("group %q is only readable through aggregates", ref.param)
	}
	prefix := strings.Join(ref.path, ".")
	if prefix != "" {
		if m, ok := b.result.Lookup(prefix); ok {
			return []sqlir.Member{m}, nil
		}
	}
	nested := b.result.Nested(prefix)
	if len(nested) == 0 {
		return nil, fmt.Errorf("unknown member %q of %q", prefix, ref.param)
	}
	return nested, nil
}
