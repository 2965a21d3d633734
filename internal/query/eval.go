package query

import (
	"fmt"
	"sort"

	"github.com/roach88/typedsql/internal/memory"
	"github.com/roach88/typedsql/internal/sqlir"
	"github.com/roach88/typedsql/internal/value"
)

// Env is the state of one in-memory statement list run: the store, the
// values of session variables and the last identity generated by an insert.
type Env struct {
	store    *memory.Store
	vars     map[*Variable]any
	identity any
}

// NewEnv returns an environment over store with no variables set.
func NewEnv(store *memory.Store) *Env {
	return &Env{store: store, vars: make(map[*Variable]any)}
}

func (env *Env) Store() *memory.Store { return env.store }

// Var returns the value of v, nil when unset.
func (env *Env) Var(v *Variable) any { return env.vars[v] }

func (env *Env) SetVar(v *Variable, x any) { env.vars[v] = x }

// Identity returns the identity generated by the latest insert.
func (env *Env) Identity() any { return env.identity }

func (env *Env) SetIdentity(id any) { env.identity = id }

// Source locates a store row that contributed to a result row.
type Source struct {
	Table string
	Index int
}

// Row is one evaluated row and the store rows it was built from. Sources is
// empty once rows have been folded by grouping or aggregation.
type Row struct {
	Record  *value.Record
	Sources []Source
}

// Source returns the arena index of the row of table that produced r.
func (r Row) Source(table string) (int, bool) {
	for _, s := range r.Sources {
		if s.Table == table {
			return s.Index, true
		}
	}
	return 0, false
}

// Bound binds a parameter name to a record for Eval.
type Bound struct {
	Param  string
	Record *value.Record
}

// Rows evaluates q.
func (env *Env) Rows(q *Query) ([]Row, error) {
	return env.evalQuery(q, nil)
}

// Records evaluates q and returns copies of the result records.
func (env *Env) Records(q *Query) ([]*value.Record, error) {
	rows, err := env.Rows(q)
	if err != nil {
		return nil, err
	}
	out := make([]*value.Record, len(rows))
	for i, r := range rows {
		out[i] = r.Record.Clone()
	}
	return out, nil
}

// Eval evaluates e with the given row bindings.
func (env *Env) Eval(e Expr, bindings ...Bound) (any, error) {
	var sc *evalScope
	for _, b := range bindings {
		sc = sc.bind(b.Param, b.Record)
	}
	return env.evalExpr(e, sc)
}

type evalScope struct {
	name    string
	rec     *value.Record
	group   []*value.Record
	isGroup bool
	outer   *evalScope
}

func (s *evalScope) bind(name string, rec *value.Record) *evalScope {
	return &evalScope{name: name, rec: rec, outer: s}
}

func (s *evalScope) bindGroup(name string, rows []*value.Record) *evalScope {
	return &evalScope{name: name, group: rows, isGroup: true, outer: s}
}

func (s *evalScope) lookup(name string) (*evalScope, error) {
	for cur := s; cur != nil; cur = cur.outer {
		if cur.name == name {
			return cur, nil
		}
	}
	return nil, fmt.Errorf("unbound parameter %q", name)
}

// stream is the output of a stage. The window is recorded, not applied, so
// Offset and Limit overwrite each other and take effect once.
type stream struct {
	rows   []Row
	offset *int
	limit  *int

	// groups is set directly after GroupBy and Having, one entry per row.
	groups []group
}

type group struct {
	key   *value.Record
	elems []*value.Record
}

func (s *stream) materialize() []Row {
	rows := s.rows
	if s.offset != nil {
		rows = rows[min(*s.offset, len(rows)):]
	}
	if s.limit != nil {
		rows = rows[:min(*s.limit, len(rows))]
	}
	return rows
}

func (env *Env) evalQuery(q *Query, outer *evalScope) ([]Row, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	s, err := env.evalStage(q, outer)
	if err != nil {
		return nil, err
	}
	return s.materialize(), nil
}

func (env *Env) evalStage(q *Query, sc *evalScope) (*stream, error) {
	switch s := q.stage.(type) {
	case *fromStage:
		t, err := env.store.Table(s.table.Name)
		if err != nil {
			return nil, err
		}
		out := &stream{}
		for i, r := range t.Rows() {
			out.rows = append(out.rows, Row{Record: r, Sources: []Source{{Table: s.table.Name, Index: i}}})
		}
		return out, nil
	case *valuesStage:
		rec, err := env.project(s.proj, sc)
		if err != nil {
			return nil, err
		}
		return &stream{rows: []Row{{Record: rec}}}, nil
	case *orderStage:
		return env.evalOrder(q, sc)
	}

	ps, err := env.evalStage(q.parent, sc)
	if err != nil {
		return nil, err
	}

	switch s := q.stage.(type) {
	case *whereStage:
		out := &stream{}
		for _, r := range ps.rows {
			ok, err := env.truth(s.pred, sc.bind(s.param, r.Record))
			if err != nil {
				return nil, fmt.Errorf("Where: %w", err)
			}
			if ok {
				out.rows = append(out.rows, r)
			}
		}
		return out, nil

	case *joinStage:
		return env.evalJoin(ps, s, sc)

	case *groupStage:
		return env.evalGroup(ps, s, sc)

	case *havingStage:
		out := &stream{}
		for i, r := range ps.rows {
			g := ps.groups[i]
			ok, err := env.truth(s.pred, sc.bind(s.keyParam, g.key).bindGroup(s.groupParam, g.elems))
			if err != nil {
				return nil, fmt.Errorf("Having: %w", err)
			}
			if ok {
				out.rows = append(out.rows, r)
				out.groups = append(out.groups, g)
			}
		}
		return out, nil

	case *offsetStage:
		n := s.n
		ps.offset = &n
		return ps, nil

	case *limitStage:
		n := s.n
		ps.limit = &n
		return ps, nil

	case *selectStage:
		if s.proj.hasAggregate() {
			rows := ps.materialize()
			elems := make([]*value.Record, len(rows))
			for i, r := range rows {
				elems[i] = r.Record
			}
			rec, err := env.project(s.proj, sc.bindGroup(s.param, elems))
			if err != nil {
				return nil, fmt.Errorf("Select: %w", err)
			}
			return &stream{rows: []Row{{Record: rec}}}, nil
		}
		out := &stream{offset: ps.offset, limit: ps.limit, rows: make([]Row, 0, len(ps.rows))}
		for _, r := range ps.rows {
			rec, err := env.project(s.proj, sc.bind(s.param, r.Record))
			if err != nil {
				return nil, fmt.Errorf("Select: %w", err)
			}
			out.rows = append(out.rows, Row{Record: rec, Sources: r.Sources})
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown stage %T", q.stage)
}

func (env *Env) evalJoin(left *stream, s *joinStage, sc *evalScope) (*stream, error) {
	right, err := env.evalQuery(s.right, sc)
	if err != nil {
		return nil, err
	}
	out := &stream{}
	emit := func(l Row, r *Row) error {
		var rrec *value.Record
		sources := copySources(l)
		if r != nil {
			rrec = r.Record
			sources = append(sources, r.Sources...)
		}
		rec, err := env.project(s.proj, sc.bind(s.left, l.Record).bind(s.param, rrec))
		if err != nil {
			return err
		}
		out.rows = append(out.rows, Row{Record: rec, Sources: sources})
		return nil
	}
	for _, l := range left.rows {
		matched := false
		for i := range right {
			ok, err := env.truth(s.on, sc.bind(s.left, l.Record).bind(s.param, right[i].Record))
			if err != nil {
				return nil, fmt.Errorf("%s on: %w", s.stageName(), err)
			}
			if !ok {
				continue
			}
			matched = true
			if err := emit(l, &right[i]); err != nil {
				return nil, err
			}
		}
		if !matched && s.kind == sqlir.LeftJoin {
			if err := emit(l, nil); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func copySources(r Row) []Source {
	if len(r.Sources) == 0 {
		return nil
	}
	return append([]Source(nil), r.Sources...)
}

func (env *Env) evalGroup(ps *stream, s *groupStage, sc *evalScope) (*stream, error) {
	index := make(map[string]int)
	var groups []group
	for _, r := range ps.rows {
		key, err := env.project(s.key, sc.bind(s.param, r.Record))
		if err != nil {
			return nil, fmt.Errorf("GroupBy key: %w", err)
		}
		k := value.Key(key)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, group{key: key})
		}
		groups[i].elems = append(groups[i].elems, r.Record)
	}

	out := &stream{groups: groups}
	for _, g := range groups {
		rec, err := env.project(s.result, sc.bind(s.keyParam, g.key).bindGroup(s.groupParam, g.elems))
		if err != nil {
			return nil, fmt.Errorf("GroupBy result: %w", err)
		}
		out.rows = append(out.rows, Row{Record: rec})
	}
	return out, nil
}

// evalOrder sorts by the keys of a run of OrderBy and ThenBy stages at once.
func (env *Env) evalOrder(q *Query, sc *evalScope) (*stream, error) {
	var keys []*orderStage
	cur := q
	for {
		os := cur.stage.(*orderStage)
		keys = append([]*orderStage{os}, keys...)
		cur = cur.parent
		if !os.then {
			break
		}
	}
	ps, err := env.evalStage(cur, sc)
	if err != nil {
		return nil, err
	}

	values := make([][]any, len(ps.rows))
	for i, r := range ps.rows {
		values[i] = make([]any, len(keys))
		for j, k := range keys {
			v, err := env.evalExpr(k.key, sc.bind(k.param, r.Record))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k.stageName(), err)
			}
			values[i][j] = v
		}
	}

	idx := make([]int, len(ps.rows))
	for i := range idx {
		idx[i] = i
	}
	var sortErr error
	sort.SliceStable(idx, func(a, b int) bool {
		for j, k := range keys {
			c, err := value.Compare(nullable(values[idx[a]][j]), nullable(values[idx[b]][j]))
			if err != nil {
				sortErr = err
				return false
			}
			if c == 0 {
				continue
			}
			if k.desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	if sortErr != nil {
		return nil, sortErr
	}

	out := &stream{rows: make([]Row, len(idx))}
	for i, j := range idx {
		out.rows[i] = ps.rows[j]
	}
	return out, nil
}

func (env *Env) project(proj Projection, sc *evalScope) (*value.Record, error) {
	rec := value.NewRecord()
	for _, it := range proj {
		if _, dup := rec.Get(it.Name); dup {
			return nil, fmt.Errorf("duplicate member name %q", it.Name)
		}
		v, err := env.evalExpr(it.Expr, sc)
		if err != nil {
			return nil, fmt.Errorf("member %q: %w", it.Name, err)
		}
		rec.Set(it.Name, v)
	}
	return rec, nil
}

func (env *Env) truth(e Expr, sc *evalScope) (bool, error) {
	v, err := env.evalExpr(e, sc)
	if err != nil {
		return false, err
	}
	switch b := v.(type) {
	case nil:
		return false, nil
	case bool:
		return b, nil
	}
	return false, fmt.Errorf("predicate yielded %T, want bool", v)
}
