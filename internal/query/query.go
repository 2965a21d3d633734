package query

import (
	"fmt"

	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/sqlir"
)

// Query is an immutable chain of stages. Every builder method returns a new
// Query whose parent is the receiver, so a Query can be shared and extended
// in several directions.
type Query struct {
	parent *Query
	stage  stage
}

type stage interface {
	stageName() string
}

type fromStage struct {
	table *schema.Table
}

type valuesStage struct {
	proj Projection
}

type whereStage struct {
	param string
	pred  Expr
}

type joinStage struct {
	kind        sqlir.JoinType
	right       *Query
	left, param string
	on          Expr
	proj        Projection
}

type groupStage struct {
	param      string
	key        Projection
	keyParam   string
	groupParam string
	result     Projection
}

type havingStage struct {
	keyParam   string
	groupParam string
	pred       Expr
}

type orderStage struct {
	param string
	key   Expr
	desc  bool
	then  bool
}

type offsetStage struct {
	n int
}

type limitStage struct {
	n int
}

type selectStage struct {
	param string
	proj  Projection
}

func (*fromStage) stageName() string   { return "From" }
func (*valuesStage) stageName() string { return "Values" }
func (*whereStage) stageName() string  { return "Where" }
func (s *joinStage) stageName() string {
	if s.kind == sqlir.LeftJoin {
		return "LeftJoin"
	}
	return "Join"
}
func (*groupStage) stageName() string  { return "GroupBy" }
func (*havingStage) stageName() string { return "Having" }
func (s *orderStage) stageName() string {
	if s.then {
		return "ThenBy"
	}
	return "OrderBy"
}
func (*offsetStage) stageName() string { return "Offset" }
func (*limitStage) stageName() string  { return "Limit" }
func (*selectStage) stageName() string { return "Select" }

// From starts a query over every row of t.
func From(t *schema.Table) *Query {
	return &Query{stage: &fromStage{table: t}}
}

// Values starts a query yielding exactly one row.
func Values(proj Projection) *Query {
	return &Query{stage: &valuesStage{proj: proj}}
}

func (q *Query) then(s stage) *Query {
	return &Query{parent: q, stage: s}
}

// Where keeps the rows for which pred, with the row bound to param, is true.
func (q *Query) Where(param string, pred Expr) *Query {
	return q.then(&whereStage{param: param, pred: pred})
}

// Join pairs every row of q (bound to left) with every row of right (bound to
// param) for which on is true. A nil projection yields records named after
// the two parameters.
func (q *Query) Join(right *Query, left, param string, on Expr, proj Projection) *Query {
	return q.join(sqlir.InnerJoin, right, left, param, on, proj)
}

// LeftJoin is Join that keeps unmatched rows of q, with param bound to an
// absent row.
func (q *Query) LeftJoin(right *Query, left, param string, on Expr, proj Projection) *Query {
	return q.join(sqlir.LeftJoin, right, left, param, on, proj)
}

func (q *Query) join(kind sqlir.JoinType, right *Query, left, param string, on Expr, proj Projection) *Query {
	if proj == nil {
		proj = Project(As(left, Ref(left)), As(param, Ref(param)))
	}
	return q.then(&joinStage{kind: kind, right: right, left: left, param: param, on: on, proj: proj})
}

// GroupBy partitions rows by the key projection. The result projection sees
// the key bound to keyParam and the group bound to groupParam; the group is
// only readable through aggregates.
func (q *Query) GroupBy(param string, key Projection, keyParam, groupParam string, result Projection) *Query {
	return q.then(&groupStage{param: param, key: key, keyParam: keyParam, groupParam: groupParam, result: result})
}

// Having filters groups. It must directly follow GroupBy or Having.
func (q *Query) Having(keyParam, groupParam string, pred Expr) *Query {
	return q.then(&havingStage{keyParam: keyParam, groupParam: groupParam, pred: pred})
}

// OrderBy sorts ascending by key, replacing any previous ordering.
func (q *Query) OrderBy(param string, key Expr) *Query {
	return q.then(&orderStage{param: param, key: key})
}

// OrderByDesc sorts descending by key, replacing any previous ordering.
func (q *Query) OrderByDesc(param string, key Expr) *Query {
	return q.then(&orderStage{param: param, key: key, desc: true})
}

// ThenBy adds an ascending tie-breaker. It must follow OrderBy or ThenBy.
func (q *Query) ThenBy(param string, key Expr) *Query {
	return q.then(&orderStage{param: param, key: key, then: true})
}

// ThenByDesc adds a descending tie-breaker.
func (q *Query) ThenByDesc(param string, key Expr) *Query {
	return q.then(&orderStage{param: param, key: key, desc: true, then: true})
}

// Offset skips n rows. A later Offset overwrites an earlier one.
func (q *Query) Offset(n int) *Query {
	return q.then(&offsetStage{n: n})
}

// Limit keeps at most n rows. A later Limit overwrites an earlier one.
func (q *Query) Limit(n int) *Query {
	return q.then(&limitStage{n: n})
}

// Select projects every row. A projection calling aggregates folds the
// whole input into one row; param is then only readable through aggregates.
func (q *Query) Select(param string, proj Projection) *Query {
	return q.then(&selectStage{param: param, proj: proj})
}

// Root returns the table of the initial From stage, or nil for Values.
func (q *Query) Root() *schema.Table {
	for cur := q; cur != nil; cur = cur.parent {
		if f, ok := cur.stage.(*fromStage); ok {
			return f.table
		}
	}
	return nil
}

// chain returns the stages from the root to q.
func (q *Query) chain() []*Query {
	var out []*Query
	for cur := q; cur != nil; cur = cur.parent {
		out = append(out, cur)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// String lists the stage names, e.g. "From.Where.Select".
func (q *Query) String() string {
	s := ""
	for i, st := range q.chain() {
		if i > 0 {
			s += "."
		}
		s += st.stage.stageName()
	}
	return s
}

// validate checks stage ordering rules shared by the parser and the
// evaluator.
func (q *Query) validate() error {
	stages := q.chain()
	windowed := false
	for i, st := range stages {
		var prev stage
		if i > 0 {
			prev = stages[i-1].stage
		}
		switch s := st.stage.(type) {
		case *fromStage, *valuesStage:
			if i != 0 {
				return fmt.Errorf("%s must start a query", s.stageName())
			}
		case *offsetStage:
			if s.n < 0 {
				return unsupportedStage("Offset", "count must not be negative")
			}
			windowed = true
		case *limitStage:
			if s.n < 0 {
				return unsupportedStage("Limit", "count must not be negative")
			}
			windowed = true
		case *selectStage:
		case *havingStage:
			if _, ok := prev.(*groupStage); !ok {
				if _, ok := prev.(*havingStage); !ok {
					return unsupportedStage("Having", "must follow GroupBy or Having")
				}
			}
		case *orderStage:
			if s.then {
				if _, ok := prev.(*orderStage); !ok {
					return unsupportedStage(s.stageName(), "must follow OrderBy or ThenBy")
				}
			}
		}
		if windowed {
			switch st.stage.(type) {
			case *offsetStage, *limitStage, *selectStage:
			default:
				return unsupportedAfterWindow(st.stage.stageName())
			}
		}
	}
	if len(stages) == 0 {
		return fmt.Errorf("empty query")
	}
	switch stages[0].stage.(type) {
	case *fromStage, *valuesStage:
	default:
		return fmt.Errorf("query must start with From or Values")
	}
	return nil
}

func unsupportedAfterWindow(name string) error {
	return unsupportedStage(name, "not allowed after Offset or Limit")
}

func unsupportedStage(name, detail string) error {
	return &sqlir.UnsupportedError{Construct: "stage", Name: name, Detail: detail}
}
