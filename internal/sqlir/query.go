package sqlir

import (
	"github.com/roach88/typedsql/internal/schema"
)

// Query is one SELECT under construction (SqlQuery). Exactly one of From and
// FromQuery is set.
type Query struct {
	From      *schema.Table
	FromQuery *Query
	FromAlias string
	Joins     []*Join
	Wheres    []Expr
	GroupBys  []Expr
	Havings   []Expr
	OrderBys  []OrderBy
	Result    *SubQueryResult
	Offset    *int
	Limit     *int
}

// IsFlat reports whether more clauses can be added to q without changing the
// meaning of clauses already present: no grouping, aggregation or window.
func (q *Query) IsFlat() bool {
	return len(q.GroupBys) == 0 && len(q.Havings) == 0 && q.Offset == nil && q.Limit == nil && !q.HasAggregates()
}

// HasWindow reports whether OFFSET or LIMIT is set.
func (q *Query) HasWindow() bool {
	return q.Offset != nil || q.Limit != nil
}

// HasAggregates reports whether any result member calls an aggregate.
func (q *Query) HasAggregates() bool {
	if q.Result == nil {
		return false
	}
	for _, m := range q.Result.Members {
		if ContainsAggregate(m.Expr()) {
			return true
		}
	}
	return false
}

// JoinType selects inner or left outer join.
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
)

func (t JoinType) String() string {
	if t == LeftJoin {
		return "LEFT JOIN"
	}
	return "INNER JOIN"
}

// Join is one joined source. Exactly one of Table and Query is set: a
// table join or a subquery join.
type Join struct {
	Type  JoinType
	Alias string
	Table *schema.Table
	Query *Query
	On    Expr
}

// OrderBy is one sort key.
type OrderBy struct {
	Expr       Expr
	Descending bool
}

// PlaceholderKind distinguishes session variables from raw SQL text.
type PlaceholderKind int

const (
	// SessionVariable is declared once per statement list and read by later
	// statements of the same list.
	SessionVariable PlaceholderKind = iota

	// RawExpression is SQL text rendered verbatim.
	RawExpression
)

// Placeholder is a session variable or a raw SQL fragment.
type Placeholder struct {
	Name string
	Type schema.Type
	Kind PlaceholderKind
}
