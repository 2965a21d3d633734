package query

import (
	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/sqlir"
	"github.com/roach88/typedsql/internal/value"
)

// Expr is a query expression. The same value is interpreted by the in-memory
// evaluator and translated by the Parser.
//
// This is a sealed interface - only types in this package implement it.
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

type refExpr struct {
	param string
	path  []string
}

type constExpr struct {
	value any
	typ   schema.Type
	err   error
}

type listExpr struct {
	items []Expr
}

type varExpr struct {
	v *Variable
}

type rawExpr struct {
	sql string
	typ schema.Type
}

type binaryExpr struct {
	op          sqlir.BinaryOp
	left, right Expr
}

type notExpr struct {
	operand Expr
}

type negExpr struct {
	operand Expr
}

type castExpr struct {
	operand Expr
	to      schema.Type

	// toNullable casts to the nullable form of the operand type.
	toNullable bool
}

type condExpr struct {
	test, then, els Expr
}

type callExpr struct {
	name  string
	group string
	args  []Expr
}

type inExpr struct {
	operand Expr
	list    *listExpr
	query   *Query
}

type subqueryExpr struct {
	query  *Query
	exists bool
}

func (*refExpr) exprNode()      {}
func (*constExpr) exprNode()    {}
func (*listExpr) exprNode()     {}
func (*varExpr) exprNode()      {}
func (*rawExpr) exprNode()      {}
func (*binaryExpr) exprNode()   {}
func (*notExpr) exprNode()      {}
func (*negExpr) exprNode()      {}
func (*castExpr) exprNode()     {}
func (*condExpr) exprNode()     {}
func (*callExpr) exprNode()     {}
func (*inExpr) exprNode()       {}
func (*subqueryExpr) exprNode() {}

// Ref refers to the whole row bound to param.
func Ref(param string) Expr {
	return &refExpr{param: param}
}

// F refers to a member of the row bound to param. A longer path descends
// into nested records: F("x", "u", "Name") is member Name of record u.
func F(param string, path ...string) Expr {
	return &refExpr{param: param, path: path}
}

// Const is a host value. Booleans render inline; other values become SQL
// parameters. nil is the NULL literal.
func Const(v any) Expr {
	if v == nil {
		return &constExpr{}
	}
	k := value.KindOf(v)
	nv, err := value.Coerce(v, k)
	return &constExpr{value: nv, typ: schema.Of(k), err: err}
}

// Null is the NULL literal. Its type is taken from the expression it is
// compared with or assigned to.
func Null() Expr {
	return &constExpr{}
}

// NullOf is a NULL literal of type t.
func NullOf(t schema.Type) Expr {
	return &constExpr{typ: t.OrNull()}
}

// List is a list of constants for In.
func List(values ...any) Expr {
	l := &listExpr{}
	for _, v := range values {
		l.items = append(l.items, Const(v))
	}
	return l
}

// Var reads a session variable.
func Var(v *Variable) Expr {
	return &varExpr{v: v}
}

// Raw is SQL text rendered verbatim. The in-memory evaluator rejects it.
func Raw(sql string, t schema.Type) Expr {
	return &rawExpr{sql: sql, typ: t}
}

func binary(op sqlir.BinaryOp, a, b Expr) Expr {
	return &binaryExpr{op: op, left: a, right: b}
}

// Eq compares for equality. Comparing with Null() tests IS NULL.
func Eq(a, b Expr) Expr { return binary(sqlir.OpEq, a, b) }

// Ne compares for inequality. Comparing with Null() tests IS NOT NULL.
func Ne(a, b Expr) Expr { return binary(sqlir.OpNe, a, b) }

func Lt(a, b Expr) Expr { return binary(sqlir.OpLt, a, b) }
func Le(a, b Expr) Expr { return binary(sqlir.OpLe, a, b) }
func Gt(a, b Expr) Expr { return binary(sqlir.OpGt, a, b) }
func Ge(a, b Expr) Expr { return binary(sqlir.OpGe, a, b) }

// And joins predicates; with no arguments it is true.
func And(preds ...Expr) Expr {
	if len(preds) == 0 {
		return Const(true)
	}
	out := preds[0]
	for _, p := range preds[1:] {
		out = binary(sqlir.OpAnd, out, p)
	}
	return out
}

// Or joins predicates; with no arguments it is false.
func Or(preds ...Expr) Expr {
	if len(preds) == 0 {
		return Const(false)
	}
	out := preds[0]
	for _, p := range preds[1:] {
		out = binary(sqlir.OpOr, out, p)
	}
	return out
}

func Not(e Expr) Expr { return &notExpr{operand: e} }
func Neg(e Expr) Expr { return &negExpr{operand: e} }

// Add adds numbers or concatenates strings.
func Add(a, b Expr) Expr { return binary(sqlir.OpAdd, a, b) }
func Sub(a, b Expr) Expr { return binary(sqlir.OpSub, a, b) }
func Mul(a, b Expr) Expr { return binary(sqlir.OpMul, a, b) }

// Div divides; integer operands truncate.
func Div(a, b Expr) Expr { return binary(sqlir.OpDiv, a, b) }
func Mod(a, b Expr) Expr { return binary(sqlir.OpMod, a, b) }

// Like matches a SQL LIKE pattern.
func Like(s, pattern Expr) Expr { return binary(sqlir.OpLike, s, pattern) }

// Cast converts e to type t.
func Cast(e Expr, t schema.Type) Expr {
	return &castExpr{operand: e, to: t}
}

// AsNullable widens e to the nullable form of its type.
func AsNullable(e Expr) Expr {
	return &castExpr{operand: e, toNullable: true}
}

// Cond is a conditional expression.
func Cond(test, then, els Expr) Expr {
	return &condExpr{test: test, then: then, els: els}
}

// Nullable reads a member through a possibly absent record: path[:len-1]
// names the record (empty for the row itself) and the last element the
// member. The result is NULL when the record is absent.
func Nullable(param string, path ...string) Expr {
	if len(path) == 0 {
		return Ref(param)
	}
	record := F(param, path[:len(path)-1]...)
	return Cond(Ne(record, Null()), AsNullable(F(param, path...)), Null())
}

// Coalesce returns a unless it is NULL, else b.
func Coalesce(a, b Expr) Expr {
	return Cond(Ne(a, Null()), a, b)
}

// In tests membership in a List.
func In(e Expr, list Expr) Expr {
	l, ok := list.(*listExpr)
	if !ok {
		l = &listExpr{items: []Expr{list}}
	}
	return &inExpr{operand: e, list: l}
}

// InQuery tests membership in the single-member result of q.
func InQuery(e Expr, q *Query) Expr {
	return &inExpr{operand: e, query: q}
}

// Exists tests whether q yields any row.
func Exists(q *Query) Expr {
	return &subqueryExpr{query: q, exists: true}
}

// Scalar is the single member of the first row of q, or NULL without rows.
func Scalar(q *Query) Expr {
	return &subqueryExpr{query: q}
}

// Call invokes a function by name. Names outside the supported library fail
// at parse and evaluation time.
func Call(name string, args ...Expr) Expr {
	return &callExpr{name: name, args: args}
}

func aggregate(name, group string, args ...Expr) Expr {
	return &callExpr{name: name, group: group, args: args}
}

// Count counts the rows of group. group is a GroupBy group parameter, or the
// row parameter of a Select whose projection aggregates the whole input.
func Count(group string) Expr { return aggregate(string(sqlir.FuncCount), group) }

// Sum adds e over the rows of group; e refers to the current row through the
// group parameter. NULL when no row contributes.
func Sum(group string, e Expr) Expr { return aggregate(string(sqlir.FuncSum), group, e) }

// Avg averages e over the rows of group. Integer input averages as float64.
func Avg(group string, e Expr) Expr { return aggregate(string(sqlir.FuncAvg), group, e) }

func Min(group string, e Expr) Expr { return aggregate(string(sqlir.FuncMin), group, e) }
func Max(group string, e Expr) Expr { return aggregate(string(sqlir.FuncMax), group, e) }

func Year(e Expr) Expr   { return Call(string(sqlir.FuncYear), e) }
func Month(e Expr) Expr  { return Call(string(sqlir.FuncMonth), e) }
func Day(e Expr) Expr    { return Call(string(sqlir.FuncDay), e) }
func Hour(e Expr) Expr   { return Call(string(sqlir.FuncHour), e) }
func Minute(e Expr) Expr { return Call(string(sqlir.FuncMinute), e) }
func Second(e Expr) Expr { return Call(string(sqlir.FuncSecond), e) }

// Concat concatenates strings; NULL if any argument is NULL.
func Concat(args ...Expr) Expr { return Call(string(sqlir.FuncConcat), args...) }

// LastInsertIdentity is the identity value generated by the latest insert
// into a table with an auto-increment column in this statement list.
func LastInsertIdentity(k schema.Kind) Expr {
	return &callExpr{name: string(sqlir.FuncLastInsertIdentity), args: []Expr{&constExpr{typ: schema.NullableOf(k)}}}
}

// Item is one named projection entry.
type Item struct {
	Name string
	Expr Expr
}

// As names a projection entry. An entry whose expression is a whole row or a
// nested record projects a nested record.
func As(name string, e Expr) Item {
	return Item{Name: name, Expr: e}
}

// Projection is an ordered list of named entries.
type Projection []Item

// Project builds a projection.
func Project(items ...Item) Projection {
	return Projection(items)
}

// hasAggregate reports whether the projection calls an aggregate outside of
// subqueries.
func (p Projection) hasAggregate() bool {
	for _, it := range p {
		if containsAggregate(it.Expr) {
			return true
		}
	}
	return false
}

func containsAggregate(e Expr) bool {
	switch x := e.(type) {
	case *callExpr:
		if sqlir.Func(x.name).IsAggregate() {
			return true
		}
		for _, a := range x.args {
			if containsAggregate(a) {
				return true
			}
		}
	case *binaryExpr:
		return containsAggregate(x.left) || containsAggregate(x.right)
	case *notExpr:
		return containsAggregate(x.operand)
	case *negExpr:
		return containsAggregate(x.operand)
	case *castExpr:
		return containsAggregate(x.operand)
	case *condExpr:
		return containsAggregate(x.test) || containsAggregate(x.then) || containsAggregate(x.els)
	case *inExpr:
		return containsAggregate(x.operand)
	}
	return false
}
