package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/sqlir"
	"github.com/roach88/typedsql/internal/value"
)

// isNull reports whether v is NULL or an absent record.
func isNull(v any) bool {
	if v == nil {
		return true
	}
	r, ok := v.(*value.Record)
	return ok && r == nil
}

func nullable(v any) any {
	if isNull(v) {
		return nil
	}
	return v
}

var arithOps = map[sqlir.BinaryOp]value.ArithOp{
	sqlir.OpAdd: value.OpAdd,
	sqlir.OpSub: value.OpSub,
	sqlir.OpMul: value.OpMul,
	sqlir.OpDiv: value.OpDiv,
	sqlir.OpMod: value.OpMod,
}

var dateParts = map[sqlir.Func]value.DatePart{
	sqlir.FuncYear:   value.PartYear,
	sqlir.FuncMonth:  value.PartMonth,
	sqlir.FuncDay:    value.PartDay,
	sqlir.FuncHour:   value.PartHour,
	sqlir.FuncMinute: value.PartMinute,
	sqlir.FuncSecond: value.PartSecond,
}

func (env *Env) evalExpr(e Expr, sc *evalScope) (any, error) {
	switch x := e.(type) {
	case *constExpr:
		return x.value, x.err
	case *refExpr:
		b, err := sc.lookup(x.param)
		if err != nil {
			return nil, err
		}
		if b.isGroup {
			return nil, fmt.Errorf("group %q is only readable through aggregates", x.param)
		}
		return lookupPath(b.rec, x.path)
	case *varExpr:
		return env.vars[x.v], nil
	case *rawExpr:
		return nil, &sqlir.UnsupportedError{Construct: "expression", Name: "Raw", Detail: "raw SQL cannot be evaluated in memory"}
	case *binaryExpr:
		return env.evalBinary(x, sc)
	case *notExpr:
		v, err := env.evalExpr(x.operand, sc)
		if err != nil || v == nil {
			return nil, err
		}
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("NOT of %T", v)
		}
		return !b, nil
	case *negExpr:
		v, err := env.evalExpr(x.operand, sc)
		if err != nil {
			return nil, err
		}
		return value.Negate(v)
	case *castExpr:
		v, err := env.evalExpr(x.operand, sc)
		if err != nil || x.toNullable || isNull(v) {
			return nullable(v), err
		}
		return value.Coerce(v, x.to.Kind)
	case *condExpr:
		ok, err := env.truth(x.test, sc)
		if err != nil {
			return nil, err
		}
		if ok {
			return env.evalExpr(x.then, sc)
		}
		return env.evalExpr(x.els, sc)
	case *callExpr:
		return env.evalCall(x, sc)
	case *inExpr:
		return env.evalIn(x, sc)
	case *subqueryExpr:
		return env.evalSubquery(x, sc)
	case *listExpr:
		return nil, fmt.Errorf("List is only valid as the right operand of In")
	}
	return nil, sqlir.Unsupported("expression", fmt.Sprintf("%T", e))
}

// lookupPath reads a member path. Reading through an absent record yields
// NULL; naming a member a present record lacks is an error.
func lookupPath(rec *value.Record, path []string) (any, error) {
	var cur any = rec
	for _, name := range path {
		r, ok := cur.(*value.Record)
		if !ok {
			return nil, fmt.Errorf("member %q: not a record", name)
		}
		if r == nil {
			return nil, nil
		}
		v, has := r.Get(name)
		if !has {
			return nil, fmt.Errorf("unknown member %q", strings.Join(path, "."))
		}
		cur = v
	}
	return cur, nil
}

func (env *Env) evalBinary(x *binaryExpr, sc *evalScope) (any, error) {
	if x.op.IsLogical() {
		return env.evalLogical(x, sc)
	}
	l, err := env.evalExpr(x.left, sc)
	if err != nil {
		return nil, err
	}
	r, err := env.evalExpr(x.right, sc)
	if err != nil {
		return nil, err
	}

	if x.op == sqlir.OpEq || x.op == sqlir.OpNe {
		switch {
		case isNullConst(x.right):
			return isNull(l) == (x.op == sqlir.OpEq), nil
		case isNullConst(x.left):
			return isNull(r) == (x.op == sqlir.OpEq), nil
		}
	}
	if isNull(l) || isNull(r) {
		return nil, nil
	}
	if _, ok := l.(*value.Record); ok {
		return nil, sqlir.Unsupported("expression", "row comparison")
	}
	if l, r, err = adaptConstants(x.left, x.right, l, r); err != nil {
		return nil, err
	}

	if op, ok := arithOps[x.op]; ok {
		return value.Arith(op, l, r)
	}
	if x.op == sqlir.OpLike {
		s, ok1 := l.(string)
		pat, ok2 := r.(string)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("LIKE on %T and %T", l, r)
		}
		return value.Like(s, pat), nil
	}

	c, err := value.Compare(l, r)
	if err != nil {
		return nil, err
	}
	switch x.op {
	case sqlir.OpEq:
		return c == 0, nil
	case sqlir.OpNe:
		return c != 0, nil
	case sqlir.OpLt:
		return c < 0, nil
	case sqlir.OpLe:
		return c <= 0, nil
	case sqlir.OpGt:
		return c > 0, nil
	case sqlir.OpGe:
		return c >= 0, nil
	}
	return nil, sqlir.Unsupported("operator", x.op.String())
}

// adaptConstants converts a constant operand to the kind of the other operand,
// as the parser does for SQL parameters.
func adaptConstants(le, re Expr, l, r any) (any, any, error) {
	var err error
	if isConst(le) && !isConst(re) && value.KindOf(l) != value.KindOf(r) {
		l, err = value.Coerce(l, value.KindOf(r))
	} else if isConst(re) && !isConst(le) && value.KindOf(l) != value.KindOf(r) {
		r, err = value.Coerce(r, value.KindOf(l))
	}
	return l, r, err
}

// evalLogical implements three-valued AND and OR.
func (env *Env) evalLogical(x *binaryExpr, sc *evalScope) (any, error) {
	l, err := env.evalBool(x.left, sc)
	if err != nil {
		return nil, err
	}
	if l != nil && *l == (x.op == sqlir.OpOr) {
		return *l, nil
	}
	r, err := env.evalBool(x.right, sc)
	if err != nil {
		return nil, err
	}
	if r != nil && *r == (x.op == sqlir.OpOr) {
		return *r, nil
	}
	if l == nil || r == nil {
		return nil, nil
	}
	return *l, nil
}

func (env *Env) evalBool(e Expr, sc *evalScope) (*bool, error) {
	v, err := env.evalExpr(e, sc)
	if err != nil || v == nil {
		return nil, err
	}
	b, ok := v.(bool)
	if !ok {
		return nil, fmt.Errorf("logical operand is %T, want bool", v)
	}
	return &b, nil
}

func (env *Env) evalCall(x *callExpr, sc *evalScope) (any, error) {
	f := sqlir.Func(x.name)
	if !library[f] {
		return nil, sqlir.Unsupported("function", x.name)
	}
	if f.IsAggregate() {
		return env.evalAggregate(f, x, sc)
	}
	if f == sqlir.FuncLastInsertIdentity {
		if env.identity == nil {
			return nil, nil
		}
		k := schema.Int64
		if len(x.args) == 1 {
			if c, ok := x.args[0].(*constExpr); ok && c.typ.IsValid() {
				k = c.typ.Kind
			}
		}
		return value.Coerce(env.identity, k)
	}

	args := make([]any, len(x.args))
	for i, a := range x.args {
		v, err := env.evalExpr(a, sc)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	switch {
	case f.IsDatePart():
		if len(args) != 1 {
			return nil, fmt.Errorf("%s takes one argument", f)
		}
		return value.ExtractPart(dateParts[f], args[0])
	case f == sqlir.FuncConcat:
		var b strings.Builder
		for _, a := range args {
			if a == nil {
				return nil, nil
			}
			s, ok := a.(string)
			if !ok {
				return nil, fmt.Errorf("Concat of %T", a)
			}
			b.WriteString(s)
		}
		return b.String(), nil
	case f == sqlir.FuncCoalesce:
		for _, a := range args {
			if !isNull(a) {
				return a, nil
			}
		}
		return nil, nil
	}
	return nil, sqlir.Unsupported("function", x.name)
}

func (env *Env) evalAggregate(f sqlir.Func, x *callExpr, sc *evalScope) (any, error) {
	b, err := sc.lookup(x.group)
	if err != nil {
		return nil, err
	}
	if !b.isGroup {
		return nil, fmt.Errorf("%s over %q: not a group", f, x.group)
	}
	if f == sqlir.FuncCount {
		return int64(len(b.group)), nil
	}
	if len(x.args) != 1 {
		return nil, fmt.Errorf("%s takes one argument", f)
	}

	var vals []any
	for _, elem := range b.group {
		v, err := env.evalExpr(x.args[0], sc.bind(x.group, elem))
		if err != nil {
			return nil, err
		}
		if !isNull(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return nil, nil
	}

	switch f {
	case sqlir.FuncSum:
		return sum(vals)
	case sqlir.FuncAvg:
		return average(vals)
	case sqlir.FuncMin, sqlir.FuncMax:
		best := vals[0]
		for _, v := range vals[1:] {
			c, err := value.Compare(v, best)
			if err != nil {
				return nil, err
			}
			if f == sqlir.FuncMin && c < 0 || f == sqlir.FuncMax && c > 0 {
				best = v
			}
		}
		return best, nil
	}
	return nil, sqlir.Unsupported("function", x.name)
}

func sum(vals []any) (any, error) {
	acc := vals[0]
	for _, v := range vals[1:] {
		var err error
		if acc, err = value.Arith(value.OpAdd, acc, v); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// average is a decimal mean for decimal input and a float64 mean otherwise.
func average(vals []any) (any, error) {
	if _, ok := vals[0].(decimal.Decimal); ok {
		total, err := sum(vals)
		if err != nil {
			return nil, err
		}
		return value.Arith(value.OpDiv, total, decimal.NewFromInt(int64(len(vals))))
	}
	var total float64
	for _, v := range vals {
		f, err := value.Coerce(v, schema.Float64)
		if err != nil {
			return nil, err
		}
		total += f.(float64)
	}
	return total / float64(len(vals)), nil
}

func (env *Env) evalIn(x *inExpr, sc *evalScope) (any, error) {
	l, err := env.evalExpr(x.operand, sc)
	if err != nil {
		return nil, err
	}
	var items []any
	if x.query != nil {
		rows, err := env.evalQuery(x.query, sc)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			v, err := single(r.Record)
			if err != nil {
				return nil, fmt.Errorf("In subquery: %w", err)
			}
			items = append(items, v)
		}
	} else {
		for _, it := range x.list.items {
			v, err := env.evalExpr(it, sc)
			if err != nil {
				return nil, err
			}
			if !isNull(v) && !isNull(l) && value.KindOf(v) != value.KindOf(l) {
				if v, err = value.Coerce(v, value.KindOf(l)); err != nil {
					return nil, err
				}
			}
			items = append(items, v)
		}
	}
	if len(items) == 0 {
		return false, nil
	}
	if isNull(l) {
		return nil, nil
	}
	sawNull := false
	for _, v := range items {
		if isNull(v) {
			sawNull = true
			continue
		}
		if value.Equal(l, v) {
			return true, nil
		}
	}
	if sawNull {
		return nil, nil
	}
	return false, nil
}

var errScalarRows = errors.New("scalar subquery returned more than one row")

func (env *Env) evalSubquery(x *subqueryExpr, sc *evalScope) (any, error) {
	rows, err := env.evalQuery(x.query, sc)
	if err != nil {
		return nil, err
	}
	if x.exists {
		return len(rows) > 0, nil
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return single(rows[0].Record)
	}
	return nil, errScalarRows
}

// single returns the only field of a one-member record.
func single(rec *value.Record) (any, error) {
	names := rec.Names()
	if len(names) != 1 {
		return nil, fmt.Errorf("subquery must select exactly one member, got %d", len(names))
	}
	v, _ := rec.Get(names[0])
	if _, ok := v.(*value.Record); ok {
		return nil, fmt.Errorf("subquery must select a scalar member")
	}
	return v, nil
}
