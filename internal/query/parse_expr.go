package query

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/sqlir"
	"github.com/roach88/typedsql/internal/value"
)

var boolType = schema.Of(schema.Bool)

// library lists the functions Call accepts by name.
var library = map[sqlir.Func]bool{
	sqlir.FuncCount:              true,
	sqlir.FuncSum:                true,
	sqlir.FuncAvg:                true,
	sqlir.FuncMin:                true,
	sqlir.FuncMax:                true,
	sqlir.FuncYear:               true,
	sqlir.FuncMonth:              true,
	sqlir.FuncDay:                true,
	sqlir.FuncHour:               true,
	sqlir.FuncMinute:             true,
	sqlir.FuncSecond:             true,
	sqlir.FuncConcat:             true,
	sqlir.FuncCoalesce:           true,
	sqlir.FuncLastInsertIdentity: true,
}

func (p *Parser) predicate(e Expr, sc *scope) (sqlir.Expr, error) {
	x, err := p.expr(e, sc, &boolType)
	if err != nil {
		return nil, err
	}
	if x.Type().Kind != schema.Bool {
		return nil, fmt.Errorf("predicate has type %s, want bool", x.Type())
	}
	return x, nil
}

// expr translates e. want, if set, is the type of the expression e is
// combined with; constants are coerced to it and NULL literals take it.
func (p *Parser) expr(e Expr, sc *scope, want *schema.Type) (sqlir.Expr, error) {
	switch x := e.(type) {
	case *constExpr:
		return p.constExpr(x, want)
	case *refExpr:
		return p.ref(x, sc)
	case *varExpr:
		return &sqlir.PlaceholderRef{Placeholder: p.Placeholder(x.v)}, nil
	case *rawExpr:
		return &sqlir.PlaceholderRef{Placeholder: &sqlir.Placeholder{Name: x.sql, Type: x.typ, Kind: sqlir.RawExpression}}, nil
	case *binaryExpr:
		return p.binary(x, sc)
	case *notExpr:
		op, err := p.expr(x.operand, sc, &boolType)
		if err != nil {
			return nil, err
		}
		if op.Type().Kind != schema.Bool {
			return nil, &sqlir.TypeError{Op: "NOT", Left: op.Type().String(), Right: op.Type().String()}
		}
		return &sqlir.Not{Operand: op}, nil
	case *negExpr:
		op, err := p.expr(x.operand, sc, nil)
		if err != nil {
			return nil, err
		}
		if !op.Type().Kind.IsNumeric() {
			return nil, &sqlir.TypeError{Op: "-", Left: op.Type().String(), Right: op.Type().String()}
		}
		return &sqlir.Negate{Operand: op}, nil
	case *castExpr:
		return p.cast(x, sc)
	case *condExpr:
		return p.cond(x, sc)
	case *callExpr:
		return p.call(x, sc)
	case *inExpr:
		return p.in(x, sc)
	case *subqueryExpr:
		return p.subquery(x, sc)
	case *listExpr:
		return nil, fmt.Errorf("List is only valid as the right operand of In")
	}
	return nil, sqlir.Unsupported("expression", fmt.Sprintf("%T", e))
}

func (p *Parser) constExpr(x *constExpr, want *schema.Type) (sqlir.Expr, error) {
	if x.err != nil {
		return nil, x.err
	}
	if x.value == nil {
		t := x.typ
		if !t.IsValid() {
			if want == nil {
				return nil, fmt.Errorf("NULL literal without a type; use NullOf")
			}
			t = *want
		}
		return &sqlir.Constant{T: t.OrNull()}, nil
	}
	v, t := x.value, x.typ
	if want != nil && want.Kind != schema.Record && want.Kind != t.Kind {
		cv, err := value.Coerce(v, want.Kind)
		if err != nil {
			return nil, fmt.Errorf("constant %s: %w", value.Format(v), err)
		}
		v, t = cv, schema.Of(want.Kind)
	}
	if t.Kind == schema.Bool {
		return &sqlir.Constant{Value: v, T: t}, nil
	}
	return p.constant(v, t), nil
}

func (p *Parser) ref(x *refExpr, sc *scope) (sqlir.Expr, error) {
	members, err := p.refMembers(x, sc)
	if err != nil {
		return nil, err
	}
	b, _ := sc.lookup(x.param)
	prefix := strings.Join(x.path, ".")
	if len(members) == 1 && members[0].MemberName() == prefix && prefix != "" {
		return members[0].Expr(), nil
	}
	rr := &sqlir.RowRef{Members: members}
	if m, ok := b.result.Presence(prefix); ok {
		rr.Presence = m.Expr()
	}
	return rr, nil
}

func isNullConst(e Expr) bool {
	c, ok := e.(*constExpr)
	return ok && c.value == nil && c.err == nil
}

func isConst(e Expr) bool {
	_, ok := e.(*constExpr)
	return ok
}

func (p *Parser) binary(x *binaryExpr, sc *scope) (sqlir.Expr, error) {
	var l, r sqlir.Expr
	var err error
	want := func(e sqlir.Expr) *schema.Type {
		if x.op.IsLogical() {
			return &boolType
		}
		t := e.Type()
		if t.Kind == schema.Record {
			t = schema.NullableOf(schema.Record)
		}
		return &t
	}

	if isConst(x.left) && !isConst(x.right) {
		if r, err = p.expr(x.right, sc, nil); err != nil {
			return nil, err
		}
		if l, err = p.expr(x.left, sc, want(r)); err != nil {
			return nil, err
		}
	} else {
		var lw *schema.Type
		if x.op.IsLogical() {
			lw = &boolType
		}
		if l, err = p.expr(x.left, sc, lw); err != nil {
			return nil, err
		}
		if r, err = p.expr(x.right, sc, want(l)); err != nil {
			return nil, err
		}
	}

	lRow, rRow := isRowRef(l), isRowRef(r)
	if lRow || rRow {
		nullCheck := (x.op == sqlir.OpEq || x.op == sqlir.OpNe) &&
			(lRow && isNullConst(x.right) || rRow && isNullConst(x.left))
		if !nullCheck {
			return nil, sqlir.Unsupported("expression", "row comparison")
		}
		row := l
		if rRow {
			row = r
		}
		if row.(*sqlir.RowRef).Presence == nil {
			return nil, &sqlir.UnsupportedError{Construct: "expression", Name: "row null check", Detail: "record has no key member"}
		}
		return &sqlir.Binary{Op: x.op, Left: l, Right: r}, nil
	}
	return sqlir.NewBinary(x.op, l, r)
}

func isRowRef(e sqlir.Expr) bool {
	_, ok := e.(*sqlir.RowRef)
	return ok
}

func (p *Parser) cast(x *castExpr, sc *scope) (sqlir.Expr, error) {
	if isNullConst(x.operand) && !x.toNullable {
		return &sqlir.Constant{T: x.to.OrNull()}, nil
	}
	op, err := p.expr(x.operand, sc, nil)
	if err != nil {
		return nil, err
	}
	to := x.to
	if x.toNullable {
		to = op.Type().OrNull()
	}
	if to.Kind == schema.Record || op.Type().Kind == schema.Record {
		return nil, sqlir.Unsupported("expression", "cast of a row")
	}
	return &sqlir.Cast{Operand: op, To: to}, nil
}

// cond translates a conditional. Two shapes collapse to simpler SQL:
//
//	Cond(Ne(rec, Null), AsNullable(field of rec), Null)  ->  field
//	Cond(Ne(a, Null), a, b)                              ->  COALESCE(a, b)
func (p *Parser) cond(x *condExpr, sc *scope) (sqlir.Expr, error) {
	if test, ok := x.test.(*binaryExpr); ok && test.op == sqlir.OpNe && isNullConst(test.right) {
		if field, ok := nullableFieldOf(test.left, x.then); ok && isNullConst(x.els) {
			return p.cast(field, sc)
		}
		if reflect.DeepEqual(test.left, x.then) {
			return p.coalesce(x.then, x.els, sc)
		}
	}

	test, err := p.predicate(x.test, sc)
	if err != nil {
		return nil, err
	}
	var then, els sqlir.Expr
	if isNullConst(x.then) && !isNullConst(x.els) {
		if els, err = p.expr(x.els, sc, nil); err != nil {
			return nil, err
		}
		t := els.Type()
		if then, err = p.expr(x.then, sc, &t); err != nil {
			return nil, err
		}
	} else {
		if then, err = p.expr(x.then, sc, nil); err != nil {
			return nil, err
		}
		t := then.Type()
		if els, err = p.expr(x.els, sc, &t); err != nil {
			return nil, err
		}
	}
	if then.Type().Kind != els.Type().Kind {
		return nil, &sqlir.TypeError{Op: "CASE", Left: then.Type().String(), Right: els.Type().String()}
	}
	if then.Type().Kind == schema.Record {
		return nil, sqlir.Unsupported("expression", "conditional row")
	}
	return &sqlir.Conditional{Test: test, Then: then, Else: els}, nil
}

// nullableFieldOf matches then against AsNullable(F(param, path...)) where
// record is F(param, path[:n]...) for some prefix of path.
func nullableFieldOf(record, then Expr) (*castExpr, bool) {
	rec, ok := record.(*refExpr)
	if !ok {
		return nil, false
	}
	c, ok := then.(*castExpr)
	if !ok || !c.toNullable {
		return nil, false
	}
	f, ok := c.operand.(*refExpr)
	if !ok || f.param != rec.param || len(f.path) <= len(rec.path) {
		return nil, false
	}
	if !slices.Equal(f.path[:len(rec.path)], rec.path) {
		return nil, false
	}
	return c, true
}

func (p *Parser) coalesce(a, b Expr, sc *scope) (sqlir.Expr, error) {
	first, err := p.expr(a, sc, nil)
	if err != nil {
		return nil, err
	}
	t := first.Type()
	second, err := p.expr(b, sc, &t)
	if err != nil {
		return nil, err
	}
	if first.Type().Kind != second.Type().Kind {
		return nil, &sqlir.TypeError{Op: "COALESCE", Left: first.Type().String(), Right: second.Type().String()}
	}
	if t.Kind == schema.Record {
		return nil, sqlir.Unsupported("expression", "coalesce of rows")
	}
	rt := t.Unwrap()
	if second.Type().Nullable {
		rt = rt.OrNull()
	}
	return &sqlir.Call{Func: sqlir.FuncCoalesce, Args: []sqlir.Expr{first, second}, T: rt}, nil
}

func (p *Parser) call(x *callExpr, sc *scope) (sqlir.Expr, error) {
	f := sqlir.Func(x.name)
	if !library[f] {
		return nil, sqlir.Unsupported("function", x.name)
	}
	if f.IsAggregate() {
		return p.aggregate(f, x, sc)
	}

	switch {
	case f.IsDatePart():
		if len(x.args) != 1 {
			return nil, fmt.Errorf("%s takes one argument", f)
		}
		arg, err := p.expr(x.args[0], sc, &schema.Type{Kind: schema.DateTime})
		if err != nil {
			return nil, err
		}
		if arg.Type().Kind != schema.DateTime {
			return nil, &sqlir.TypeError{Op: string(f), Left: arg.Type().String(), Right: "datetime"}
		}
		t := schema.Of(schema.Int32)
		if arg.Type().Nullable {
			t = t.OrNull()
		}
		return &sqlir.Call{Func: f, Args: []sqlir.Expr{arg}, T: t}, nil

	case f == sqlir.FuncConcat:
		if len(x.args) == 0 {
			return nil, fmt.Errorf("Concat needs at least one argument")
		}
		t := schema.Of(schema.String)
		args := make([]sqlir.Expr, 0, len(x.args))
		for _, a := range x.args {
			arg, err := p.expr(a, sc, &schema.Type{Kind: schema.String})
			if err != nil {
				return nil, err
			}
			if arg.Type().Kind != schema.String {
				return nil, &sqlir.TypeError{Op: "Concat", Left: arg.Type().String(), Right: "string"}
			}
			if arg.Type().Nullable {
				t = t.OrNull()
			}
			args = append(args, arg)
		}
		return &sqlir.Call{Func: f, Args: args, T: t}, nil

	case f == sqlir.FuncCoalesce:
		if len(x.args) != 2 {
			return nil, fmt.Errorf("Coalesce takes two arguments")
		}
		return p.coalesce(x.args[0], x.args[1], sc)

	case f == sqlir.FuncLastInsertIdentity:
		t := schema.NullableOf(schema.Int64)
		if len(x.args) == 1 {
			if c, ok := x.args[0].(*constExpr); ok && c.typ.IsValid() {
				t = c.typ.OrNull()
			}
		}
		return &sqlir.Call{Func: f, T: t}, nil
	}
	return nil, sqlir.Unsupported("function", x.name)
}

func (p *Parser) aggregate(f sqlir.Func, x *callExpr, sc *scope) (sqlir.Expr, error) {
	b, err := sc.lookup(x.group)
	if err != nil {
		return nil, err
	}
	if !b.group {
		return nil, fmt.Errorf("%s over %q: not a group", f, x.group)
	}
	if f == sqlir.FuncCount {
		if len(x.args) != 0 {
			return nil, fmt.Errorf("Count takes no argument")
		}
		return &sqlir.Call{Func: f, T: schema.Of(schema.Int64)}, nil
	}
	if len(x.args) != 1 {
		return nil, fmt.Errorf("%s takes one argument", f)
	}

	arg, err := p.expr(x.args[0], sc.with(x.group, &binding{result: b.result}), nil)
	if err != nil {
		return nil, err
	}
	if sqlir.ContainsAggregate(arg) {
		return nil, sqlir.Unsupported("expression", "nested aggregate")
	}
	k := arg.Type().Kind
	switch f {
	case sqlir.FuncSum, sqlir.FuncAvg:
		if !k.IsNumeric() {
			return nil, &sqlir.TypeError{Op: string(f), Left: arg.Type().String(), Right: "number"}
		}
	case sqlir.FuncMin, sqlir.FuncMax:
		if k == schema.Record || k == schema.Binary {
			return nil, &sqlir.TypeError{Op: string(f), Left: arg.Type().String(), Right: "scalar"}
		}
	}

	var t schema.Type
	switch {
	case f == sqlir.FuncSum:
		t = schema.NullableOf(sumKind(k))
	case f == sqlir.FuncAvg && k == schema.Decimal:
		t = schema.NullableOf(schema.Decimal)
	case f == sqlir.FuncAvg:
		if k != schema.Float64 {
			arg = &sqlir.Cast{Operand: arg, To: schema.Type{Kind: schema.Float64, Nullable: arg.Type().Nullable}}
		}
		t = schema.NullableOf(schema.Float64)
	default:
		t = arg.Type().OrNull()
	}
	return &sqlir.Call{Func: f, Args: []sqlir.Expr{arg}, T: t}, nil
}

// sumKind widens the argument kind of SUM.
func sumKind(k schema.Kind) schema.Kind {
	switch {
	case k == schema.Decimal:
		return schema.Decimal
	case k == schema.Float32 || k == schema.Float64:
		return schema.Float64
	case k.IsUnsigned():
		return schema.UInt64
	}
	return schema.Int64
}

func (p *Parser) in(x *inExpr, sc *scope) (sqlir.Expr, error) {
	l, err := p.expr(x.operand, sc, nil)
	if err != nil {
		return nil, err
	}
	if x.query != nil {
		sub, err := p.parseQuery(x.query, sc)
		if err != nil {
			return nil, err
		}
		if len(sub.Result.Members) != 1 {
			return nil, fmt.Errorf("In subquery must select exactly one member, got %d", len(sub.Result.Members))
		}
		return sqlir.NewBinary(sqlir.OpIn, l, &sqlir.Select{Query: sub})
	}
	if len(x.list.items) == 0 {
		return &sqlir.Constant{Value: false, T: boolType}, nil
	}
	elem := l.Type().Unwrap()
	arr := &sqlir.ConstantArray{Elem: elem}
	for _, item := range x.list.items {
		e, err := p.expr(item, sc, &elem)
		if err != nil {
			return nil, err
		}
		if e.Type().Kind != elem.Kind {
			return nil, &sqlir.TypeError{Op: "IN", Left: l.Type().String(), Right: e.Type().String()}
		}
		arr.Items = append(arr.Items, e)
	}
	return sqlir.NewBinary(sqlir.OpIn, l, arr)
}

func (p *Parser) subquery(x *subqueryExpr, sc *scope) (sqlir.Expr, error) {
	sub, err := p.parseQuery(x.query, sc)
	if err != nil {
		return nil, err
	}
	if x.exists {
		return &sqlir.Call{Func: sqlir.FuncExists, Args: []sqlir.Expr{&sqlir.Select{Query: sub}}, T: boolType}, nil
	}
	if len(sub.Result.Members) != 1 {
		return nil, fmt.Errorf("scalar subquery must select exactly one member, got %d", len(sub.Result.Members))
	}
	return &sqlir.Select{Query: sub}, nil
}
