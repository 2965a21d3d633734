package sqlfmt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/sqlir"
)

// render accumulates the parameters of the command being rendered. Text is
// built in reading order so positional markers line up with Params.
type render struct {
	d      dialect
	opts   options
	params []string
	index  map[string]int
}

func itoa(n int) string { return strconv.Itoa(n) }

// command finishes the current command and resets the parameter list.
func (r *render) command(sql string) Command {
	c := Command{SQL: sql, Params: r.params}
	r.params = nil
	r.index = nil
	return c
}

func (r *render) param(name string) string {
	if r.d.reuseMarkers() {
		if n, ok := r.index[name]; ok {
			return r.d.marker(n, name)
		}
		if r.index == nil {
			r.index = make(map[string]int)
		}
		r.params = append(r.params, name)
		r.index[name] = len(r.params)
		return r.d.marker(len(r.params), name)
	}
	r.params = append(r.params, name)
	return r.d.marker(len(r.params), name)
}

func (r *render) table(name string) string { return r.d.quote(name) }

// query renders a SELECT. Nested queries drop ORDER BY unless a window
// depends on it.
func (r *render) query(q *sqlir.Query, nested bool) (string, error) {
	var b strings.Builder
	b.WriteString("SELECT ")
	if q.Result == nil || len(q.Result.Members) == 0 {
		return "", fmt.Errorf("query selects no member")
	}
	for i, m := range q.Result.Members {
		if i > 0 {
			b.WriteString(", ")
		}
		s, err := r.expr(m.Expr())
		if err != nil {
			return "", fmt.Errorf("member %q: %w", m.MemberName(), err)
		}
		b.WriteString(s)
		b.WriteString(" AS ")
		b.WriteString(r.d.quote(m.MemberName()))
	}

	switch {
	case q.From != nil:
		b.WriteString(" FROM " + r.table(q.From.Name) + " AS " + q.FromAlias)
	case q.FromQuery != nil:
		inner, err := r.query(q.FromQuery, true)
		if err != nil {
			return "", err
		}
		b.WriteString(" FROM (" + inner + ") AS " + q.FromAlias)
	}

	for _, j := range q.Joins {
		s, err := r.join(j)
		if err != nil {
			return "", err
		}
		b.WriteString(" " + s)
	}

	if err := r.clauses(&b, " WHERE ", q.Wheres); err != nil {
		return "", err
	}
	if len(q.GroupBys) > 0 {
		keys := make([]string, len(q.GroupBys))
		for i, g := range q.GroupBys {
			s, err := r.expr(g)
			if err != nil {
				return "", err
			}
			keys[i] = s
		}
		b.WriteString(" GROUP BY " + strings.Join(keys, ", "))
	}
	if err := r.clauses(&b, " HAVING ", q.Havings); err != nil {
		return "", err
	}

	ordered := false
	if len(q.OrderBys) > 0 && (!nested || q.HasWindow()) {
		keys := make([]string, len(q.OrderBys))
		for i, o := range q.OrderBys {
			s, err := r.expr(o.Expr)
			if err != nil {
				return "", err
			}
			if o.Descending {
				s += " DESC"
			}
			keys[i] = s
		}
		b.WriteString(" ORDER BY " + strings.Join(keys, ", "))
		ordered = true
	}
	if q.HasWindow() {
		b.WriteString(r.d.window(q, ordered))
	}
	return b.String(), nil
}

func (r *render) join(j *sqlir.Join) (string, error) {
	src, err := r.source(j)
	if err != nil {
		return "", err
	}
	on, err := r.predicate(j.On)
	if err != nil {
		return "", err
	}
	return j.Type.String() + " " + src + " ON " + on, nil
}

// source renders the joined table or subquery with its alias.
func (r *render) source(j *sqlir.Join) (string, error) {
	if j.Table != nil {
		return r.table(j.Table.Name) + " AS " + j.Alias, nil
	}
	inner, err := r.query(j.Query, true)
	if err != nil {
		return "", err
	}
	return "(" + inner + ") AS " + j.Alias, nil
}

// clauses writes prefix followed by preds joined with AND.
func (r *render) clauses(b *strings.Builder, prefix string, preds []sqlir.Expr) error {
	s, err := r.conjunction(preds)
	if err != nil || s == "" {
		return err
	}
	b.WriteString(prefix + s)
	return nil
}

func (r *render) conjunction(preds []sqlir.Expr) (string, error) {
	parts := make([]string, 0, len(preds))
	for _, p := range preds {
		s, err := r.logicalOperand(p)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " AND "), nil
}

// predicate renders e where SQL expects a condition.
func (r *render) predicate(e sqlir.Expr) (string, error) {
	if sqlir.IsPredicate(e) || r.d.boolValues() {
		return r.node(e)
	}
	if c, ok := e.(*sqlir.Constant); ok {
		if b, ok := c.Value.(bool); ok && b {
			return "1 = 1", nil
		}
		return "1 = 0", nil
	}
	s, err := r.operand(e)
	if err != nil {
		return "", err
	}
	return s + " = 1", nil
}

// expr renders e where SQL expects a value.
func (r *render) expr(e sqlir.Expr) (string, error) {
	if r.d.boolValues() || !sqlir.IsPredicate(e) {
		return r.node(e)
	}
	p, err := r.node(e)
	if err != nil {
		return "", err
	}
	// Unknown stays NULL.
	return "CASE WHEN " + p + " THEN 1 WHEN NOT (" + p + ") THEN 0 END", nil
}

// operand renders a value and parenthesizes compound expressions.
func (r *render) operand(e sqlir.Expr) (string, error) {
	s, err := r.expr(e)
	if err != nil {
		return "", err
	}
	if _, ok := e.(*sqlir.Binary); ok {
		return "(" + s + ")", nil
	}
	return s, nil
}

// logicalOperand renders an operand of AND/OR.
func (r *render) logicalOperand(e sqlir.Expr) (string, error) {
	s, err := r.predicate(e)
	if err != nil {
		return "", err
	}
	if b, ok := e.(*sqlir.Binary); ok && b.Op.IsLogical() {
		return "(" + s + ")", nil
	}
	return s, nil
}

func (r *render) node(e sqlir.Expr) (string, error) {
	switch x := e.(type) {
	case *sqlir.Binary:
		return r.binary(x)
	case *sqlir.Not:
		s, err := r.predicate(x.Operand)
		if err != nil {
			return "", err
		}
		return "NOT (" + s + ")", nil
	case *sqlir.Negate:
		s, err := r.operand(x.Operand)
		if err != nil {
			return "", err
		}
		return "(-" + s + ")", nil
	case *sqlir.Cast:
		if x.IsNullableWrap() {
			return r.expr(x.Operand)
		}
		s, err := r.expr(x.Operand)
		if err != nil {
			return "", err
		}
		t, err := r.d.castType(x.To)
		if err != nil {
			return "", err
		}
		return "CAST(" + s + " AS " + t + ")", nil
	case *sqlir.Constant:
		if x.IsNull() {
			return r.d.null(x.T)
		}
		if b, ok := x.Value.(bool); ok {
			return r.d.literalBool(b), nil
		}
		return "", sqlir.Unsupported("constant", fmt.Sprintf("%T", x.Value))
	case *sqlir.Param:
		return r.param(x.Name), nil
	case *sqlir.ConstantArray:
		items := make([]string, len(x.Items))
		for i, it := range x.Items {
			s, err := r.expr(it)
			if err != nil {
				return "", err
			}
			items[i] = s
		}
		return "(" + strings.Join(items, ", ") + ")", nil
	case *sqlir.TableField:
		return x.Alias + "." + r.d.quote(x.Column.SqlName), nil
	case *sqlir.JoinField:
		return x.Alias + "." + r.d.quote(x.Name), nil
	case *sqlir.PlaceholderRef:
		if x.Placeholder.Kind == sqlir.RawExpression {
			return "(" + x.Placeholder.Name + ")", nil
		}
		return r.d.variable(x.Placeholder.Name), nil
	case *sqlir.Call:
		return r.call(x)
	case *sqlir.Conditional:
		test, err := r.predicate(x.Test)
		if err != nil {
			return "", err
		}
		then, err := r.expr(x.Then)
		if err != nil {
			return "", err
		}
		els, err := r.expr(x.Else)
		if err != nil {
			return "", err
		}
		return "CASE WHEN " + test + " THEN " + then + " ELSE " + els + " END", nil
	case *sqlir.Select:
		s, err := r.query(x.Query, true)
		if err != nil {
			return "", err
		}
		return "(" + s + ")", nil
	case *sqlir.RowRef:
		return "", &sqlir.UnsupportedError{Construct: "expression", Name: "RowRef", Detail: "whole rows are only valid in NULL checks"}
	}
	return "", sqlir.Unsupported("expression", sqlir.TypeName(e))
}

func (r *render) binary(x *sqlir.Binary) (string, error) {
	if x.Op == sqlir.OpEq || x.Op == sqlir.OpNe {
		if other, ok := nullCheck(x); ok {
			s, err := r.operand(other)
			if err != nil {
				return "", err
			}
			if x.Op == sqlir.OpEq {
				return s + " IS NULL", nil
			}
			return s + " IS NOT NULL", nil
		}
	}

	if x.Op.IsLogical() {
		l, err := r.logicalOperand(x.Left)
		if err != nil {
			return "", err
		}
		rs, err := r.logicalOperand(x.Right)
		if err != nil {
			return "", err
		}
		return l + " " + x.Op.String() + " " + rs, nil
	}

	l, err := r.operand(x.Left)
	if err != nil {
		return "", err
	}
	if x.Op == sqlir.OpIn {
		if sel, ok := x.Right.(*sqlir.Select); ok {
			s, err := r.query(sel.Query, true)
			if err != nil {
				return "", err
			}
			return l + " IN (" + s + ")", nil
		}
		list, err := r.expr(x.Right)
		if err != nil {
			return "", err
		}
		return l + " IN " + list, nil
	}
	rs, err := r.operand(x.Right)
	if err != nil {
		return "", err
	}
	switch {
	case x.IsConcat():
		return r.d.concat([]string{l, rs}), nil
	case x.Op == sqlir.OpDiv:
		return r.d.divide(x.Left.Type().Kind, l, rs), nil
	}
	return l + " " + x.Op.String() + " " + rs, nil
}

// nullCheck returns the tested operand of x = NULL or x <> NULL. A whole row
// is tested through its presence member.
func nullCheck(x *sqlir.Binary) (sqlir.Expr, bool) {
	var other sqlir.Expr
	switch {
	case sqlir.IsNullLiteral(x.Right):
		other = x.Left
	case sqlir.IsNullLiteral(x.Left):
		other = x.Right
	default:
		return nil, false
	}
	if rr, ok := other.(*sqlir.RowRef); ok && rr.Presence != nil {
		other = rr.Presence
	}
	return other, true
}

func (r *render) call(x *sqlir.Call) (string, error) {
	if x.Func == sqlir.FuncExists {
		sel, ok := x.Args[0].(*sqlir.Select)
		if !ok {
			return "", sqlir.Unsupported("EXISTS operand", sqlir.TypeName(x.Args[0]))
		}
		s, err := r.query(sel.Query, true)
		if err != nil {
			return "", err
		}
		return "EXISTS (" + s + ")", nil
	}

	args := make([]string, len(x.Args))
	for i, a := range x.Args {
		s, err := r.expr(a)
		if err != nil {
			return "", err
		}
		args[i] = s
	}

	switch {
	case x.Func == sqlir.FuncCount:
		if len(args) == 0 {
			return "COUNT(*)", nil
		}
		return "COUNT(" + args[0] + ")", nil
	case x.Func.IsAggregate():
		return strings.ToUpper(string(x.Func)) + "(" + args[0] + ")", nil
	case x.Func.IsDatePart():
		return r.d.datePart(x.Func, args[0]), nil
	case x.Func == sqlir.FuncConcat:
		return r.d.concat(args), nil
	case x.Func == sqlir.FuncCoalesce:
		return r.d.coalesce(args[0], args[1]), nil
	case x.Func == sqlir.FuncLastInsertIdentity:
		return r.d.lastIdentity(x.T)
	}
	return "", &sqlir.UnsupportedError{Construct: "function", Name: string(x.Func), Dialect: r.d.name()}
}

// zeroLiteral is the DEFAULT of a NOT NULL column added to existing rows.
func (r *render) zeroLiteral(k schema.Kind) string {
	switch k {
	case schema.Bool:
		return r.d.literalBool(false)
	case schema.String:
		return "''"
	case schema.DateTime:
		return "'0001-01-01 00:00:00'"
	case schema.Binary:
		return r.d.emptyBinary()
	}
	return "0"
}

func quoteWith(open, close, ident string) string {
	return open + strings.ReplaceAll(ident, close, close+close) + close
}
