package sqlir

import (
	"fmt"
	"strings"
)

// Walk calls fn for e and each sub-expression, depth first. Returning false
// skips the children of the current node. Subqueries are not entered.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch x := e.(type) {
	case *Binary:
		Walk(x.Left, fn)
		Walk(x.Right, fn)
	case *Cast:
		Walk(x.Operand, fn)
	case *Negate:
		Walk(x.Operand, fn)
	case *Not:
		Walk(x.Operand, fn)
	case *ConstantArray:
		for _, item := range x.Items {
			Walk(item, fn)
		}
	case *Call:
		for _, a := range x.Args {
			Walk(a, fn)
		}
	case *Conditional:
		Walk(x.Test, fn)
		Walk(x.Then, fn)
		Walk(x.Else, fn)
	case *RowRef:
		Walk(x.Presence, fn)
	}
}

// ContainsAggregate reports whether e calls an aggregate function outside
// of subqueries.
func ContainsAggregate(e Expr) bool {
	found := false
	Walk(e, func(x Expr) bool {
		if c, ok := x.(*Call); ok && c.Func.IsAggregate() {
			found = true
		}
		return !found
	})
	return found
}

// Placeholders returns the distinct placeholders read by e, in order of
// appearance.
func Placeholders(e Expr) []*Placeholder {
	var out []*Placeholder
	Walk(e, func(x Expr) bool {
		if r, ok := x.(*PlaceholderRef); ok {
			for _, p := range out {
				if p == r.Placeholder {
					return true
				}
			}
			out = append(out, r.Placeholder)
		}
		return true
	})
	return out
}

// TypeName returns the short variant name of an expression, member or
// statement for error messages.
func TypeName(v any) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", v), "*sqlir.")
}
