package query

import (
	"github.com/roach88/typedsql/internal/schema"
)

// Variable is a session variable. It is declared by a statement list, is
// NULL until set, and can be read by any later statement of the same list.
type Variable struct {
	name string
	typ  schema.Type
}

// NewVariable returns a variable of type t. Variables are always nullable.
func NewVariable(name string, t schema.Type) *Variable {
	return &Variable{name: name, typ: t.OrNull()}
}

func (v *Variable) Name() string      { return v.name }
func (v *Variable) Type() schema.Type { return v.typ }
