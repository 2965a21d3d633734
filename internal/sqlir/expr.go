package sqlir

import (
	"github.com/roach88/typedsql/internal/schema"
)

// Expr is a SQL scalar or boolean expression.
//
// This is a sealed interface - only types in this package implement it.
type Expr interface {
	// Type returns the value type the expression produces.
	Type() schema.Type

	exprNode() // Marker method - seals interface to this package
}

// BinaryOp is the operator of a Binary expression.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpLike
	OpIn
)

var binaryOpNames = [...]string{
	OpAdd:  "+",
	OpSub:  "-",
	OpMul:  "*",
	OpDiv:  "/",
	OpMod:  "%",
	OpEq:   "=",
	OpNe:   "<>",
	OpLt:   "<",
	OpLe:   "<=",
	OpGt:   ">",
	OpGe:   ">=",
	OpAnd:  "AND",
	OpOr:   "OR",
	OpLike: "LIKE",
	OpIn:   "IN",
}

// String returns the generic SQL spelling of the operator.
func (op BinaryOp) String() string {
	if int(op) < len(binaryOpNames) {
		return binaryOpNames[op]
	}
	return "?"
}

// IsComparison reports whether op compares its operands.
func (op BinaryOp) IsComparison() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpLike, OpIn:
		return true
	}
	return false
}

// IsLogical reports whether op is AND or OR.
func (op BinaryOp) IsLogical() bool {
	return op == OpAnd || op == OpOr
}

// IsPredicate reports whether op yields a boolean.
func (op BinaryOp) IsPredicate() bool {
	return op.IsComparison() || op.IsLogical()
}

// Binary applies an operator to two operands. Build it with NewBinary so
// operand types are checked.
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// NewBinary checks operand types and returns the expression.
//
// Both operands must have the same kind once nullability is stripped. Logical
// operators require bool operands; LIKE requires strings; arithmetic requires
// numbers, except + which also concatenates strings. For IN the right operand
// is a ConstantArray or a Select whose element type must match the left.
func NewBinary(op BinaryOp, left, right Expr) (*Binary, error) {
	lt, rt := left.Type().Unwrap(), right.Type().Unwrap()
	if op == OpIn {
		switch r := right.(type) {
		case *ConstantArray:
			rt = r.Elem.Unwrap()
		case *Select:
		default:
			return nil, Unsupported("IN operand", TypeName(right))
		}
	}
	if lt.Kind != rt.Kind {
		return nil, &TypeError{Op: op.String(), Left: left.Type().String(), Right: right.Type().String()}
	}
	switch {
	case op.IsLogical():
		if lt.Kind != schema.Bool {
			return nil, &TypeError{Op: op.String(), Left: left.Type().String(), Right: right.Type().String()}
		}
	case op == OpLike:
		if lt.Kind != schema.String {
			return nil, &TypeError{Op: op.String(), Left: left.Type().String(), Right: right.Type().String()}
		}
	case op == OpAdd:
		if !lt.Kind.IsNumeric() && lt.Kind != schema.String {
			return nil, &TypeError{Op: op.String(), Left: left.Type().String(), Right: right.Type().String()}
		}
	case !op.IsComparison():
		if !lt.Kind.IsNumeric() {
			return nil, &TypeError{Op: op.String(), Left: left.Type().String(), Right: right.Type().String()}
		}
	}
	return &Binary{Op: op, Left: left, Right: right}, nil
}

// Type is bool for comparisons and logical operators and the operand type
// otherwise, nullable when either operand is.
func (b *Binary) Type() schema.Type {
	if b.Op.IsPredicate() {
		return schema.Of(schema.Bool)
	}
	t := b.Left.Type().Unwrap()
	if b.Left.Type().Nullable || b.Right.Type().Nullable {
		return t.OrNull()
	}
	return t
}

// IsConcat reports whether the expression is a string concatenation.
func (b *Binary) IsConcat() bool {
	return b.Op == OpAdd && b.Left.Type().Kind == schema.String
}

func (*Binary) exprNode() {}

// Cast converts the operand to another type.
type Cast struct {
	Operand Expr
	To      schema.Type
}

func (c *Cast) Type() schema.Type { return c.To }

// IsNullableWrap reports whether the cast only changes nullability.
func (c *Cast) IsNullableWrap() bool {
	return c.Operand.Type().Kind == c.To.Kind
}

func (*Cast) exprNode() {}

// Negate is arithmetic negation.
type Negate struct {
	Operand Expr
}

func (n *Negate) Type() schema.Type { return n.Operand.Type() }

func (*Negate) exprNode() {}

// Not is logical negation.
type Not struct {
	Operand Expr
}

func (*Not) Type() schema.Type { return schema.Of(schema.Bool) }

func (*Not) exprNode() {}

// Constant is a literal rendered inline: booleans and NULL.
type Constant struct {
	Value any
	T     schema.Type
}

func (c *Constant) Type() schema.Type { return c.T }

// IsNull reports whether the constant is the NULL literal.
func (c *Constant) IsNull() bool { return c.Value == nil }

func (*Constant) exprNode() {}

// Param is a bound SQL parameter. Name refers to an entry of the parser's
// constants map (p0, p1, ...).
type Param struct {
	Name string
	T    schema.Type
}

func (p *Param) Type() schema.Type { return p.T }

func (*Param) exprNode() {}

// ConstantArray is a parenthesized list of items, used as the right operand
// of IN.
type ConstantArray struct {
	Items []Expr
	Elem  schema.Type
}

func (a *ConstantArray) Type() schema.Type { return a.Elem }

func (*ConstantArray) exprNode() {}

// TableField reads a column of an aliased table.
type TableField struct {
	Alias  string
	Column *schema.Column

	// Nullable is set when the table sits on the optional side of a left join.
	Nullable bool
}

func (f *TableField) Type() schema.Type {
	if f.Nullable {
		return f.Column.Type.OrNull()
	}
	return f.Column.Type
}

func (*TableField) exprNode() {}

// JoinField reads an output column of an aliased subquery.
type JoinField struct {
	Alias string
	Name  string
	T     schema.Type
}

func (f *JoinField) Type() schema.Type { return f.T }

func (*JoinField) exprNode() {}

// PlaceholderRef reads a session variable or raw expression.
type PlaceholderRef struct {
	Placeholder *Placeholder
}

func (r *PlaceholderRef) Type() schema.Type { return r.Placeholder.Type }

func (*PlaceholderRef) exprNode() {}

// Func names a function in the supported library.
type Func string

const (
	FuncCount              Func = "Count"
	FuncSum                Func = "Sum"
	FuncAvg                Func = "Avg"
	FuncMin                Func = "Min"
	FuncMax                Func = "Max"
	FuncYear               Func = "Year"
	FuncMonth              Func = "Month"
	FuncDay                Func = "Day"
	FuncHour               Func = "Hour"
	FuncMinute             Func = "Minute"
	FuncSecond             Func = "Second"
	FuncConcat             Func = "Concat"
	FuncCoalesce           Func = "Coalesce"
	FuncLastInsertIdentity Func = "LastInsertIdentity"
	FuncExists             Func = "Exists"
)

// IsAggregate reports whether f folds a group of rows.
func (f Func) IsAggregate() bool {
	switch f {
	case FuncCount, FuncSum, FuncAvg, FuncMin, FuncMax:
		return true
	}
	return false
}

// IsDatePart reports whether f extracts a datetime component.
func (f Func) IsDatePart() bool {
	switch f {
	case FuncYear, FuncMonth, FuncDay, FuncHour, FuncMinute, FuncSecond:
		return true
	}
	return false
}

// Call invokes a library function. COUNT(*) is a FuncCount call without
// arguments.
type Call struct {
	Func Func
	Args []Expr
	T    schema.Type
}

func (c *Call) Type() schema.Type { return c.T }

func (*Call) exprNode() {}

// Conditional is CASE WHEN Test THEN Then ELSE Else END.
type Conditional struct {
	Test Expr
	Then Expr
	Else Expr
}

func (c *Conditional) Type() schema.Type {
	t := c.Then.Type()
	if c.Else.Type().Nullable {
		return t.OrNull()
	}
	return t
}

func (*Conditional) exprNode() {}

// RowRef is a whole row of a subquery result. It only appears in NULL checks
// and renders as its Presence expression, which is NULL exactly when the row
// is absent.
type RowRef struct {
	Members  []Member
	Presence Expr
}

func (*RowRef) Type() schema.Type { return schema.Of(schema.Record) }

func (*RowRef) exprNode() {}

// Select is a subquery used as an expression: a scalar subquery, the
// argument of EXISTS or the right side of IN.
type Select struct {
	Query *Query
}

// Type is the type of the first result member, always nullable.
func (s *Select) Type() schema.Type {
	if s.Query == nil || s.Query.Result == nil || len(s.Query.Result.Members) == 0 {
		return schema.Type{}
	}
	return s.Query.Result.Members[0].Expr().Type().OrNull()
}

func (*Select) exprNode() {}

// IsNullLiteral reports whether e is the NULL constant.
func IsNullLiteral(e Expr) bool {
	c, ok := e.(*Constant)
	return ok && c.IsNull()
}

// IsPredicate reports whether e is boolean-shaped: a comparison, a logical
// operator, NOT or EXISTS. Other bool expressions are plain values.
func IsPredicate(e Expr) bool {
	switch x := e.(type) {
	case *Binary:
		return x.Op.IsPredicate()
	case *Not:
		return true
	case *Call:
		return x.Func == FuncExists
	}
	return false
}
