package value

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrDivideByZero is returned by integer and decimal division or modulo by zero.
var ErrDivideByZero = errors.New("division by zero")

// Compare orders two values. NULL sorts before every other value.
// Numeric values of different representations are compared numerically.
func Compare(a, b any) (int, error) {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0, nil
		case a == nil:
			return -1, nil
		default:
			return 1, nil
		}
	}
	switch x := a.(type) {
	case bool:
		y, ok := b.(bool)
		if !ok {
			break
		}
		switch {
		case x == y:
			return 0, nil
		case !x:
			return -1, nil
		default:
			return 1, nil
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), nil
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), nil
		}
	case []byte:
		if y, ok := b.([]byte); ok {
			return bytes.Compare(x, y), nil
		}
	}
	if isNumber(a) && isNumber(b) {
		return compareNumbers(a, b), nil
	}
	return 0, fmt.Errorf("cannot compare %T with %T", a, b)
}

func isNumber(v any) bool {
	switch v.(type) {
	case int64, uint64, float64, decimal.Decimal, int, int32, uint32, float32:
		return true
	}
	return false
}

func compareNumbers(a, b any) int {
	switch numericRank(a, b) {
	case rankDecimal:
		da, _ := toDecimal(a)
		db, _ := toDecimal(b)
		return da.Cmp(db)
	case rankFloat:
		fa, _ := toFloat64(a)
		fb, _ := toFloat64(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case rankUnsigned:
		ua, _ := toUint64(a)
		ub, _ := toUint64(b)
		switch {
		case ua < ub:
			return -1
		case ua > ub:
			return 1
		}
		return 0
	}
	// Mixed signed/unsigned: a negative signed value is always smaller.
	ia, aok := toInt64(a)
	ib, bok := toInt64(b)
	if !aok {
		return 1
	}
	if !bok {
		return -1
	}
	switch {
	case ia < ib:
		return -1
	case ia > ib:
		return 1
	}
	return 0
}

type rank int

const (
	rankSigned rank = iota
	rankUnsigned
	rankFloat
	rankDecimal
)

func rankOf(v any) rank {
	switch v.(type) {
	case decimal.Decimal:
		return rankDecimal
	case float64, float32:
		return rankFloat
	case uint64:
		return rankUnsigned
	}
	return rankSigned
}

func numericRank(a, b any) rank {
	ra, rb := rankOf(a), rankOf(b)
	if ra == rankUnsigned && rb == rankUnsigned {
		return rankUnsigned
	}
	if ra == rankUnsigned {
		ra = rankSigned
	}
	if rb == rankUnsigned {
		rb = rankSigned
	}
	return max(ra, rb)
}

// ArithOp is a binary arithmetic operator.
type ArithOp int

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
)

// Arith applies op to a and b. NULL operands produce NULL. Add on two strings
// concatenates.
func Arith(op ArithOp, a, b any) (any, error) {
	if a == nil || b == nil {
		return nil, nil
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok || op != OpAdd {
			return nil, fmt.Errorf("unsupported string arithmetic on %T and %T", a, b)
		}
		return sa + sb, nil
	}
	if !isNumber(a) || !isNumber(b) {
		return nil, fmt.Errorf("arithmetic on non-numeric values %T and %T", a, b)
	}
	switch numericRank(a, b) {
	case rankDecimal:
		da, _ := toDecimal(a)
		db, _ := toDecimal(b)
		return decimalArith(op, da, db)
	case rankFloat:
		fa, _ := toFloat64(a)
		fb, _ := toFloat64(b)
		return floatArith(op, fa, fb)
	case rankUnsigned:
		ua, _ := toUint64(a)
		ub, _ := toUint64(b)
		return unsignedArith(op, ua, ub)
	}
	ia, _ := toInt64(a)
	ib, _ := toInt64(b)
	return signedArith(op, ia, ib)
}

func decimalArith(op ArithOp, a, b decimal.Decimal) (any, error) {
	var d decimal.Decimal
	switch op {
	case OpAdd:
		d = a.Add(b)
	case OpSub:
		d = a.Sub(b)
	case OpMul:
		d = a.Mul(b)
	case OpDiv:
		if b.IsZero() {
			return nil, ErrDivideByZero
		}
		d = a.Div(b)
	case OpMod:
		if b.IsZero() {
			return nil, ErrDivideByZero
		}
		d = a.Mod(b)
	default:
		return nil, fmt.Errorf("unknown operator %d", op)
	}
	return normalDecimal(d), nil
}

func floatArith(op ArithOp, a, b float64) (any, error) {
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMul:
		return a * b, nil
	case OpDiv:
		return a / b, nil
	case OpMod:
		if b == 0 {
			return nil, ErrDivideByZero
		}
		return a - b*float64(int64(a/b)), nil
	}
	return nil, fmt.Errorf("unknown operator %d", op)
}

func signedArith(op ArithOp, a, b int64) (any, error) {
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMul:
		return a * b, nil
	case OpDiv:
		if b == 0 {
			return nil, ErrDivideByZero
		}
		return a / b, nil
	case OpMod:
		if b == 0 {
			return nil, ErrDivideByZero
		}
		return a % b, nil
	}
	return nil, fmt.Errorf("unknown operator %d", op)
}

func unsignedArith(op ArithOp, a, b uint64) (any, error) {
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMul:
		return a * b, nil
	case OpDiv:
		if b == 0 {
			return nil, ErrDivideByZero
		}
		return a / b, nil
	case OpMod:
		if b == 0 {
			return nil, ErrDivideByZero
		}
		return a % b, nil
	}
	return nil, fmt.Errorf("unknown operator %d", op)
}

// Negate returns -v. NULL stays NULL.
func Negate(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case int64:
		return -x, nil
	case float64:
		return -x, nil
	case decimal.Decimal:
		return x.Neg(), nil
	case uint64:
		return -int64(x), nil
	}
	return nil, fmt.Errorf("cannot negate %T", v)
}

// Like matches s against a SQL LIKE pattern where % matches any run of
// characters and _ matches exactly one.
func Like(s, pattern string) bool {
	return likeMatch([]rune(s), []rune(pattern))
}

func likeMatch(s, p []rune) bool {
	for len(p) > 0 {
		switch p[0] {
		case '%':
			for len(p) > 0 && p[0] == '%' {
				p = p[1:]
			}
			if len(p) == 0 {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if likeMatch(s[i:], p) {
					return true
				}
			}
			return false
		case '_':
			if len(s) == 0 {
				return false
			}
		default:
			if len(s) == 0 || s[0] != p[0] {
				return false
			}
		}
		s, p = s[1:], p[1:]
	}
	return len(s) == 0
}

// DatePart names a component of a datetime.
type DatePart string

const (
	PartYear   DatePart = "year"
	PartMonth  DatePart = "month"
	PartDay    DatePart = "day"
	PartHour   DatePart = "hour"
	PartMinute DatePart = "minute"
	PartSecond DatePart = "second"
)

// ExtractPart returns the requested component of a datetime as int64.
func ExtractPart(part DatePart, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	t, ok := v.(time.Time)
	if !ok {
		return nil, fmt.Errorf("%s of non-datetime %T", part, v)
	}
	switch part {
	case PartYear:
		return int64(t.Year()), nil
	case PartMonth:
		return int64(t.Month()), nil
	case PartDay:
		return int64(t.Day()), nil
	case PartHour:
		return int64(t.Hour()), nil
	case PartMinute:
		return int64(t.Minute()), nil
	case PartSecond:
		return int64(t.Second()), nil
	}
	return nil, fmt.Errorf("unknown date part %q", part)
}
