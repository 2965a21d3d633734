package value

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/typedsql/internal/schema"
)

// Coerce converts a host value into the normalized representation of kind k.
// nil passes through unchanged; nullability is checked by the caller.
func Coerce(v any, k schema.Kind) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch k {
	case schema.Bool:
		if x, ok := v.(bool); ok {
			return x, nil
		}
		if n, ok := toInt64(v); ok {
			return n != 0, nil
		}
	case schema.Int8, schema.Int16, schema.Int32, schema.Int64:
		n, ok := toInt64(v)
		if ok {
			return n, checkSignedRange(n, k)
		}
	case schema.UInt8, schema.UInt16, schema.UInt32, schema.UInt64:
		n, ok := toUint64(v)
		if ok {
			return n, checkUnsignedRange(n, k)
		}
	case schema.Float32, schema.Float64:
		if f, ok := toFloat64(v); ok {
			return f, nil
		}
	case schema.Decimal:
		if d, ok := toDecimal(v); ok {
			return normalDecimal(d), nil
		}
	case schema.String:
		switch x := v.(type) {
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		}
	case schema.DateTime:
		switch x := v.(type) {
		case time.Time:
			return x.UTC(), nil
		case string:
			return parseTime(x)
		}
	case schema.Binary:
		switch x := v.(type) {
		case []byte:
			return bytes.Clone(x), nil
		case string:
			return []byte(x), nil
		}
	}
	return nil, fmt.Errorf("cannot convert %T to %s", v, k)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (any, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return nil, fmt.Errorf("cannot parse %q as datetime", s)
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case uint:
		return int64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case []byte:
		return parseInt(string(x))
	case string:
		return parseInt(x)
	}
	return 0, false
}

func parseInt(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return n, true
	}
	// Aggregates such as SUM come back from some drivers as decimal text.
	d, derr := decimal.NewFromString(s)
	if derr != nil || !d.IsInteger() {
		return 0, false
	}
	return d.IntPart(), true
}

func toUint64(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint64:
		return x, true
	case uint:
		return uint64(x), true
	case uint8:
		return uint64(x), true
	case uint16:
		return uint64(x), true
	case uint32:
		return uint64(x), true
	case []byte:
		n, err := strconv.ParseUint(string(x), 10, 64)
		return n, err == nil
	case string:
		n, err := strconv.ParseUint(x, 10, 64)
		if err == nil {
			return n, true
		}
	}
	n, ok := toInt64(v)
	if !ok || n < 0 {
		return 0, false
	}
	return uint64(n), true
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case decimal.Decimal:
		f, _ := x.Float64()
		return f, true
	case []byte:
		f, err := strconv.ParseFloat(string(x), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	if n, ok := toInt64(v); ok {
		return float64(n), true
	}
	if n, ok := toUint64(v); ok {
		return float64(n), true
	}
	return 0, false
}

// normalDecimal drops trailing fractional zeros, so 12.00 and 12 share one
// representation whichever executor produced them.
func normalDecimal(d decimal.Decimal) decimal.Decimal {
	return decimal.RequireFromString(d.String())
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
	case float64:
		return decimal.NewFromFloat(x), true
	case float32:
		return decimal.NewFromFloat32(x), true
	case string:
		d, err := decimal.NewFromString(x)
		return d, err == nil
	case []byte:
		d, err := decimal.NewFromString(string(x))
		return d, err == nil
	case uint64:
		return decimal.NewFromUint64(x), true
	}
	if n, ok := toInt64(v); ok {
		return decimal.NewFromInt(n), true
	}
	return decimal.Decimal{}, false
}

func checkSignedRange(n int64, k schema.Kind) error {
	var lo, hi int64
	switch k {
	case schema.Int8:
		lo, hi = math.MinInt8, math.MaxInt8
	case schema.Int16:
		lo, hi = math.MinInt16, math.MaxInt16
	case schema.Int32:
		lo, hi = math.MinInt32, math.MaxInt32
	default:
		return nil
	}
	if n < lo || n > hi {
		return fmt.Errorf("value %d out of range for %s", n, k)
	}
	return nil
}

func checkUnsignedRange(n uint64, k schema.Kind) error {
	var hi uint64
	switch k {
	case schema.UInt8:
		hi = math.MaxUint8
	case schema.UInt16:
		hi = math.MaxUint16
	case schema.UInt32:
		hi = math.MaxUint32
	default:
		return nil
	}
	if n > hi {
		return fmt.Errorf("value %d out of range for %s", n, k)
	}
	return nil
}

// KindOf infers the kind of a normalized or host value. It returns
// schema.KindInvalid for nil and unknown types.
func KindOf(v any) schema.Kind {
	switch v.(type) {
	case bool:
		return schema.Bool
	case int8:
		return schema.Int8
	case int16:
		return schema.Int16
	case int32:
		return schema.Int32
	case int, int64:
		return schema.Int64
	case uint8:
		return schema.UInt8
	case uint16:
		return schema.UInt16
	case uint32:
		return schema.UInt32
	case uint, uint64:
		return schema.UInt64
	case float32:
		return schema.Float32
	case float64:
		return schema.Float64
	case decimal.Decimal:
		return schema.Decimal
	case string:
		return schema.String
	case time.Time:
		return schema.DateTime
	case []byte:
		return schema.Binary
	case *Record:
		return schema.Record
	}
	return schema.KindInvalid
}

// Format renders a value for diagnostics.
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return strconv.Quote(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case decimal.Decimal:
		return x.String()
	case []byte:
		return fmt.Sprintf("0x%x", x)
	case *Record:
		return x.String()
	}
	return fmt.Sprint(v)
}

// Key returns a string that is equal for structurally equal values. It is used
// to partition rows by grouping keys.
func Key(v any) string {
	var b strings.Builder
	writeKey(&b, v)
	return b.String()
}

func writeKey(b *strings.Builder, v any) {
	switch x := v.(type) {
	case nil:
		b.WriteString("n;")
	case *Record:
		if x == nil {
			b.WriteString("n;")
			return
		}
		b.WriteString("r{")
		for i, n := range x.names {
			b.WriteString(strconv.Quote(n))
			b.WriteByte('=')
			writeKey(b, x.values[i])
		}
		b.WriteString("};")
	case decimal.Decimal:
		b.WriteString("d" + x.String() + ";")
	case time.Time:
		b.WriteString("t" + x.UTC().Format(time.RFC3339Nano) + ";")
	case []byte:
		fmt.Fprintf(b, "b%x;", x)
	case string:
		b.WriteString("s" + strconv.Quote(x) + ";")
	default:
		fmt.Fprintf(b, "%T:%v;", v, v)
	}
}

// Equal reports structural equality; nil equals nil.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ra, aRec := a.(*Record)
	rb, bRec := b.(*Record)
	if aRec || bRec {
		if !aRec || !bRec {
			return false
		}
		if ra == nil || rb == nil {
			return ra == nil && rb == nil
		}
		if len(ra.names) != len(rb.names) {
			return false
		}
		for i, n := range ra.names {
			other, ok := rb.Get(n)
			if !ok || !Equal(ra.values[i], other) {
				return false
			}
		}
		return true
	}
	c, err := Compare(a, b)
	return err == nil && c == 0
}

// Zero returns the zero value of kind k, used to fill a NOT NULL column added
// to a table that already has rows.
func Zero(k schema.Kind) any {
	switch k {
	case schema.Bool:
		return false
	case schema.Int8, schema.Int16, schema.Int32, schema.Int64:
		return int64(0)
	case schema.UInt8, schema.UInt16, schema.UInt32, schema.UInt64:
		return uint64(0)
	case schema.Float32, schema.Float64:
		return float64(0)
	case schema.Decimal:
		return decimal.Zero
	case schema.String:
		return ""
	case schema.DateTime:
		return time.Time{}
	case schema.Binary:
		return []byte{}
	}
	return nil
}
