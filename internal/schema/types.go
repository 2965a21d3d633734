package schema

import (
	"fmt"
	"strings"
)

// Kind is the scalar type of a column or expression.
type Kind int

const (
	KindInvalid Kind = iota
	Bool
	Int8
	UInt8
	Int16
	UInt16
	Int32
	UInt32
	Int64
	UInt64
	Float32
	Float64
	Decimal
	String
	DateTime
	Binary

	// Record is the kind of a whole row reference. It never appears on a column.
	Record
)

var kindNames = map[Kind]string{
	Bool:     "bool",
	Int8:     "int8",
	UInt8:    "uint8",
	Int16:    "int16",
	UInt16:   "uint16",
	Int32:    "int32",
	UInt32:   "uint32",
	Int64:    "int64",
	UInt64:   "uint64",
	Float32:  "float32",
	Float64:  "float64",
	Decimal:  "decimal",
	String:   "string",
	DateTime: "datetime",
	Binary:   "binary",
	Record:   "record",
}

// String returns the canonical lowercase name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind resolves a kind from its canonical name. Matching is case-insensitive.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == name && k != Record {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("unknown column kind %q", s)
}

// IsInteger reports whether k is one of the signed or unsigned integer kinds.
func (k Kind) IsInteger() bool {
	switch k {
	case Int8, UInt8, Int16, UInt16, Int32, UInt32, Int64, UInt64:
		return true
	}
	return false
}

// IsUnsigned reports whether k is an unsigned integer kind.
func (k Kind) IsUnsigned() bool {
	switch k {
	case UInt8, UInt16, UInt32, UInt64:
		return true
	}
	return false
}

// IsNumeric reports whether k supports arithmetic.
func (k Kind) IsNumeric() bool {
	return k.IsInteger() || k == Float32 || k == Float64 || k == Decimal
}

// Type is a kind plus nullability.
type Type struct {
	Kind     Kind
	Nullable bool
}

// Of returns the non-nullable type of kind k.
func Of(k Kind) Type {
	return Type{Kind: k}
}

// NullableOf returns the nullable type of kind k.
func NullableOf(k Kind) Type {
	return Type{Kind: k, Nullable: true}
}

// Unwrap strips nullability.
func (t Type) Unwrap() Type {
	return Type{Kind: t.Kind}
}

// OrNull returns t marked nullable.
func (t Type) OrNull() Type {
	return Type{Kind: t.Kind, Nullable: true}
}

// IsValid reports whether t has a known kind.
func (t Type) IsValid() bool {
	return t.Kind != KindInvalid
}

func (t Type) String() string {
	if t.Nullable {
		return t.Kind.String() + "?"
	}
	return t.Kind.String()
}

// ParseType parses "kind" or "kind?" into a Type.
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	nullable := strings.HasSuffix(s, "?")
	k, err := ParseKind(strings.TrimSuffix(s, "?"))
	if err != nil {
		return Type{}, err
	}
	return Type{Kind: k, Nullable: nullable}, nil
}

// Default sizes used when a column does not carry explicit type info.
const (
	DefaultDecimalPrecision = 13
	DefaultDecimalScale     = 5
)

// TypeInfo carries the size hints of string and decimal columns.
//
// StringLength 0 means unbounded text.
type TypeInfo struct {
	StringLength int
	NVarChar     bool
	Precision    int
	Scale        int
}

// DecimalSize returns the precision and scale, falling back to the defaults.
func (ti TypeInfo) DecimalSize() (int, int) {
	p, s := ti.Precision, ti.Scale
	if p == 0 {
		p, s = DefaultDecimalPrecision, DefaultDecimalScale
	}
	return p, s
}
