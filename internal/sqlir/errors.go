package sqlir

import (
	"errors"
	"fmt"
)

// UnsupportedError reports a construct outside the supported subset: an
// unknown expression or statement variant, a function outside the allowlist,
// a column type a dialect cannot store, or a join shape a dialect cannot
// express. It is never recovered from.
type UnsupportedError struct {
	// Construct is the category, e.g. "expression", "function", "column type".
	Construct string

	// Name identifies the offending construct.
	Name string

	// Dialect is set when the construct is only unsupported by one dialect.
	Dialect string

	// Detail optionally explains the restriction.
	Detail string
}

func (e *UnsupportedError) Error() string {
	msg := fmt.Sprintf("unsupported %s %s", e.Construct, e.Name)
	if e.Dialect != "" {
		msg += " for " + e.Dialect
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unsupported creates an UnsupportedError without a dialect.
func Unsupported(construct, name string) *UnsupportedError {
	return &UnsupportedError{Construct: construct, Name: name}
}

// IsUnsupported reports whether err wraps an UnsupportedError.
func IsUnsupported(err error) bool {
	var ue *UnsupportedError
	return errors.As(err, &ue)
}

// TypeError reports operand types that cannot be combined.
type TypeError struct {
	Op    string
	Left  string
	Right string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("operand types %s and %s do not match for %s", e.Left, e.Right, e.Op)
}
