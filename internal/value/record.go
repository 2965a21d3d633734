// Package value holds runtime values of the in-memory evaluator.
//
// Scalars are normalized per schema.Kind:
//
//	bool              Bool
//	int64             Int8, Int16, Int32, Int64
//	uint64            UInt8, UInt16, UInt32, UInt64
//	float64           Float32, Float64
//	decimal.Decimal   Decimal
//	string            String
//	time.Time         DateTime
//	[]byte            Binary
//	nil               SQL NULL of any kind
//
// Rows are *Record values: ordered named fields, where a field may itself be a
// nested *Record (a projected sub-row). A nil *Record stands for an absent row
// (the right side of an unmatched left join); every field read through it is NULL.
package value

import (
	"fmt"
	"slices"
	"strings"
)

// Record is an ordered set of named values.
type Record struct {
	names  []string
	values []any
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{}
}

// RecordOf builds a record from alternating name/value pairs.
// It panics on an odd argument count or a non-string name.
func RecordOf(pairs ...any) *Record {
	if len(pairs)%2 != 0 {
		panic("value.RecordOf: odd number of arguments")
	}
	r := NewRecord()
	for i := 0; i < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("value.RecordOf: name at %d is %T", i, pairs[i]))
		}
		r.Set(name, pairs[i+1])
	}
	return r
}

// Set assigns a field, replacing an existing one with the same name.
func (r *Record) Set(name string, v any) {
	if i := slices.Index(r.names, name); i >= 0 {
		r.values[i] = v
		return
	}
	r.names = append(r.names, name)
	r.values = append(r.values, v)
}

// Get returns the field value and whether it exists.
func (r *Record) Get(name string) (any, bool) {
	if r == nil {
		return nil, false
	}
	i := slices.Index(r.names, name)
	if i < 0 {
		return nil, false
	}
	return r.values[i], true
}

// Lookup follows a member path through nested records. Missing fields and
// absent records yield nil.
func (r *Record) Lookup(path ...string) any {
	var cur any = r
	for _, name := range path {
		rec, ok := cur.(*Record)
		if !ok || rec == nil {
			return nil
		}
		cur, _ = rec.Get(name)
	}
	return cur
}

// Names returns the field names in order.
func (r *Record) Names() []string {
	if r == nil {
		return nil
	}
	return slices.Clone(r.names)
}

// Len returns the number of fields.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}

// Clone returns a shallow copy; nested records are cloned recursively.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := &Record{names: slices.Clone(r.names), values: make([]any, len(r.values))}
	for i, v := range r.values {
		if nested, ok := v.(*Record); ok {
			cp.values[i] = nested.Clone()
			continue
		}
		cp.values[i] = v
	}
	return cp
}

// Flatten returns dotted field names and their scalar values. Fields of an
// absent nested record are not known and are omitted.
func (r *Record) Flatten() ([]string, []any) {
	var names []string
	var values []any
	r.flatten("", &names, &values)
	return names, values
}

func (r *Record) flatten(prefix string, names *[]string, values *[]any) {
	if r == nil {
		return
	}
	for i, n := range r.names {
		full := n
		if prefix != "" {
			full = prefix + "." + n
		}
		if nested, ok := r.values[i].(*Record); ok {
			nested.flatten(full, names, values)
			continue
		}
		*names = append(*names, full)
		*values = append(*values, r.values[i])
	}
}

// Unflatten rebuilds nested records from dotted names.
func Unflatten(names []string, values []any) *Record {
	root := NewRecord()
	for i, name := range names {
		parts := strings.Split(name, ".")
		cur := root
		for _, p := range parts[:len(parts)-1] {
			next, ok := cur.Get(p)
			nested, isRec := next.(*Record)
			if !ok || !isRec || nested == nil {
				nested = NewRecord()
				cur.Set(p, nested)
			}
			cur = nested
		}
		cur.Set(parts[len(parts)-1], values[i])
	}
	return root
}

// String renders the record for diagnostics.
func (r *Record) String() string {
	if r == nil {
		return "<absent>"
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, n := range r.names {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(n)
		b.WriteString(": ")
		b.WriteString(Format(r.values[i]))
	}
	b.WriteByte('}')
	return b.String()
}
