package sqlir

import (
	"strings"

	"github.com/roach88/typedsql/internal/schema"
)

// Member is one output column of a query result.
//
// This is a sealed interface - only types in this package implement it.
//
// Member types:
//   - TableFieldMember: a column of an aliased table
//   - JoinFieldMember: a column surfaced through a subquery boundary
//   - ExprMember: a computed expression
//
// Names are unique within one SubQueryResult. A dotted name such as "u.Name"
// is a field of the nested record "u".
type Member interface {
	MemberName() string

	// Expr returns the expression that reads the member.
	Expr() Expr

	memberNode() // Marker method - seals interface to this package
}

// TableFieldMember selects a table column.
type TableFieldMember struct {
	Name     string
	Alias    string
	Column   *schema.Column
	Nullable bool
}

func (m *TableFieldMember) MemberName() string { return m.Name }

func (m *TableFieldMember) Expr() Expr {
	return &TableField{Alias: m.Alias, Column: m.Column, Nullable: m.Nullable}
}

func (*TableFieldMember) memberNode() {}

// JoinFieldMember selects an output column of an aliased subquery. Source is
// the member inside the subquery; SourceName is its column name there.
type JoinFieldMember struct {
	Name       string
	Alias      string
	SourceName string
	Source     Member
	Nullable   bool
}

func (m *JoinFieldMember) MemberName() string { return m.Name }

func (m *JoinFieldMember) Expr() Expr {
	t := m.Source.Expr().Type()
	if m.Nullable {
		t = t.OrNull()
	}
	return &JoinField{Alias: m.Alias, Name: m.SourceName, T: t}
}

func (*JoinFieldMember) memberNode() {}

// ExprMember selects a computed expression.
type ExprMember struct {
	Name  string
	Value Expr
}

func (m *ExprMember) MemberName() string { return m.Name }

func (m *ExprMember) Expr() Expr { return m.Value }

func (*ExprMember) memberNode() {}

// Rename returns a copy of m under a new name.
func Rename(m Member, name string) Member {
	switch x := m.(type) {
	case *TableFieldMember:
		cp := *x
		cp.Name = name
		return &cp
	case *JoinFieldMember:
		cp := *x
		cp.Name = name
		return &cp
	case *ExprMember:
		return &ExprMember{Name: name, Value: x.Value}
	}
	return m
}

// MakeNullable returns a copy of m whose expression type is nullable. Members
// on the optional side of a left join pass through it.
func MakeNullable(m Member) Member {
	switch x := m.(type) {
	case *TableFieldMember:
		cp := *x
		cp.Nullable = true
		return &cp
	case *JoinFieldMember:
		cp := *x
		cp.Nullable = true
		return &cp
	case *ExprMember:
		if x.Value.Type().Nullable {
			return x
		}
		return &ExprMember{Name: x.Name, Value: &Cast{Operand: x.Value, To: x.Value.Type().OrNull()}}
	}
	return m
}

// IsKeyMember reports whether m reads a primary key column, directly or
// through subquery boundaries. A key member is NULL only when its row is
// absent.
func IsKeyMember(m Member) bool {
	switch x := m.(type) {
	case *TableFieldMember:
		return x.Column.PrimaryKey
	case *JoinFieldMember:
		return IsKeyMember(x.Source)
	}
	return false
}

// SubQueryResult is the ordered member list of a query.
type SubQueryResult struct {
	Members []Member
}

// Lookup returns the member with the exact name.
func (r *SubQueryResult) Lookup(name string) (Member, bool) {
	for _, m := range r.Members {
		if m.MemberName() == name {
			return m, true
		}
	}
	return nil, false
}

// Nested returns the members of the nested record prefix, names unchanged.
// An empty prefix returns every member.
func (r *SubQueryResult) Nested(prefix string) []Member {
	if prefix == "" {
		return r.Members
	}
	var out []Member
	for _, m := range r.Members {
		if strings.HasPrefix(m.MemberName(), prefix+".") {
			out = append(out, m)
		}
	}
	return out
}

// Presence returns a member that is NULL exactly when the nested record
// prefix is absent, or false if no key member can serve.
func (r *SubQueryResult) Presence(prefix string) (Member, bool) {
	for _, m := range r.Nested(prefix) {
		if IsKeyMember(m) {
			return m, true
		}
	}
	return nil, false
}
