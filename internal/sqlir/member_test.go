package sqlir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typedsql/internal/schema"
)

func TestSubQueryResultLookup(t *testing.T) {
	r := &SubQueryResult{Members: []Member{
		&TableFieldMember{Name: "o.Id", Alias: "a0", Column: idCol},
		&TableFieldMember{Name: "u.Id", Alias: "a1", Column: idCol, Nullable: true},
		&TableFieldMember{Name: "u.Name", Alias: "a1", Column: nameCol, Nullable: true},
	}}

	m, ok := r.Lookup("u.Name")
	require.True(t, ok)
	assert.Equal(t, schema.NullableOf(schema.String), m.Expr().Type())

	_, ok = r.Lookup("u")
	assert.False(t, ok)

	assert.Len(t, r.Nested("u"), 2)
	assert.Len(t, r.Nested(""), 3)

	p, ok := r.Presence("u")
	require.True(t, ok)
	assert.Equal(t, "u.Id", p.MemberName())
}

func TestJoinFieldMemberThroughSubquery(t *testing.T) {
	inner := &TableFieldMember{Name: "Id", Alias: "a0", Column: idCol}
	outer := &JoinFieldMember{Name: "Id", Alias: "a1", SourceName: "Id", Source: inner}

	assert.True(t, IsKeyMember(outer))
	assert.Equal(t, &JoinField{Alias: "a1", Name: "Id", T: schema.Of(schema.Int32)}, outer.Expr())

	nullable := MakeNullable(outer)
	assert.Equal(t, schema.NullableOf(schema.Int32), nullable.Expr().Type())
	assert.False(t, outer.Expr().Type().Nullable, "original member unchanged")
}

func TestRenameKeepsKind(t *testing.T) {
	m := Rename(&TableFieldMember{Name: "Name", Alias: "a0", Column: nameCol}, "u.Name")
	tf, ok := m.(*TableFieldMember)
	require.True(t, ok)
	assert.Equal(t, "u.Name", tf.Name)
	assert.Equal(t, "a0", tf.Alias)

	e := Rename(&ExprMember{Name: "n", Value: &Call{Func: FuncCount, T: schema.Of(schema.Int64)}}, "total")
	assert.Equal(t, "total", e.MemberName())
}

func TestMakeNullableExprMember(t *testing.T) {
	m := MakeNullable(&ExprMember{Name: "n", Value: &Call{Func: FuncCount, T: schema.Of(schema.Int64)}})
	assert.Equal(t, schema.NullableOf(schema.Int64), m.Expr().Type())
}

func TestQueryIsFlat(t *testing.T) {
	q := &Query{Result: &SubQueryResult{Members: []Member{
		&TableFieldMember{Name: "Id", Alias: "a0", Column: idCol},
	}}}
	assert.True(t, q.IsFlat())

	n := 2
	q.Limit = &n
	assert.False(t, q.IsFlat())
	assert.True(t, q.HasWindow())

	agg := &Query{Result: &SubQueryResult{Members: []Member{
		&ExprMember{Name: "n", Value: &Call{Func: FuncCount, T: schema.Of(schema.Int64)}},
	}}}
	assert.False(t, agg.IsFlat())
	assert.True(t, agg.HasAggregates())
}
