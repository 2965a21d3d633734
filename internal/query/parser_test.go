package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/sqlir"
	"github.com/roach88/typedsql/internal/testutil"
)

func memberNames(res *sqlir.SubQueryResult) []string {
	names := make([]string, len(res.Members))
	for i, m := range res.Members {
		names[i] = m.MemberName()
	}
	return names
}

func TestParseFlatQuery(t *testing.T) {
	shop := testutil.NewShop()
	p := NewParser()
	q, err := p.Parse(From(shop.Users).
		Where("u", Gt(F("u", "Age"), Const(18))).
		Where("u", Like(F("u", "Name"), Const("a%"))).
		OrderBy("u", F("u", "Name")).
		Select("u", Project(As("Id", F("u", "Id")), As("mail", F("u", "Email")))))
	require.NoError(t, err)

	assert.Same(t, shop.Users, q.From)
	assert.Equal(t, "a0", q.FromAlias)
	assert.Nil(t, q.FromQuery)
	assert.Len(t, q.Wheres, 2)
	assert.Len(t, q.OrderBys, 1)
	assert.Equal(t, []string{"Id", "mail"}, memberNames(q.Result))

	gt := q.Wheres[0].(*sqlir.Binary)
	param := gt.Right.(*sqlir.Param)
	assert.Equal(t, "p0", param.Name)
	assert.Equal(t, schema.Int32, param.T.Kind, "constant takes the column type")
	assert.Equal(t, []string{"p0", "p1"}, p.Params())
	args, err := p.Args([]string{"p1", "p0"})
	require.NoError(t, err)
	assert.Equal(t, []any{"a%", int64(18)}, args)

	mail := q.Result.Members[1].(*sqlir.TableFieldMember)
	assert.Equal(t, "email_address", mail.Column.SqlName)
}

func TestParseBoolAndNullAreInline(t *testing.T) {
	shop := testutil.NewShop()
	p := NewParser()
	q, err := p.Parse(From(shop.Users).
		Where("u", Eq(F("u", "Active"), Const(true))).
		Where("u", Eq(F("u", "Email"), Null())))
	require.NoError(t, err)

	active := q.Wheres[0].(*sqlir.Binary).Right.(*sqlir.Constant)
	assert.Equal(t, true, active.Value)
	null := q.Wheres[1].(*sqlir.Binary).Right.(*sqlir.Constant)
	assert.True(t, null.IsNull())
	assert.Equal(t, schema.NullableOf(schema.String), null.T)
	assert.Empty(t, p.Params())
}

func TestParseWrapsAfterGrouping(t *testing.T) {
	shop := testutil.NewShop()
	grouped := From(shop.Orders).
		OrderBy("o", F("o", "Created")).
		GroupBy("o", Project(As("user", F("o", "UserId"))), "k", "g",
			Project(As("user", F("k", "user")), As("n", Count("g"))))

	q, err := NewParser().Parse(grouped.Where("r", Gt(F("r", "n"), Const(1))))
	require.NoError(t, err)
	require.NotNil(t, q.FromQuery)
	assert.Equal(t, "a1", q.FromAlias)
	assert.Len(t, q.FromQuery.GroupBys, 1)
	assert.Empty(t, q.FromQuery.OrderBys, "GroupBy after OrderBy keeps no ordering")
	n := q.Result.Members[1].(*sqlir.JoinFieldMember)
	assert.Equal(t, "n", n.SourceName)
	assert.Equal(t, schema.Of(schema.Int64), n.Expr().Type())
}

func TestParseWindowKeepsInnerOrdering(t *testing.T) {
	shop := testutil.NewShop()
	page := From(shop.Users).OrderBy("u", F("u", "Age")).Limit(2)

	q, err := NewParser().Parse(page.Select("u", Project(As("n", Count("u")))))
	require.NoError(t, err)
	require.NotNil(t, q.FromQuery)
	assert.Len(t, q.FromQuery.OrderBys, 1)
	assert.Equal(t, 2, *q.FromQuery.Limit)
	assert.Nil(t, q.Limit)

	q, err = NewParser().Parse(page.Offset(4).Offset(1))
	require.NoError(t, err)
	assert.Nil(t, q.FromQuery, "Offset after Limit stays in place")
	assert.Equal(t, 1, *q.Offset)
	assert.Equal(t, 2, *q.Limit)
}

func TestParseJoinShapes(t *testing.T) {
	shop := testutil.NewShop()
	q, err := NewParser().Parse(From(shop.Users).
		Join(From(shop.Orders), "u", "o", Eq(F("u", "Id"), F("o", "UserId")), nil).
		LeftJoin(From(shop.Products).Where("p", Gt(F("p", "Price"), Const(10))), "x", "p",
			Eq(F("x", "o", "ProductId"), F("p", "Id")), nil))
	require.NoError(t, err)

	require.Len(t, q.Joins, 2)
	assert.Same(t, shop.Orders, q.Joins[0].Table)
	assert.Equal(t, sqlir.InnerJoin, q.Joins[0].Type)
	require.NotNil(t, q.Joins[1].Query)
	assert.Equal(t, sqlir.LeftJoin, q.Joins[1].Type)

	name, ok := q.Result.Lookup("p.Name")
	require.True(t, ok)
	jf := name.(*sqlir.JoinFieldMember)
	assert.True(t, jf.Nullable)
	assert.True(t, jf.Expr().Type().Nullable)

	userName, ok := q.Result.Lookup("x.u.Name")
	require.True(t, ok)
	assert.False(t, userName.Expr().Type().Nullable)
}

func TestParseRowNullCheckUsesKey(t *testing.T) {
	shop := testutil.NewShop()
	q, err := NewParser().Parse(From(shop.Users).
		LeftJoin(From(shop.Orders), "u", "o", Eq(F("u", "Id"), F("o", "UserId")), nil).
		Where("x", Eq(F("x", "o"), Null())))
	require.NoError(t, err)

	check := q.Wheres[0].(*sqlir.Binary)
	row := check.Left.(*sqlir.RowRef)
	key := row.Presence.(*sqlir.TableField)
	assert.Equal(t, "Id", key.Column.MemberName)
	assert.True(t, key.Nullable)

	_, err = NewParser().Parse(Values(Project(As("a", Const(1)))).
		Join(Values(Project(As("b", Const(2)))), "l", "r", Const(true), nil).
		Where("x", Ne(F("x", "r"), Null())))
	require.Error(t, err)
	assert.True(t, sqlir.IsUnsupported(err))
}

func TestParseCollapsesNullableAndCoalesce(t *testing.T) {
	shop := testutil.NewShop()
	q, err := NewParser().Parse(From(shop.Users).
		LeftJoin(From(shop.Orders), "u", "o", Eq(F("u", "Id"), F("o", "UserId")), nil).
		Select("x", Project(
			As("qty", Nullable("x", "o", "Quantity")),
			As("note", Coalesce(F("x", "o", "Note"), Const("none"))),
		)))
	require.NoError(t, err)

	qty := q.Result.Members[0].Expr().(*sqlir.Cast)
	assert.True(t, qty.IsNullableWrap())
	assert.IsType(t, &sqlir.TableField{}, qty.Operand)

	note := q.Result.Members[1].Expr().(*sqlir.Call)
	assert.Equal(t, sqlir.FuncCoalesce, note.Func)
	assert.Equal(t, schema.Of(schema.String), note.Type())
}

func TestParseAggregates(t *testing.T) {
	shop := testutil.NewShop()
	q, err := NewParser().Parse(From(shop.Orders).Select("o", Project(
		As("n", Count("o")),
		As("sum", Sum("o", F("o", "Quantity"))),
		As("avg", Avg("o", F("o", "Quantity"))),
		As("first", Min("o", F("o", "Created"))),
	)))
	require.NoError(t, err)
	assert.Nil(t, q.FromQuery, "aggregating a flat query needs no subquery")

	types := make([]schema.Type, len(q.Result.Members))
	for i, m := range q.Result.Members {
		types[i] = m.Expr().Type()
	}
	assert.Equal(t, []schema.Type{
		schema.Of(schema.Int64),
		schema.NullableOf(schema.Int64),
		schema.NullableOf(schema.Float64),
		schema.NullableOf(schema.DateTime),
	}, types)

	avg := q.Result.Members[2].Expr().(*sqlir.Call)
	assert.IsType(t, &sqlir.Cast{}, avg.Args[0], "integer average casts to float64")
}

func TestParseErrors(t *testing.T) {
	shop := testutil.NewShop()
	users := From(shop.Users)
	tests := []struct {
		name        string
		q           *Query
		unsupported bool
		contains    string
	}{
		{"unknown function", users.Select("u", Project(As("x", Call("Soundex", F("u", "Name"))))), true, "unsupported function Soundex"},
		{"negative offset", users.Offset(-2), true, "must not be negative"},
		{"negative limit", users.Limit(-1), true, "must not be negative"},
		{"where after limit", users.Limit(1).Where("u", Const(true)), true, "after Offset or Limit"},
		{"having after where", users.Where("u", Const(true)).Having("k", "g", Const(true)), true, "must follow GroupBy"},
		{"group outside aggregate", users.GroupBy("u", Project(As("a", F("u", "Age"))), "k", "g",
			Project(As("n", F("g", "Name")))), false, "only readable through aggregates"},
		{"aggregate over row", users.Where("u", Gt(Count("u"), Const(1))), false, "not a group"},
		{"type mismatch", users.Where("u", Eq(F("u", "Name"), F("u", "Age"))), false, "do not match"},
		{"unknown member", users.Select("u", Project(As("x", F("u", "Nope")))), false, "unknown member"},
		{"duplicate member", users.Select("u", Project(As("x", F("u", "Id")), As("x", F("u", "Age")))), false, "duplicate member"},
		{"untyped null", users.Select("u", Project(As("x", Null()))), false, "NULL literal without a type"},
		{"row comparison", users.Join(users, "a", "b", Eq(Ref("a"), Ref("b")), nil), true, "row comparison"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser().Parse(tt.q)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
			assert.Equal(t, tt.unsupported, sqlir.IsUnsupported(err))
		})
	}
}

func TestParseInAndSubqueries(t *testing.T) {
	shop := testutil.NewShop()
	p := NewParser()
	q, err := p.Parse(From(shop.Users).
		Where("u", In(F("u", "Age"), List(18, 21))).
		Where("u", Exists(From(shop.Orders).Where("o", Eq(F("o", "UserId"), F("u", "Id"))))))
	require.NoError(t, err)

	in := q.Wheres[0].(*sqlir.Binary)
	arr := in.Right.(*sqlir.ConstantArray)
	assert.Len(t, arr.Items, 2)
	assert.Equal(t, schema.Of(schema.Int32), arr.Elem)

	exists := q.Wheres[1].(*sqlir.Call)
	sub := exists.Args[0].(*sqlir.Select).Query
	assert.Equal(t, "a1", sub.FromAlias, "subquery aliases continue the numbering")
	corr := sub.Wheres[0].(*sqlir.Binary).Right.(*sqlir.TableField)
	assert.Equal(t, "a0", corr.Alias)

	_, err = p.Parse(From(shop.Users).Where("u", Eq(F("u", "Age"),
		Scalar(From(shop.Orders).Select("o", Project(As("a", F("o", "Id")), As("b", F("o", "UserId"))))))))
	assert.ErrorContains(t, err, "exactly one member")
}

func TestParseVariablesShareOnePlaceholder(t *testing.T) {
	shop := testutil.NewShop()
	v := NewVariable("minAge", schema.Of(schema.Int32))
	p := NewParser()

	a, err := p.ParseExpr(Var(v), schema.Type{})
	require.NoError(t, err)
	q, err := p.Parse(From(shop.Users).Where("u", Gt(F("u", "Age"), Var(v))))
	require.NoError(t, err)

	ref := q.Wheres[0].(*sqlir.Binary).Right.(*sqlir.PlaceholderRef)
	assert.Same(t, a.(*sqlir.PlaceholderRef).Placeholder, ref.Placeholder)
	assert.Equal(t, schema.NullableOf(schema.Int32), ref.Type())
	assert.Equal(t, sqlir.SessionVariable, ref.Placeholder.Kind)
}
