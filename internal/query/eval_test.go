package query

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typedsql/internal/memory"
	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/sqlir"
	"github.com/roach88/typedsql/internal/testutil"
	"github.com/roach88/typedsql/internal/value"
)

// newShopEnv returns an environment over a store holding the shop fixture.
func newShopEnv(t *testing.T) (*Env, *testutil.Shop) {
	t.Helper()
	shop := testutil.NewShop()
	store := memory.NewStore()
	seed := map[string][]*value.Record{
		"Users":    testutil.UserRows(),
		"Products": testutil.ProductRows(),
		"Orders":   testutil.OrderRows(),
	}
	for _, tbl := range shop.Tables() {
		require.NoError(t, store.Apply(&sqlir.CreateTable{Table: tbl}))
		mt, err := store.Table(tbl.Name)
		require.NoError(t, err)
		for _, r := range seed[tbl.Name] {
			_, _, err := mt.Insert(r)
			require.NoError(t, err)
		}
	}
	return NewEnv(store), shop
}

// column returns one member of every record.
func column(t *testing.T, recs []*value.Record, path ...string) []any {
	t.Helper()
	out := make([]any, len(recs))
	for i, r := range recs {
		out[i] = r.Lookup(path...)
	}
	return out
}

func TestEvalWhereAndSelect(t *testing.T) {
	env, shop := newShopEnv(t)
	q := From(shop.Users).
		Where("u", Gt(F("u", "Age"), Const(24))).
		Select("u", Project(As("name", F("u", "Name")), As("next", Add(F("u", "Age"), Const(1)))))

	recs, err := env.Records(q)
	require.NoError(t, err)
	assert.Equal(t, []any{"ada", "bob", "cy"}, column(t, recs, "name"))
	assert.Equal(t, []any{int64(37), int64(26), int64(42)}, column(t, recs, "next"))
	assert.Equal(t, []string{"name", "next"}, recs[0].Names())
}

func TestEvalRowsCarrySources(t *testing.T) {
	env, shop := newShopEnv(t)
	rows, err := env.Rows(From(shop.Users).Where("u", Eq(F("u", "Active"), Const(true))))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	idx, ok := rows[1].Source("Users")
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	rows, err = env.Rows(From(shop.Users).GroupBy("u",
		Project(As("active", F("u", "Active"))), "k", "g",
		Project(As("active", F("k", "active")), As("n", Count("g")))))
	require.NoError(t, err)
	_, ok = rows[0].Source("Users")
	assert.False(t, ok, "grouped rows have no sources")
}

func TestEvalThreeValuedLogic(t *testing.T) {
	env, shop := newShopEnv(t)
	names := func(pred Expr) []any {
		recs, err := env.Records(From(shop.Users).Where("u", pred).Select("u", Project(As("n", F("u", "Name")))))
		require.NoError(t, err)
		return column(t, recs, "n")
	}

	assert.Equal(t, []any{"ada"}, names(Eq(F("u", "Email"), Const("ada@example.com"))))
	assert.Equal(t, []any{"cy"}, names(Not(Eq(F("u", "Email"), Const("ada@example.com")))),
		"NOT of unknown stays unknown")
	assert.Equal(t, []any{"bob", "dee"}, names(Eq(F("u", "Email"), Null())))
	assert.Equal(t, []any{"ada", "bob", "cy", "dee"},
		names(Or(Eq(F("u", "Email"), Const("x")), Eq(F("u", "Active"), F("u", "Active")))))
	assert.Equal(t, []any{"ada"},
		names(In(F("u", "Email"), List("ada@example.com", nil))))
	assert.Empty(t, names(Not(In(F("u", "Email"), List("ada@example.com", nil)))),
		"NOT IN with a NULL item is never true")
	assert.Empty(t, names(In(F("u", "Name"), List())))
}

func TestEvalJoins(t *testing.T) {
	env, shop := newShopEnv(t)

	inner := From(shop.Users).
		Join(From(shop.Orders), "u", "o", Eq(F("u", "Id"), F("o", "UserId")), nil).
		Where("x", Eq(F("x", "u", "Name"), Const("ada")))
	recs, err := env.Records(inner)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
	assert.Equal(t, []any{int64(3), int64(1), int64(2)}, column(t, recs, "o", "Quantity"))

	left := From(shop.Users).
		LeftJoin(From(shop.Orders).Where("o", Gt(F("o", "Quantity"), Const(1))), "u", "o",
			Eq(F("u", "Id"), F("o", "UserId")), nil).
		Select("x", Project(
			As("name", F("x", "u", "Name")),
			As("qty", Nullable("x", "o", "Quantity")),
			As("hasOrder", Ne(F("x", "o"), Null())),
		))
	recs, err = env.Records(left)
	require.NoError(t, err)
	assert.Equal(t, []any{"ada", "ada", "bob", "cy", "dee"}, column(t, recs, "name"))
	assert.Equal(t, []any{int64(3), int64(2), int64(2), nil, nil}, column(t, recs, "qty"))
	assert.Equal(t, []any{true, true, true, false, false}, column(t, recs, "hasOrder"))
}

func TestEvalGroupByHaving(t *testing.T) {
	env, shop := newShopEnv(t)
	q := From(shop.Orders).
		GroupBy("o", Project(As("user", F("o", "UserId"))), "k", "g", Project(
			As("user", F("k", "user")),
			As("orders", Count("g")),
			As("qty", Sum("g", F("g", "Quantity"))),
			As("avg", Avg("g", F("g", "Quantity"))),
			As("notes", Max("g", F("g", "Note"))),
		)).
		Having("k", "g", Gt(Count("g"), Const(0))).
		OrderByDesc("r", F("r", "qty"))

	recs, err := env.Records(q)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, column(t, recs, "user"))
	assert.Equal(t, []any{int64(3), int64(1), int64(1)}, column(t, recs, "orders"))
	assert.Equal(t, []any{int64(6), int64(2), int64(1)}, column(t, recs, "qty"))
	assert.Equal(t, []any{float64(2), float64(2), float64(1)}, column(t, recs, "avg"))
	assert.Equal(t, []any{"gift", nil, "fragile"}, column(t, recs, "notes"))

	q = From(shop.Orders).
		GroupBy("o", Project(As("user", F("o", "UserId"))), "k", "g",
			Project(As("user", F("k", "user")), As("n", Count("g")))).
		Having("k", "g", Gt(Count("g"), Const(1)))
	recs, err = env.Records(q)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1)}, column(t, recs, "user"))
}

func TestEvalImplicitAggregation(t *testing.T) {
	env, shop := newShopEnv(t)

	recs, err := env.Records(From(shop.Products).Select("p", Project(
		As("n", Count("p")),
		As("total", Sum("p", F("p", "Price"))),
	)))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(3), recs[0].Lookup("n"))
	assert.True(t, decimal.RequireFromString("43.75").Equal(recs[0].Lookup("total").(decimal.Decimal)))

	recs, err = env.Records(From(shop.Products).Where("p", Const(false)).Select("p", Project(
		As("n", Count("p")),
		As("total", Sum("p", F("p", "Price"))),
	)))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(0), recs[0].Lookup("n"))
	assert.Nil(t, recs[0].Lookup("total"), "SUM of no rows is NULL")

	_, err = env.Records(From(shop.Products).Select("p", Project(
		As("n", Count("p")),
		As("name", F("p", "Name")),
	)))
	assert.ErrorContains(t, err, "only readable through aggregates")
}

func TestEvalOrderingAndWindow(t *testing.T) {
	env, shop := newShopEnv(t)
	sorted := From(shop.Users).
		OrderByDesc("u", F("u", "Active")).
		ThenBy("u", F("u", "Age"))

	recs, err := env.Records(sorted)
	require.NoError(t, err)
	assert.Equal(t, []any{"dee", "ada", "cy", "bob"}, column(t, recs, "Name"))

	recs, err = env.Records(sorted.Limit(2).Offset(1))
	require.NoError(t, err)
	assert.Equal(t, []any{"ada", "cy"}, column(t, recs, "Name"), "window applies once: skip 1, take 2")

	recs, err = env.Records(sorted.Offset(3).Offset(1).Limit(1))
	require.NoError(t, err)
	assert.Equal(t, []any{"ada"}, column(t, recs, "Name"), "later Offset overwrites")

	recs, err = env.Records(sorted.Limit(3).Select("u", Project(As("n", Count("u")))))
	require.NoError(t, err)
	assert.Equal(t, int64(3), recs[0].Lookup("n"), "aggregate sees the windowed rows")

	_, err = env.Records(sorted.Limit(1).Where("u", Const(true)))
	require.Error(t, err)
	assert.True(t, sqlir.IsUnsupported(err))
}

func TestEvalSubqueries(t *testing.T) {
	env, shop := newShopEnv(t)
	ordersOf := func(user string) *Query {
		return From(shop.Orders).Where("o", Eq(F("o", "UserId"), F(user, "Id")))
	}

	recs, err := env.Records(From(shop.Users).Where("u", Not(Exists(ordersOf("u")))))
	require.NoError(t, err)
	assert.Equal(t, []any{"dee"}, column(t, recs, "Name"))

	recs, err = env.Records(From(shop.Users).Select("u", Project(
		As("name", F("u", "Name")),
		As("qty", Scalar(ordersOf("u").Select("o", Project(As("q", Sum("o", F("o", "Quantity"))))))),
	)))
	require.NoError(t, err)
	assert.Equal(t, []any{int64(6), int64(2), int64(1), nil}, column(t, recs, "qty"))

	recs, err = env.Records(From(shop.Products).Where("p",
		InQuery(F("p", "Id"), From(shop.Orders).Select("o", Project(As("id", F("o", "ProductId")))))))
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestEvalFunctions(t *testing.T) {
	env, shop := newShopEnv(t)
	recs, err := env.Records(From(shop.Orders).
		Where("o", Eq(Month(F("o", "Created")), Const(2))).
		Select("o", Project(
			As("day", Day(F("o", "Created"))),
			As("label", Concat(Const("#"), Coalesce(F("o", "Note"), Const("-")))),
			As("half", Div(F("o", "Quantity"), Const(2))),
		)))
	require.NoError(t, err)
	assert.Equal(t, []any{int64(10), int64(11)}, column(t, recs, "day"))
	assert.Equal(t, []any{"#-", "#-"}, column(t, recs, "label"))
	assert.Equal(t, []any{int64(0), int64(1)}, column(t, recs, "half"))

	recs, err = env.Records(From(shop.Orders).Where("o", Ge(F("o", "Created"), Const("2024-03-01"))))
	require.NoError(t, err)
	assert.Len(t, recs, 2, "string constant compared as datetime")
}

func TestEvalUnsupported(t *testing.T) {
	env, shop := newShopEnv(t)
	tests := []struct {
		name string
		q    *Query
	}{
		{"raw sql", From(shop.Users).Where("u", Raw("1 = 1", schema.Of(schema.Bool)))},
		{"unknown function", From(shop.Users).Select("u", Project(As("x", Call("Soundex", F("u", "Name")))))},
		{"having without group", From(shop.Users).Having("k", "g", Const(true))},
		{"then by without order", From(shop.Users).ThenBy("u", F("u", "Age"))},
		{"negative offset", From(shop.Users).Offset(-1)},
		{"negative limit", From(shop.Users).OrderBy("u", F("u", "Id")).Limit(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Records(tt.q)
			require.Error(t, err)
			assert.True(t, sqlir.IsUnsupported(err), err.Error())
		})
	}
}

func TestEvalVariablesAndIdentity(t *testing.T) {
	env, _ := newShopEnv(t)
	v := NewVariable("total", schema.Of(schema.Int64))
	got, err := env.Eval(Var(v))
	require.NoError(t, err)
	assert.Nil(t, got)

	env.SetVar(v, int64(4))
	env.SetIdentity(int64(9))
	got, err = env.Eval(Add(Var(v), LastInsertIdentity(schema.Int64)))
	require.NoError(t, err)
	assert.Equal(t, int64(13), got)
}
