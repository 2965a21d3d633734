package runner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typedsql/internal/memory"
	"github.com/roach88/typedsql/internal/query"
	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/sqlfmt"
	"github.com/roach88/typedsql/internal/stmt"
	"github.com/roach88/typedsql/internal/testutil"
	"github.com/roach88/typedsql/internal/value"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// seedList creates the shop tables and inserts the fixture rows.
func seedList(shop *testutil.Shop) *stmt.List {
	l := stmt.New()
	for _, t := range shop.Tables() {
		l.CreateTable(t)
	}
	rows := map[string][]*value.Record{
		"Users":    testutil.UserRows(),
		"Products": testutil.ProductRows(),
		"Orders":   testutil.OrderRows(),
	}
	for _, t := range shop.Tables() {
		for _, r := range rows[t.Name] {
			ins := l.Insert(t)
			names, values := r.Flatten()
			for i, n := range names {
				if values[i] != nil {
					ins.Value(n, query.Const(values[i]))
				}
			}
		}
	}
	return l
}

func newMemoryShop(t *testing.T) (*MemoryExecutor, *testutil.Shop) {
	t.Helper()
	shop := testutil.NewShop()
	e := NewMemoryExecutor(memory.NewStore())
	_, err := e.Run(context.Background(), seedList(shop))
	require.NoError(t, err)
	return e, shop
}

func userCount(t *testing.T, e Executor, shop *testutil.Shop) int64 {
	t.Helper()
	l := stmt.New()
	l.Select(query.From(shop.Users).Select("u", query.Project(query.As("n", query.Count("u")))))
	res, err := e.Run(context.Background(), l)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	n, err := Field[int64](res.Rows[0], "n")
	require.NoError(t, err)
	return n
}

func TestMemoryRun(t *testing.T) {
	e, shop := newMemoryShop(t)
	assert.Equal(t, int64(4), userCount(t, e, shop))

	l := stmt.New()
	l.Delete(shop.Users, query.From(shop.Users).Where("u", query.Eq(query.F("u", "Email"), query.Null())))
	res, err := e.Run(context.Background(), l)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Affected)
	assert.Nil(t, res.Rows)
}

func TestMemoryRunTxRestores(t *testing.T) {
	e, shop := newMemoryShop(t)
	ghost := schema.NewTable("shop.Ghost", "Ghost").
		Column("Id", schema.Int32, schema.PrimaryKey()).
		MustBuild()

	failing := func() *stmt.List {
		l := stmt.New()
		l.Insert(shop.Users).
			Value("Name", query.Const("eve")).
			Value("Age", query.Const(30)).
			Value("Active", query.Const(true))
		l.Insert(ghost).Value("Id", query.Const(1))
		return l
	}

	_, err := e.RunTx(context.Background(), failing())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement 1")
	assert.Equal(t, int64(4), userCount(t, e, shop))

	_, err = e.Run(context.Background(), failing())
	require.Error(t, err)
	assert.Equal(t, int64(5), userCount(t, e, shop), "Run keeps statements before the failure")
}

func TestMemoryRunHonorsContext(t *testing.T) {
	e, shop := newMemoryShop(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Run(ctx, seedList(shop))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollect(t *testing.T) {
	e, shop := newMemoryShop(t)
	l := stmt.New()
	l.Select(query.From(shop.Users).
		OrderBy("u", query.F("u", "Id")).
		Select("u", query.Project(query.As("name", query.F("u", "Name")), query.As("email", query.F("u", "Email")))))
	res, err := e.Run(context.Background(), l)
	require.NoError(t, err)

	type user struct{ Name, Email string }
	users, err := Collect(res.Rows, func(r *value.Record) (user, error) {
		name, err := Field[string](r, "name")
		if err != nil {
			return user{}, err
		}
		email, err := Field[string](r, "email")
		return user{Name: name, Email: email}, err
	})
	require.NoError(t, err)
	assert.Equal(t, []user{
		{"ada", "ada@example.com"},
		{"bob", ""},
		{"cy", "cy@example.com"},
		{"dee", ""},
	}, users)

	_, err = Collect(res.Rows, func(r *value.Record) (int64, error) { return Field[int64](r, "name") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record 0")
}

// fakeConn records commands and fails on one SQL text.
type fakeConn struct {
	commands []string
	args     [][]any
	failOn   string
	affected int64
	rows     *fakeRows
}

func (c *fakeConn) ExecuteNonQuery(_ context.Context, q string, args ...any) (int64, error) {
	c.commands = append(c.commands, q)
	c.args = append(c.args, args)
	if q == c.failOn {
		return 0, errors.New("boom")
	}
	return c.affected, nil
}

func (c *fakeConn) ExecuteQuery(_ context.Context, q string, args ...any) (Rows, error) {
	c.commands = append(c.commands, q)
	c.args = append(c.args, args)
	if q == c.failOn {
		return nil, errors.New("boom")
	}
	return c.rows, nil
}

func (c *fakeConn) Begin(context.Context) (Tx, error) {
	return nil, fmt.Errorf("transactions not supported")
}

type fakeRows struct {
	cols []string
	data [][]any
	i    int
}

func (r *fakeRows) Columns() ([]string, error) { return r.cols, nil }
func (r *fakeRows) Next() bool                 { r.i++; return r.i <= len(r.data) }
func (r *fakeRows) Err() error                 { return nil }
func (r *fakeRows) Close() error               { return nil }

func (r *fakeRows) Scan(dest ...any) error {
	for i, d := range dest {
		*(d.(*any)) = r.data[r.i-1][i]
	}
	return nil
}

func TestSQLExecutorWrapsDriverErrors(t *testing.T) {
	shop := testutil.NewShop()
	l := stmt.New()
	l.Delete(shop.Users, query.From(shop.Users).Where("u", query.Gt(query.F("u", "Age"), query.Const(40))))

	want := "DELETE FROM \"Users\" AS a0 WHERE a0.\"Age\" > ?"
	conn := &fakeConn{failOn: want}
	e := NewSQLExecutor(conn, sqlfmt.SQLite(), WithLogger(discard))
	_, err := e.Run(context.Background(), l)
	require.Error(t, err)

	var ee *ExecError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, want, ee.SQL)
	assert.Equal(t, sqlfmt.SQLiteName, ee.Dialect)
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), want)
	assert.True(t, IsExecError(err))
	assert.Equal(t, []any{int64(40)}, conn.args[0])
}

func TestSQLExecutorCountsAndReads(t *testing.T) {
	shop := testutil.NewShop()
	l := stmt.New()
	l.Update(shop.Users, query.From(shop.Users), "u").Set("Active", query.Const(true))
	l.Select(query.From(shop.Users).Select("u", query.Project(
		query.As("name", query.F("u", "Name")),
		query.As("adult", query.Ge(query.F("u", "Age"), query.Const(18))),
	)))

	conn := &fakeConn{affected: 4, rows: &fakeRows{
		cols: []string{"name", "adult"},
		data: [][]any{{"ada", int64(1)}, {[]byte("bob"), nil}},
	}}
	e := NewSQLExecutor(conn, sqlfmt.MySQL(), WithLogger(discard))
	res, err := e.Run(context.Background(), l)
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Affected)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, value.RecordOf("name", "ada", "adult", true), res.Rows[0])
	assert.Equal(t, value.RecordOf("name", "bob", "adult", nil), res.Rows[1])
}

func TestSQLExecutorNamedParams(t *testing.T) {
	shop := testutil.NewShop()
	l := stmt.New()
	l.Delete(shop.Users, query.From(shop.Users).Where("u", query.Gt(query.F("u", "Age"), query.Const(40))))

	conn := &fakeConn{}
	e := NewSQLExecutor(conn, sqlfmt.SQLServer(), WithLogger(discard))
	_, err := e.Run(context.Background(), l)
	require.NoError(t, err)
	require.Len(t, conn.args, 1)
	assert.Equal(t, []any{sql.Named("p0", int64(40))}, conn.args[0])
}

func TestSQLExecutorRunTxNeedsBegin(t *testing.T) {
	shop := testutil.NewShop()
	e := NewSQLExecutor(&fakeConn{}, sqlfmt.MySQL(), WithLogger(discard))
	_, err := e.RunTx(context.Background(), seedList(shop))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin")
}
