package migrate

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typedsql/internal/memory"
	"github.com/roach88/typedsql/internal/query"
	"github.com/roach88/typedsql/internal/runner"
	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/sqlfmt"
	"github.com/roach88/typedsql/internal/sqlir"
	"github.com/roach88/typedsql/internal/stmt"
	"github.com/roach88/typedsql/internal/testutil"
)

var (
	discard = slog.New(slog.NewTextHandler(io.Discard, nil))
	runIDs  = testutil.NewSequenceRunIDs("test-run")
)

func users() *schema.Table {
	return schema.NewTable("app.Users", "Users").
		Column("Id", schema.Int32, schema.PrimaryKey(), schema.AutoIncrement()).
		Column("Name", schema.String, schema.Length(100)).
		MustBuild()
}

func orders() *schema.Table {
	return schema.NewTable("app.Orders", "Orders").
		Column("Id", schema.Int32, schema.PrimaryKey(), schema.AutoIncrement()).
		Column("UserId", schema.Int32).
		Column("Quantity", schema.Int32).
		ForeignKey("FK_Orders_Users", []string{"UserId"}, "app.Users", []string{"Id"}).
		Index("IX_Orders_UserId", false, "UserId").
		MustBuild()
}

func shopMigrations(t *testing.T) []Migration {
	t.Helper()
	ms, err := FromSnapshots(
		[]string{"001_users", "002_orders"},
		[][]*schema.Table{{users()}, {users(), orders()}},
	)
	require.NoError(t, err)
	return ms
}

func memoryExecutor(t *testing.T) runner.Executor {
	return runner.NewMemoryExecutor(memory.NewStore())
}

func sqliteExecutor(t *testing.T) runner.Executor {
	t.Helper()
	db, err := runner.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return runner.NewSQLExecutor(db, sqlfmt.SQLite(sqlfmt.IgnoreForeignKeys()), runner.WithLogger(discard))
}

var backends = []struct {
	name string
	new  func(*testing.T) runner.Executor
}{
	{"memory", memoryExecutor},
	{"sqlite", sqliteExecutor},
}

func newMigrator(t *testing.T, e runner.Executor, ms []Migration) *Migrator {
	t.Helper()
	m, err := New(e, ms, WithLogger(discard), WithRunID(runIDs.Generate()))
	require.NoError(t, err)
	return m
}

func names(recs []Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Name
	}
	return out
}

func TestFromSnapshots(t *testing.T) {
	ms := shopMigrations(t)
	require.Len(t, ms, 2)

	require.Len(t, ms[0].Up, 1)
	assert.IsType(t, &sqlir.CreateTable{}, ms[0].Up[0])
	assert.Equal(t, []sqlir.Statement{&sqlir.DropTable{TableName: "Users"}}, ms[0].Down)

	assert.IsType(t, &sqlir.AddForeignKey{}, ms[1].Up[len(ms[1].Up)-1])
	assert.IsType(t, &sqlir.DropForeignKey{}, ms[1].Down[0])

	_, err := FromSnapshots([]string{"001"}, nil)
	require.Error(t, err)

	_, err = FromSnapshots([]string{"001"}, [][]*schema.Table{{users(), users()}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `migration "001"`)
}

func TestVersion(t *testing.T) {
	ms := shopMigrations(t)
	v1, err := ms[0].Version()
	require.NoError(t, err)
	assert.Len(t, v1, 64)
	v2, err := ms[1].Version()
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)

	v, err := Migration{Name: "manual"}.Version()
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestNewOrdersAndRejectsDuplicates(t *testing.T) {
	ms := shopMigrations(t)
	m := newMigrator(t, memoryExecutor(t), []Migration{ms[1], ms[0]})
	assert.Equal(t, "001_users", m.Migrations()[0].Name)
	assert.Regexp(t, `^test-run-\d+$`, m.RunID())

	_, err := New(memoryExecutor(t), []Migration{ms[0], ms[0]})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	_, err = New(memoryExecutor(t), []Migration{{}})
	require.Error(t, err)
}

func TestNewGeneratesRunID(t *testing.T) {
	a, err := New(memoryExecutor(t), nil, WithLogger(discard))
	require.NoError(t, err)
	b, err := New(memoryExecutor(t), nil, WithLogger(discard))
	require.NoError(t, err)
	assert.NotEqual(t, a.RunID(), b.RunID())
}

func TestMigrateUpAndDown(t *testing.T) {
	for _, be := range backends {
		t.Run(be.name, func(t *testing.T) {
			ctx := context.Background()
			e := be.new(t)
			m := newMigrator(t, e, shopMigrations(t))

			applied, err := m.Applied(ctx)
			require.NoError(t, err)
			assert.Empty(t, applied, "missing history reads as empty")

			done, err := m.MigrateToLatest(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"001_users", "002_orders"}, done)

			applied, err = m.Applied(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"001_users", "002_orders"}, names(applied))

			done, err = m.MigrateToLatest(ctx)
			require.NoError(t, err)
			assert.Empty(t, done)

			l := stmt.New()
			l.Insert(users()).Value("Name", query.Const("ada"))
			l.Insert(orders()).
				Value("UserId", query.LastInsertIdentity(schema.Int32)).
				Value("Quantity", query.Const(2))
			res, err := e.Run(ctx, l)
			require.NoError(t, err)
			assert.Equal(t, int64(2), res.Affected)

			name, err := m.MigrateDown(ctx)
			require.NoError(t, err)
			assert.Equal(t, "002_orders", name)

			status, err := m.Status(ctx)
			require.NoError(t, err)
			require.Len(t, status, 2)
			assert.True(t, status[0].Applied)
			assert.False(t, status[0].Modified)
			assert.False(t, status[1].Applied)

			l = stmt.New()
			l.Select(query.From(orders()))
			_, err = e.Run(ctx, l)
			require.Error(t, err, "orders table is dropped")

			_, err = m.MigrateDown(ctx)
			assert.True(t, IsConsistencyError(err), "001_users is not the latest registered migration")

			m = newMigrator(t, e, shopMigrations(t)[:1])
			name, err = m.MigrateDown(ctx)
			require.NoError(t, err)
			assert.Equal(t, "001_users", name)

			name, err = m.MigrateDown(ctx)
			require.NoError(t, err)
			assert.Empty(t, name)
		})
	}
}

func TestMigrateDownRequiresLatest(t *testing.T) {
	for _, be := range backends {
		t.Run(be.name, func(t *testing.T) {
			ctx := context.Background()
			e := be.new(t)
			ms := shopMigrations(t)

			_, err := newMigrator(t, e, ms).MigrateToLatest(ctx)
			require.NoError(t, err)

			m := newMigrator(t, e, append(ms, Migration{Name: "003_audit"}))
			name, err := m.MigrateDown(ctx)
			require.Error(t, err)
			assert.Empty(t, name)
			assert.True(t, IsConsistencyError(err))
			assert.EqualError(t, err, `have applied "002_orders", expected "003_audit"`)

			applied, err := m.Applied(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"001_users", "002_orders"}, names(applied))
		})
	}
}

func TestMigrateDetectsSkippedMigration(t *testing.T) {
	for _, be := range backends {
		t.Run(be.name, func(t *testing.T) {
			ctx := context.Background()
			e := be.new(t)
			m1 := Migration{Name: "001", Up: []sqlir.Statement{&sqlir.CreateTable{Table: users()}}}
			m2 := Migration{Name: "002"}
			m3 := Migration{Name: "003", Up: []sqlir.Statement{&sqlir.CreateTable{Table: orders()}}}

			_, err := newMigrator(t, e, []Migration{m1, m3}).MigrateToLatest(ctx)
			require.NoError(t, err)

			m := newMigrator(t, e, []Migration{m1, m2, m3})
			_, err = m.MigrateToLatest(ctx)
			require.Error(t, err)
			assert.True(t, IsConsistencyError(err))
			assert.EqualError(t, err, `have applied "003", expected "002"`)

			var ce *ConsistencyError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, 1, ce.Index)

			applied, err := m.Applied(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"001", "003"}, names(applied))

			_, err = m.MigrateDown(ctx)
			assert.True(t, IsConsistencyError(err))
			_, err = m.Status(ctx)
			assert.True(t, IsConsistencyError(err))
		})
	}
}

func TestMigrateDetectsUnknownApplied(t *testing.T) {
	ctx := context.Background()
	e := memoryExecutor(t)
	ms := shopMigrations(t)
	_, err := newMigrator(t, e, ms).MigrateToLatest(ctx)
	require.NoError(t, err)

	_, err = newMigrator(t, e, ms[:1]).MigrateToLatest(ctx)
	require.Error(t, err)
	var ce *ConsistencyError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ConsistencyError{Index: 1, Applied: "002_orders"}, *ce)
	assert.Contains(t, err.Error(), "expected no migration")
}

func TestMigrateStopsAtFailure(t *testing.T) {
	for _, be := range backends {
		t.Run(be.name, func(t *testing.T) {
			ctx := context.Background()
			e := be.new(t)
			ms := append(shopMigrations(t),
				Migration{Name: "003_broken", Up: []sqlir.Statement{
					&sqlir.AddColumn{TableName: "Users", Column: &schema.Column{
						MemberName: "Age", SqlName: "Age", Type: schema.NullableOf(schema.Int32),
					}},
					&sqlir.DropTable{TableName: "Missing"},
				}},
				Migration{Name: "004_never"},
			)
			m := newMigrator(t, e, ms)

			done, err := m.MigrateToLatest(ctx)
			require.Error(t, err)
			assert.Contains(t, err.Error(), `migration "003_broken" up`)
			assert.Equal(t, []string{"001_users", "002_orders"}, done)

			applied, err := m.Applied(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"001_users", "002_orders"}, names(applied))
		})
	}
}

func TestStatusReportsModifiedSnapshot(t *testing.T) {
	ctx := context.Background()
	e := memoryExecutor(t)
	_, err := newMigrator(t, e, shopMigrations(t)).MigrateToLatest(ctx)
	require.NoError(t, err)

	wider := schema.NewTable("app.Users", "Users").
		Column("Id", schema.Int32, schema.PrimaryKey(), schema.AutoIncrement()).
		Column("Name", schema.String, schema.Length(200)).
		MustBuild()
	ms, err := FromSnapshots(
		[]string{"001_users", "002_orders", "003_later"},
		[][]*schema.Table{{wider}, {wider, orders()}, {wider, orders()}},
	)
	require.NoError(t, err)

	status, err := newMigrator(t, e, ms).Status(ctx)
	require.NoError(t, err)
	require.Len(t, status, 3)
	assert.True(t, status[0].Modified)
	assert.True(t, status[1].Modified)
	assert.False(t, status[2].Applied)
	assert.False(t, status[2].Modified)
}

func TestAppliedHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := newMigrator(t, memoryExecutor(t), shopMigrations(t))
	_, err := m.Applied(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
