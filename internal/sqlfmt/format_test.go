package sqlfmt

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typedsql/internal/query"
	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/sqlir"
	"github.com/roach88/typedsql/internal/stmt"
	"github.com/roach88/typedsql/internal/testutil"
)

func formatters(opts ...Option) map[string]*Formatter {
	return map[string]*Formatter{
		MySQLName:     MySQL(opts...),
		PostgresName:  Postgres(opts...),
		SQLServerName: SQLServer(opts...),
		SQLiteName:    SQLite(opts...),
	}
}

func formatList(t *testing.T, f *Formatter, l *stmt.List) *Batch {
	t.Helper()
	stmts, err := l.Parse(query.NewParser())
	require.NoError(t, err)
	b, err := f.Format(stmts)
	require.NoError(t, err)
	return b
}

func sqlOf(b *Batch) []string {
	out := make([]string, len(b.Commands))
	for i, c := range b.Commands {
		out[i] = c.SQL
	}
	return out
}

func TestNew(t *testing.T) {
	for name, want := range map[string]string{
		"mysql":      MySQLName,
		"PostgreSQL": PostgresName,
		"mssql":      SQLServerName,
		"sqlite3":    SQLiteName,
	} {
		f, err := New(name)
		require.NoError(t, err)
		assert.Equal(t, want, f.Name())
	}
	_, err := New("oracle")
	assert.ErrorContains(t, err, `unknown dialect "oracle"`)
}

func TestFormatQuery(t *testing.T) {
	shop := testutil.NewShop()
	q, err := query.NewParser().Parse(query.From(shop.Users).
		Where("u", query.Gt(query.F("u", "Age"), query.Const(18))).
		OrderBy("u", query.F("u", "Name")).
		Select("u", query.Project(query.As("Id", query.F("u", "Id")), query.As("mail", query.F("u", "Email")))))
	require.NoError(t, err)

	want := map[string]string{
		MySQLName:     "SELECT a0.`Id` AS `Id`, a0.`email_address` AS `mail` FROM `Users` AS a0 WHERE a0.`Age` > ? ORDER BY a0.`Name`",
		PostgresName:  `SELECT a0."Id" AS "Id", a0."email_address" AS "mail" FROM "Users" AS a0 WHERE a0."Age" > $1 ORDER BY a0."Name"`,
		SQLServerName: "SELECT a0.[Id] AS [Id], a0.[email_address] AS [mail] FROM [Users] AS a0 WHERE a0.[Age] > @p0 ORDER BY a0.[Name]",
		SQLiteName:    `SELECT a0."Id" AS "Id", a0."email_address" AS "mail" FROM "Users" AS a0 WHERE a0."Age" > ? ORDER BY a0."Name"`,
	}
	for name, f := range formatters() {
		t.Run(name, func(t *testing.T) {
			b, err := f.FormatQuery(q)
			require.NoError(t, err)
			require.Len(t, b.Commands, 1)
			c := b.Commands[0]
			assert.Equal(t, want[name], c.SQL)
			assert.Equal(t, []string{"p0"}, c.Params)
			assert.True(t, c.Query)
			assert.False(t, c.Counted)
			assert.Equal(t, name == SQLServerName, b.Named)
		})
	}
}

func TestMarkersRepeatOrReuse(t *testing.T) {
	shop := testutil.NewShop()
	age := &sqlir.TableField{Alias: "a0", Column: shop.Users.Column("Age")}
	p := &sqlir.Param{Name: "p0", T: schema.Of(schema.Int32)}
	q := &sqlir.Query{
		From:      shop.Users,
		FromAlias: "a0",
		Result:    &sqlir.SubQueryResult{Members: []sqlir.Member{&sqlir.ExprMember{Name: "n", Value: age}}},
		Wheres: []sqlir.Expr{
			&sqlir.Binary{Op: sqlir.OpGe, Left: age, Right: p},
			&sqlir.Binary{Op: sqlir.OpLe, Left: age, Right: p},
		},
	}

	b, err := MySQL().FormatQuery(q)
	require.NoError(t, err)
	assert.Equal(t, "SELECT a0.`Age` AS `n` FROM `Users` AS a0 WHERE a0.`Age` >= ? AND a0.`Age` <= ?", b.Commands[0].SQL)
	assert.Equal(t, []string{"p0", "p0"}, b.Commands[0].Params)

	b, err = Postgres().FormatQuery(q)
	require.NoError(t, err)
	assert.Equal(t, `SELECT a0."Age" AS "n" FROM "Users" AS a0 WHERE a0."Age" >= $1 AND a0."Age" <= $1`, b.Commands[0].SQL)
	assert.Equal(t, []string{"p0"}, b.Commands[0].Params)
}

func TestPagination(t *testing.T) {
	shop := testutil.NewShop()
	parse := func(q *query.Query) *sqlir.Query {
		pq, err := query.NewParser().Parse(q.Select("u", query.Project(query.As("Name", query.F("u", "Name")))))
		require.NoError(t, err)
		return pq
	}
	ordered := query.From(shop.Users).OrderBy("u", query.F("u", "Name"))

	tests := []struct {
		name    string
		q       *sqlir.Query
		dialect *Formatter
		suffix  string
	}{
		{"mysql both", parse(ordered.Offset(5).Limit(10)), MySQL(), " ORDER BY a0.`Name` LIMIT 10 OFFSET 5"},
		{"mysql offset", parse(ordered.Offset(5)), MySQL(), " ORDER BY a0.`Name` LIMIT 18446744073709551615 OFFSET 5"},
		{"postgres offset", parse(ordered.Offset(5)), Postgres(), ` ORDER BY a0."Name" OFFSET 5`},
		{"sqlite offset", parse(ordered.Offset(5)), SQLite(), ` ORDER BY a0."Name" LIMIT -1 OFFSET 5`},
		{"sqlite limit", parse(ordered.Limit(3)), SQLite(), ` ORDER BY a0."Name" LIMIT 3`},
		{"sqlserver both", parse(ordered.Offset(5).Limit(10)), SQLServer(), " ORDER BY a0.[Name] OFFSET 5 ROWS FETCH NEXT 10 ROWS ONLY"},
		{"sqlserver unordered", parse(query.From(shop.Users).Limit(3)), SQLServer(), " ORDER BY (SELECT NULL) OFFSET 0 ROWS FETCH NEXT 3 ROWS ONLY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := tt.dialect.FormatQuery(tt.q)
			require.NoError(t, err)
			assert.Regexp(t, `^SELECT `, b.Commands[0].SQL)
			assert.Equal(t, tt.suffix, b.Commands[0].SQL[len(b.Commands[0].SQL)-len(tt.suffix):])
		})
	}
}

func TestSessionVariables(t *testing.T) {
	l := stmt.New()
	n := l.Declare("n", schema.NullableOf(schema.Int64))
	l.Set(n, query.Const(int64(5)))
	l.Select(query.Values(query.Project(query.As("n", query.Var(n)))))

	b := formatList(t, MySQL(), l)
	assert.Equal(t, []string{
		"SET @n = NULL",
		"SET @n = ?",
		"SELECT @n AS `n`",
	}, sqlOf(b))

	b = formatList(t, Postgres(), l)
	assert.Equal(t, []string{
		`DROP TABLE IF EXISTS "_typedsql_variables"`,
		`CREATE TEMPORARY TABLE "_typedsql_variables" ("__identity" BIGINT NULL, "n" BIGINT NULL)`,
		`INSERT INTO "_typedsql_variables" ("__identity") VALUES (NULL)`,
		`UPDATE "_typedsql_variables" SET "n" = $1`,
		`SELECT (SELECT "n" FROM "_typedsql_variables") AS "n"`,
	}, sqlOf(b))
	assert.True(t, b.Commands[4].Query)

	b = formatList(t, SQLServer(), l)
	require.Len(t, b.Commands, 1)
	c := b.Commands[0]
	assert.Equal(t, "BEGIN TRANSACTION;\nDECLARE @n BIGINT;\nSET @n = @p0;\nSELECT @n AS [n];\nCOMMIT TRANSACTION", c.SQL)
	assert.Equal(t, []string{"p0"}, c.Params)
	assert.True(t, c.Query)
}

func TestInsertCapturesIdentity(t *testing.T) {
	shop := testutil.NewShop()
	l := stmt.New()
	l.Insert(shop.Users).
		Value("Name", query.Const("eve")).
		Value("Age", query.Const(30)).
		Value("Active", query.Const(true))
	l.Select(query.Values(query.Project(query.As("id", query.LastInsertIdentity(schema.Int32)))))

	b := formatList(t, MySQL(), l)
	assert.Equal(t, []string{
		"INSERT INTO `Users` (`Name`, `Age`, `Active`) VALUES (?, ?, TRUE)",
		"SELECT LAST_INSERT_ID() AS `id`",
	}, sqlOf(b))
	assert.True(t, b.Commands[0].Counted)
	assert.Equal(t, []string{"p0", "p1"}, b.Commands[0].Params)

	b = formatList(t, Postgres(), l)
	assert.Equal(t, []string{
		`DROP TABLE IF EXISTS "_typedsql_variables"`,
		`CREATE TEMPORARY TABLE "_typedsql_variables" ("__identity" BIGINT NULL)`,
		`INSERT INTO "_typedsql_variables" ("__identity") VALUES (NULL)`,
		`WITH "__inserted" AS (INSERT INTO "Users" ("Name", "Age", "Active") VALUES ($1, $2, TRUE) RETURNING "Id") ` +
			`UPDATE "_typedsql_variables" SET "__identity" = (SELECT "Id" FROM "__inserted")`,
		`SELECT CAST((SELECT "__identity" FROM "_typedsql_variables") AS INTEGER) AS "id"`,
	}, sqlOf(b))
	assert.True(t, b.Commands[3].Counted)

	b = formatList(t, SQLite(), l)
	assert.Equal(t, []string{
		`DROP TABLE IF EXISTS "_typedsql_variables"`,
		`CREATE TEMPORARY TABLE "_typedsql_variables" ("__identity" INTEGER NULL)`,
		`INSERT INTO "_typedsql_variables" ("__identity") VALUES (NULL)`,
		`INSERT INTO "Users" ("Name", "Age", "Active") VALUES (?, ?, 1)`,
		`UPDATE "_typedsql_variables" SET "__identity" = last_insert_rowid()`,
		`SELECT (SELECT "__identity" FROM "_typedsql_variables") AS "id"`,
	}, sqlOf(b))
	assert.True(t, b.Commands[3].Counted)
	assert.False(t, b.Commands[4].Counted)
}

func TestUpdateThroughJoin(t *testing.T) {
	shop := testutil.NewShop()
	q := query.From(shop.Users).
		Join(query.From(shop.Orders), "u", "o", query.Eq(query.F("u", "Id"), query.F("o", "UserId")), nil).
		Where("x", query.Ge(query.F("x", "o", "Quantity"), query.Const(2)))
	l := stmt.New()
	l.Update(shop.Users, q, "x").Set("Age", query.Add(query.F("x", "u", "Age"), query.Const(1)))

	want := map[string]string{
		MySQLName:     "UPDATE `Users` AS a0 INNER JOIN `Orders` AS a1 ON a0.`Id` = a1.`UserId` SET a0.`Age` = a0.`Age` + ? WHERE a1.`Quantity` >= ?",
		PostgresName:  `UPDATE "Users" AS a0 SET "Age" = a0."Age" + $1 FROM "Orders" AS a1 WHERE a0."Id" = a1."UserId" AND a1."Quantity" >= $2`,
		SQLServerName: "UPDATE a0 SET [Age] = a0.[Age] + @p1 FROM [Users] AS a0 INNER JOIN [Orders] AS a1 ON a0.[Id] = a1.[UserId] WHERE a1.[Quantity] >= @p0",
		SQLiteName:    `UPDATE "Users" AS a0 SET "Age" = a0."Age" + ? FROM "Orders" AS a1 WHERE a0."Id" = a1."UserId" AND a1."Quantity" >= ?`,
	}
	for name, f := range formatters() {
		t.Run(name, func(t *testing.T) {
			b := formatList(t, f, l)
			require.Len(t, b.Commands, 1)
			assert.Equal(t, want[name], b.Commands[0].SQL)
			assert.True(t, b.Commands[0].Counted)
			if name != SQLServerName {
				assert.Equal(t, []string{"p1", "p0"}, b.Commands[0].Params)
			}
		})
	}
}

func TestLeftJoinUpdateUnsupported(t *testing.T) {
	shop := testutil.NewShop()
	q := query.From(shop.Users).
		LeftJoin(query.From(shop.Orders), "u", "o", query.Eq(query.F("u", "Id"), query.F("o", "UserId")), nil).
		Where("x", query.Eq(query.F("x", "o", "Id"), query.Null()))
	l := stmt.New()
	l.Update(shop.Users, q, "x").Set("Active", query.Const(false))
	stmts, err := l.Parse(query.NewParser())
	require.NoError(t, err)

	_, err = Postgres().Format(stmts)
	require.Error(t, err)
	assert.True(t, sqlir.IsUnsupported(err))
	assert.Contains(t, err.Error(), "only inner joins supported")

	b, err := MySQL().Format(stmts)
	require.NoError(t, err)
	assert.Contains(t, b.Commands[0].SQL, "LEFT JOIN `Orders` AS a1")
	assert.Contains(t, b.Commands[0].SQL, "WHERE a1.`Id` IS NULL")
}

func TestDelete(t *testing.T) {
	shop := testutil.NewShop()
	q := query.From(shop.Users).
		Join(query.From(shop.Orders), "u", "o", query.Eq(query.F("u", "Id"), query.F("o", "UserId")), nil).
		Where("x", query.Gt(query.F("x", "o", "Quantity"), query.Const(3)))
	l := stmt.New()
	l.Delete(shop.Users, q)

	want := map[string]string{
		MySQLName:     "DELETE a0 FROM `Users` AS a0 INNER JOIN `Orders` AS a1 ON a0.`Id` = a1.`UserId` WHERE a1.`Quantity` > ?",
		PostgresName:  `DELETE FROM "Users" AS a0 USING "Orders" AS a1 WHERE a0."Id" = a1."UserId" AND a1."Quantity" > $1`,
		SQLServerName: "DELETE a0 FROM [Users] AS a0 INNER JOIN [Orders] AS a1 ON a0.[Id] = a1.[UserId] WHERE a1.[Quantity] > @p0",
		SQLiteName: `DELETE FROM "Users" WHERE rowid IN (SELECT a0.rowid FROM "Users" AS a0 ` +
			`INNER JOIN "Orders" AS a1 ON a0."Id" = a1."UserId" WHERE a1."Quantity" > ?)`,
	}
	for name, f := range formatters() {
		t.Run(name, func(t *testing.T) {
			b := formatList(t, f, l)
			assert.Equal(t, want[name], b.Commands[0].SQL)
		})
	}

	simple := stmt.New()
	simple.Delete(shop.Users, query.From(shop.Users).Where("u", query.Eq(query.F("u", "Email"), query.Null())))
	b := formatList(t, SQLite(), simple)
	assert.Equal(t, `DELETE FROM "Users" AS a0 WHERE a0."email_address" IS NULL`, b.Commands[0].SQL)
}

func TestIfOnlyOnSQLServer(t *testing.T) {
	shop := testutil.NewShop()
	l := stmt.New()
	n := l.Declare("n", schema.NullableOf(schema.Int32))
	l.Set(n, query.Const(3))
	l.If(query.Gt(query.Var(n), query.Const(1)), func(then *stmt.List) {
		then.Delete(shop.Users, query.From(shop.Users).Where("u", query.Eq(query.F("u", "Active"), query.Const(false))))
	}, nil)

	b := formatList(t, SQLServer(), l)
	require.Len(t, b.Commands, 1)
	c := b.Commands[0]
	assert.Equal(t, "BEGIN TRANSACTION;\n"+
		"DECLARE @n INT;\n"+
		"SET @n = @p0;\n"+
		"IF @n > @p1\nBEGIN\n  DELETE a0 FROM [Users] AS a0 WHERE a0.[Active] = 0;\nEND;\n"+
		"COMMIT TRANSACTION", c.SQL)
	assert.Equal(t, []string{"p0", "p1"}, c.Params)
	assert.True(t, c.Counted)

	stmts, err := l.Parse(query.NewParser())
	require.NoError(t, err)
	for _, f := range []*Formatter{MySQL(), Postgres(), SQLite()} {
		_, err := f.Format(stmts)
		require.Error(t, err, f.Name())
		assert.True(t, sqlir.IsUnsupported(err), f.Name())
	}
}

func TestSQLServerBooleans(t *testing.T) {
	shop := testutil.NewShop()
	q, err := query.NewParser().Parse(query.From(shop.Users).
		Where("u", query.F("u", "Active")).
		Select("u", query.Project(query.As("adult", query.Gt(query.F("u", "Age"), query.Const(17))))))
	require.NoError(t, err)

	b, err := SQLServer().FormatQuery(q)
	require.NoError(t, err)
	assert.Equal(t, "SELECT CASE WHEN a0.[Age] > @p0 THEN 1 WHEN NOT (a0.[Age] > @p0) THEN 0 END AS [adult] "+
		"FROM [Users] AS a0 WHERE a0.[Active] = 1", b.Commands[0].SQL)
	assert.Equal(t, []string{"p0"}, b.Commands[0].Params)

	b, err = MySQL().FormatQuery(q)
	require.NoError(t, err)
	assert.Equal(t, "SELECT a0.`Age` > ? AS `adult` FROM `Users` AS a0 WHERE a0.`Active`", b.Commands[0].SQL)
}

func TestFunctions(t *testing.T) {
	shop := testutil.NewShop()
	q, err := query.NewParser().Parse(query.From(shop.Orders).
		Select("o", query.Project(
			query.As("year", query.Year(query.F("o", "Created"))),
			query.As("second", query.Second(query.F("o", "Created"))),
			query.As("half", query.Div(query.F("o", "Quantity"), query.Const(2))),
			query.As("note", query.Concat(query.Coalesce(query.F("o", "Note"), query.Const("")), query.Const("!"))),
		)))
	require.NoError(t, err)

	want := map[string]string{
		MySQLName: "SELECT YEAR(a0.`Created`) AS `year`, SECOND(a0.`Created`) AS `second`, a0.`Quantity` DIV ? AS `half`, " +
			"CONCAT(IFNULL(a0.`Note`, ?), ?) AS `note` FROM `Orders` AS a0",
		PostgresName: `SELECT CAST(EXTRACT(YEAR FROM a0."Created") AS INTEGER) AS "year", ` +
			`CAST(FLOOR(EXTRACT(SECOND FROM a0."Created")) AS INTEGER) AS "second", a0."Quantity" / $1 AS "half", ` +
			`COALESCE(a0."Note", $2) || $3 AS "note" FROM "Orders" AS a0`,
		SQLServerName: "SELECT DATEPART(year, a0.[Created]) AS [year], DATEPART(second, a0.[Created]) AS [second], " +
			"a0.[Quantity] / @p0 AS [half], COALESCE(a0.[Note], @p1) + @p2 AS [note] FROM [Orders] AS a0",
		SQLiteName: `SELECT CAST(strftime('%Y', a0."Created") AS INTEGER) AS "year", ` +
			`CAST(strftime('%S', a0."Created") AS INTEGER) AS "second", a0."Quantity" / ? AS "half", ` +
			`COALESCE(a0."Note", ?) || ? AS "note" FROM "Orders" AS a0`,
	}
	for name, f := range formatters() {
		t.Run(name, func(t *testing.T) {
			b, err := f.FormatQuery(q)
			require.NoError(t, err)
			assert.Equal(t, want[name], b.Commands[0].SQL)
		})
	}
}

func TestUnsupportedColumnTypes(t *testing.T) {
	counters := schema.NewTable("shop.Counter", "Counters").
		Column("Id", schema.Int32, schema.PrimaryKey()).
		Column("Hits", schema.UInt64).
		MustBuild()
	stmts := []sqlir.Statement{&sqlir.CreateTable{Table: counters}}

	b, err := MySQL().Format(stmts)
	require.NoError(t, err)
	assert.Contains(t, b.Commands[0].SQL, "`Hits` BIGINT UNSIGNED NOT NULL")

	for _, f := range []*Formatter{Postgres(), SQLServer(), SQLite()} {
		_, err := f.Format(stmts)
		require.Error(t, err, f.Name())
		assert.True(t, sqlir.IsUnsupported(err), f.Name())
		assert.Contains(t, err.Error(), `column "Hits"`)
	}
}

func TestSQLiteForeignKeys(t *testing.T) {
	stmts := []sqlir.Statement{&sqlir.DropForeignKey{TableName: "Orders", Name: "FK_Orders_Users"}}
	_, err := SQLite().Format(stmts)
	require.Error(t, err)
	assert.True(t, sqlir.IsUnsupported(err))

	b, err := SQLite(IgnoreForeignKeys()).Format(stmts)
	require.NoError(t, err)
	assert.Empty(t, b.Commands)

	b, err = MySQL().Format(stmts)
	require.NoError(t, err)
	assert.Equal(t, "ALTER TABLE `Orders` DROP FOREIGN KEY `FK_Orders_Users`", b.Commands[0].SQL)
}

func TestAddColumnDefaultsExistingRows(t *testing.T) {
	shop := testutil.NewShop()
	nick := &schema.Column{MemberName: "Nick", SqlName: "Nick", Type: schema.Of(schema.String), Info: schema.TypeInfo{StringLength: 40}}
	score := &schema.Column{MemberName: "Score", SqlName: "Score", Type: schema.NullableOf(schema.Float64)}
	stmts := []sqlir.Statement{
		&sqlir.AddColumn{TableName: shop.Users.Name, Column: nick},
		&sqlir.AddColumn{TableName: shop.Users.Name, Column: score},
		&sqlir.DropColumn{TableName: shop.Users.Name, ColumnName: "Score"},
		&sqlir.DropIndex{TableName: shop.Users.Name, Name: "IX_Users_Name"},
	}

	b, err := SQLServer().Format(stmts)
	require.NoError(t, err)
	assert.Equal(t, "BEGIN TRANSACTION;\n"+
		"ALTER TABLE [Users] ADD [Nick] VARCHAR(40) NOT NULL DEFAULT '';\n"+
		"ALTER TABLE [Users] ADD [Score] FLOAT NULL;\n"+
		"ALTER TABLE [Users] DROP COLUMN [Score];\n"+
		"DROP INDEX [IX_Users_Name] ON [Users];\n"+
		"COMMIT TRANSACTION", b.Commands[0].SQL)

	b, err = Postgres().Format(stmts)
	require.NoError(t, err)
	assert.Equal(t, []string{
		`ALTER TABLE "Users" ADD COLUMN "Nick" VARCHAR(40) NOT NULL DEFAULT ''`,
		`ALTER TABLE "Users" ADD COLUMN "Score" DOUBLE PRECISION NULL`,
		`ALTER TABLE "Users" DROP COLUMN "Score"`,
		`DROP INDEX "IX_Users_Name"`,
	}, sqlOf(b))
}

func TestCreateTableGolden(t *testing.T) {
	shop := testutil.NewShop()
	l := stmt.New().CreateTable(shop.Orders)
	l.DDL(&sqlir.AddForeignKey{TableName: shop.Orders.Name, ForeignKey: shop.Orders.ForeignKeys[0], ReferenceTableName: shop.Users.Name})

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for name, f := range formatters(IgnoreForeignKeys()) {
		t.Run(name, func(t *testing.T) {
			b := formatList(t, f, l)
			g.Assert(t, "create_orders_"+name, []byte(b.String()))
		})
	}
}
