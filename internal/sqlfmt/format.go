// Package sqlfmt renders sqlir statements as SQL text for MySQL, PostgreSQL,
// SQL Server and SQLite.
//
// A shared renderer walks the IR; each dialect supplies the pieces that differ:
// quoting, parameter markers, type names, pagination, date parts, identity
// retrieval and session variables.
//
// SESSION VARIABLES:
//
// MySQL and SQL Server have native variables (@name). PostgreSQL and SQLite do
// not; a batch that declares variables or inserts into an identity table
// starts with a prolog that recreates the temporary table _typedsql_variables
// holding one row with one column per variable plus __identity. SET becomes an
// UPDATE of that row and reads become scalar subqueries. Only one statement
// list may be in flight per session.
//
// Values are never interpolated: constants render as parameter markers and
// Command.Params lists the parameter names to bind.
package sqlfmt

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/typedsql/internal/sqlir"
)

// Dialect names accepted by New.
const (
	MySQLName     = "mysql"
	PostgresName  = "postgres"
	SQLServerName = "sqlserver"
	SQLiteName    = "sqlite"
)

// VariablesTable is the temporary table emulating session variables.
const VariablesTable = "_typedsql_variables"

// identityColumn holds the last generated identity in VariablesTable.
const identityColumn = "__identity"

// Names returns the supported dialect names.
func Names() []string {
	return []string{MySQLName, PostgresName, SQLServerName, SQLiteName}
}

// Command is one SQL command of a batch.
type Command struct {
	SQL string

	// Params lists parameter names in binding order. Positional dialects may
	// repeat a name; named dialects list each name once.
	Params []string

	// Query is set when the command returns rows.
	Query bool

	// Counted is set when the affected rows of the command count toward the
	// statement list result.
	Counted bool
}

// Batch is the rendering of one statement list.
type Batch struct {
	Dialect  string
	Commands []Command

	// Named is set when Params are bound by name (@p0) rather than position.
	Named bool
}

// String returns the commands separated by semicolons, one per line.
func (b *Batch) String() string {
	var sb strings.Builder
	for _, c := range b.Commands {
		sb.WriteString(c.SQL)
		sb.WriteString(";\n")
	}
	return sb.String()
}

// Option configures a Formatter.
type Option func(*options)

type options struct {
	ignoreForeignKeys bool
}

// IgnoreForeignKeys drops foreign key statements from batches instead of
// failing on dialects that cannot alter constraints.
func IgnoreForeignKeys() Option {
	return func(o *options) { o.ignoreForeignKeys = true }
}

// Formatter renders statements for one dialect. It is stateless and safe for
// concurrent use.
type Formatter struct {
	d    dialect
	opts options
}

func newFormatter(d dialect, opts []Option) *Formatter {
	f := &Formatter{d: d}
	for _, o := range opts {
		o(&f.opts)
	}
	return f
}

// MySQL returns the MySQL formatter.
func MySQL(opts ...Option) *Formatter { return newFormatter(mysql{}, opts) }

// Postgres returns the PostgreSQL formatter.
func Postgres(opts ...Option) *Formatter { return newFormatter(postgres{}, opts) }

// SQLServer returns the SQL Server formatter.
func SQLServer(opts ...Option) *Formatter { return newFormatter(sqlserver{}, opts) }

// SQLite returns the SQLite formatter.
func SQLite(opts ...Option) *Formatter { return newFormatter(sqlite{}, opts) }

// New returns the formatter registered under name.
func New(name string, opts ...Option) (*Formatter, error) {
	switch strings.ToLower(name) {
	case MySQLName:
		return MySQL(opts...), nil
	case PostgresName, "postgresql":
		return Postgres(opts...), nil
	case SQLServerName, "mssql":
		return SQLServer(opts...), nil
	case SQLiteName, "sqlite3":
		return SQLite(opts...), nil
	}
	return nil, fmt.Errorf("unknown dialect %q (want one of %s)", name, strings.Join(Names(), ", "))
}

// Name returns the dialect name.
func (f *Formatter) Name() string { return f.d.name() }

// Format renders a statement list.
func (f *Formatter) Format(stmts []sqlir.Statement) (*Batch, error) {
	r := &render{d: f.d, opts: f.opts}
	b := &Batch{Dialect: f.d.name(), Named: f.d.namedParams()}

	if f.d.variables() == variablesTable && needsVariablesTable(stmts) {
		prolog, err := r.variablesProlog(stmts)
		if err != nil {
			return nil, err
		}
		b.Commands = append(b.Commands, prolog...)
	}
	for _, st := range stmts {
		cmds, err := r.statement(st)
		if err != nil {
			return nil, err
		}
		b.Commands = append(b.Commands, cmds...)
	}
	if f.d.singleBatch() {
		b.Commands = joinBatch(b.Commands)
	}
	return b, nil
}

// FormatQuery renders a single SELECT.
func (f *Formatter) FormatQuery(q *sqlir.Query) (*Batch, error) {
	return f.Format([]sqlir.Statement{&sqlir.SelectStatement{Query: q}})
}

// joinBatch merges commands into one transaction-wrapped command, for
// dialects whose variables only live for one batch.
func joinBatch(cmds []Command) []Command {
	if len(cmds) <= 1 {
		return cmds
	}
	out := Command{Query: cmds[len(cmds)-1].Query}
	parts := []string{"BEGIN TRANSACTION"}
	for _, c := range cmds {
		parts = append(parts, c.SQL)
		out.Counted = out.Counted || c.Counted
		for _, p := range c.Params {
			if !slices.Contains(out.Params, p) {
				out.Params = append(out.Params, p)
			}
		}
	}
	parts = append(parts, "COMMIT TRANSACTION")
	out.SQL = strings.Join(parts, ";\n")
	return []Command{out}
}

func needsVariablesTable(stmts []sqlir.Statement) bool {
	for _, st := range stmts {
		switch x := st.(type) {
		case *sqlir.DeclareVariable:
			return true
		case *sqlir.Insert:
			if x.Table.IdentityColumn() != nil {
				return true
			}
		case *sqlir.If:
			if needsVariablesTable(x.Then) || needsVariablesTable(x.Else) {
				return true
			}
		}
	}
	return false
}

func declaredVariables(stmts []sqlir.Statement) []*sqlir.Placeholder {
	var out []*sqlir.Placeholder
	for _, st := range stmts {
		switch x := st.(type) {
		case *sqlir.DeclareVariable:
			out = append(out, x.Placeholder)
		case *sqlir.If:
			out = append(out, declaredVariables(x.Then)...)
			out = append(out, declaredVariables(x.Else)...)
		}
	}
	return out
}
