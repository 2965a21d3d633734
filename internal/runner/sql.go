package runner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/typedsql/internal/query"
	"github.com/roach88/typedsql/internal/sqlfmt"
	"github.com/roach88/typedsql/internal/sqlir"
	"github.com/roach88/typedsql/internal/stmt"
	"github.com/roach88/typedsql/internal/value"
)

// Session executes single commands.
type Session interface {
	ExecuteNonQuery(ctx context.Context, sql string, args ...any) (int64, error)
	ExecuteQuery(ctx context.Context, sql string, args ...any) (Rows, error)
}

// Conn is a pinned database session.
type Conn interface {
	Session
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a transaction on a Conn.
type Tx interface {
	Session
	Commit() error
	Rollback() error
}

// Rows is a forward-only result cursor.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// ExecError is a driver failure with the command that caused it.
type ExecError struct {
	SQL     string
	Dialect string
	Err     error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s: %v\n  sql: %s", e.Dialect, e.Err, e.SQL)
}

func (e *ExecError) Unwrap() error { return e.Err }

// IsExecError reports whether err wraps an ExecError.
func IsExecError(err error) bool {
	var ee *ExecError
	return errors.As(err, &ee)
}

// SQLExecutorOption configures a SQLExecutor.
type SQLExecutorOption func(*SQLExecutor)

// WithLogger sets the logger; rendered commands are logged at Debug.
func WithLogger(l *slog.Logger) SQLExecutorOption {
	return func(e *SQLExecutor) {
		e.logger = l
	}
}

// SQLExecutor renders statement lists with one formatter and executes them
// on conn.
type SQLExecutor struct {
	conn   Conn
	format *sqlfmt.Formatter
	logger *slog.Logger
}

// NewSQLExecutor returns an executor for conn speaking f's dialect.
func NewSQLExecutor(conn Conn, f *sqlfmt.Formatter, opts ...SQLExecutorOption) *SQLExecutor {
	e := &SQLExecutor{conn: conn, format: f, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Formatter returns the formatter of e.
func (e *SQLExecutor) Formatter() *sqlfmt.Formatter { return e.format }

func (e *SQLExecutor) Run(ctx context.Context, l *stmt.List) (stmt.Result, error) {
	p := query.NewParser()
	stmts, err := l.Parse(p)
	if err != nil {
		return stmt.Result{}, err
	}
	return e.Exec(ctx, e.conn, stmts, p)
}

func (e *SQLExecutor) RunTx(ctx context.Context, l *stmt.List) (res stmt.Result, err error) {
	p := query.NewParser()
	stmts, err := l.Parse(p)
	if err != nil {
		return stmt.Result{}, err
	}
	tx, err := e.conn.Begin(ctx)
	if err != nil {
		return stmt.Result{}, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				e.logger.Warn("rollback failed", "error", rbErr)
			}
		}
	}()
	res, err = e.Exec(ctx, tx, stmts, p)
	if err != nil {
		return res, err
	}
	if err = tx.Commit(); err != nil {
		return res, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

// Exec renders stmts and runs the commands on s in order. p resolves the
// parameters the statements reference.
func (e *SQLExecutor) Exec(ctx context.Context, s Session, stmts []sqlir.Statement, p *query.Parser) (stmt.Result, error) {
	b, err := e.format.Format(stmts)
	if err != nil {
		return stmt.Result{}, err
	}
	members := resultMembers(stmts)

	var res stmt.Result
	for _, c := range b.Commands {
		args, err := bindArgs(p, c.Params, b.Named)
		if err != nil {
			return res, err
		}
		e.logger.Debug("exec", "dialect", b.Dialect, "sql", c.SQL, "params", c.Params)

		if c.Query {
			rows, err := s.ExecuteQuery(ctx, c.SQL, args...)
			if err != nil {
				return res, &ExecError{SQL: c.SQL, Dialect: b.Dialect, Err: err}
			}
			recs, err := readRecords(rows, members)
			if err != nil {
				return res, &ExecError{SQL: c.SQL, Dialect: b.Dialect, Err: err}
			}
			res.Rows = recs
			continue
		}
		n, err := s.ExecuteNonQuery(ctx, c.SQL, args...)
		if err != nil {
			return res, &ExecError{SQL: c.SQL, Dialect: b.Dialect, Err: err}
		}
		if c.Counted {
			res.Affected += n
		}
	}
	return res, nil
}

func bindArgs(p *query.Parser, names []string, named bool) ([]any, error) {
	if len(names) == 0 {
		return nil, nil
	}
	args, err := p.Args(names)
	if err != nil {
		return nil, err
	}
	if named {
		for i, n := range names {
			args[i] = sql.Named(n, args[i])
		}
	}
	return args, nil
}

// resultMembers returns the result members of the last select, which is the
// only command whose rows are read.
func resultMembers(stmts []sqlir.Statement) []sqlir.Member {
	for i := len(stmts) - 1; i >= 0; i-- {
		if s, ok := stmts[i].(*sqlir.SelectStatement); ok {
			return s.Query.Result.Members
		}
	}
	return nil
}

// readRecords drains rows into nested records. Values are converted to the
// kinds of the result members so they match the in-memory representation.
func readRecords(rows Rows, members []sqlir.Member) ([]*value.Record, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []*value.Record{}
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		if len(members) == len(cols) {
			for i, m := range members {
				v, err := value.Coerce(raw[i], m.Expr().Type().Kind)
				if err != nil {
					return nil, fmt.Errorf("column %q: %w", cols[i], err)
				}
				raw[i] = v
			}
		}
		out = append(out, value.Unflatten(cols, raw))
	}
	return out, rows.Err()
}
