package runner

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB adapts database/sql to Conn. Every command runs on one pinned
// connection, so temporary tables and session variables survive between the
// commands of a batch.
type DB struct {
	db   *sql.DB
	conn *sql.Conn
}

// Open opens a database/sql driver and pins one connection.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &DB{db: db, conn: conn}, nil
}

// OpenSQLite opens or creates a SQLite database at path. ":memory:" gives a
// private in-memory database.
//
// The connection is configured with:
//   - a 5-second busy timeout for lock contention
//   - foreign key enforcement
func OpenSQLite(ctx context.Context, path string) (*DB, error) {
	d, err := Open(ctx, "sqlite3", path)
	if err != nil {
		return nil, err
	}
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := d.conn.ExecContext(ctx, pragma); err != nil {
			d.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return d, nil
}

// Close releases the pinned connection and the pool.
func (d *DB) Close() error {
	if d.conn != nil {
		d.conn.Close()
	}
	return d.db.Close()
}

func (d *DB) ExecuteNonQuery(ctx context.Context, query string, args ...any) (int64, error) {
	return execute(ctx, d.conn, query, args)
}

func (d *DB) ExecuteQuery(ctx context.Context, query string, args ...any) (Rows, error) {
	return d.conn.QueryContext(ctx, query, args...)
}

func (d *DB) Begin(ctx context.Context) (Tx, error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx}, nil
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) ExecuteNonQuery(ctx context.Context, query string, args ...any) (int64, error) {
	return execute(ctx, t.tx, query, args)
}

func (t *sqlTx) ExecuteQuery(ctx context.Context, query string, args ...any) (Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

func (t *sqlTx) Commit() error   { return t.tx.Commit() }
func (t *sqlTx) Rollback() error { return t.tx.Rollback() }

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func execute(ctx context.Context, e execer, query string, args []any) (int64, error) {
	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
