// Package runner executes statement lists.
//
// Two executors share one contract. SQLExecutor renders a list with a dialect
// formatter and sends the commands over a Conn, one pinned session per list.
// MemoryExecutor runs the same list against a memory.Store. Both return the
// affected-row sum of DML statements and the records of the final select,
// nested the same way, so a list can be checked in memory and replayed on a
// database.
//
// Thread-safety: executors are not safe for concurrent use. Run independent
// lists on independent executors.
package runner

import (
	"context"
	"fmt"

	"github.com/roach88/typedsql/internal/stmt"
	"github.com/roach88/typedsql/internal/value"
)

// Executor runs statement lists.
type Executor interface {
	// Run executes l statement by statement and stops at the first error.
	// Statements already executed stay applied.
	Run(ctx context.Context, l *stmt.List) (stmt.Result, error)

	// RunTx executes l atomically: on error nothing of l stays applied.
	RunTx(ctx context.Context, l *stmt.List) (stmt.Result, error)
}

// Collect maps records to typed values with fn.
func Collect[T any](recs []*value.Record, fn func(*value.Record) (T, error)) ([]T, error) {
	out := make([]T, 0, len(recs))
	for i, r := range recs {
		v, err := fn(r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Field reads a dotted member path of r and converts it to T. A NULL reads
// as the zero value of T.
func Field[T any](r *value.Record, path ...string) (T, error) {
	var zero T
	v := r.Lookup(path...)
	if v == nil {
		return zero, nil
	}
	x, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("member %v holds %T, not %T", path, v, zero)
	}
	return x, nil
}
