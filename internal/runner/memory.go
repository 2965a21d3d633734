package runner

import (
	"context"

	"github.com/roach88/typedsql/internal/memory"
	"github.com/roach88/typedsql/internal/query"
	"github.com/roach88/typedsql/internal/stmt"
)

// MemoryExecutor runs statement lists against a memory.Store.
type MemoryExecutor struct {
	env *query.Env
}

// NewMemoryExecutor returns an executor over store.
func NewMemoryExecutor(store *memory.Store) *MemoryExecutor {
	return &MemoryExecutor{env: query.NewEnv(store)}
}

// Env returns the evaluation environment, for reading variables and
// evaluating queries directly.
func (e *MemoryExecutor) Env() *query.Env { return e.env }

func (e *MemoryExecutor) Run(ctx context.Context, l *stmt.List) (stmt.Result, error) {
	if err := ctx.Err(); err != nil {
		return stmt.Result{}, err
	}
	return l.Run(e.env)
}

// RunTx restores the store snapshot taken before l when l fails.
func (e *MemoryExecutor) RunTx(ctx context.Context, l *stmt.List) (stmt.Result, error) {
	if err := ctx.Err(); err != nil {
		return stmt.Result{}, err
	}
	snap := e.env.Store().Snapshot()
	res, err := l.Run(e.env)
	if err != nil {
		e.env.Store().Restore(snap)
		return stmt.Result{}, err
	}
	return res, nil
}
