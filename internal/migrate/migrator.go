package migrate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/typedsql/internal/query"
	"github.com/roach88/typedsql/internal/runner"
	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/stmt"
	"github.com/roach88/typedsql/internal/value"
)

// Option configures a Migrator.
type Option func(*Migrator)

// WithLogger sets the logger for migration progress.
func WithLogger(l *slog.Logger) Option {
	return func(m *Migrator) {
		m.logger = l
	}
}

// WithRunID overrides the generated run ID attached to every log line.
func WithRunID(id string) Option {
	return func(m *Migrator) {
		m.runID = id
	}
}

// Migrator applies registered migrations through an executor.
// Not safe for concurrent use.
type Migrator struct {
	exec       runner.Executor
	migrations []Migration
	history    *historyTable
	logger     *slog.Logger
	runID      string
}

// New returns a migrator over migrations, which are ordered by name.
func New(exec runner.Executor, migrations []Migration, opts ...Option) (*Migrator, error) {
	ms, err := sortMigrations(migrations)
	if err != nil {
		return nil, err
	}
	m := &Migrator{
		exec:       exec,
		migrations: ms,
		history:    newHistoryTable(),
		logger:     slog.Default(),
		runID:      uuid.Must(uuid.NewV7()).String(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("run", m.runID)
	return m, nil
}

// RunID returns the identifier of this migrator's run.
func (m *Migrator) RunID() string { return m.runID }

// Migrations returns the registered migrations in application order.
func (m *Migrator) Migrations() []Migration { return m.migrations }

// Applied returns the history, oldest first. A history table that does not
// exist yet reads as empty.
func (m *Migrator) Applied(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	recs, err := m.history.read(ctx, m.exec)
	if err != nil {
		m.logger.Debug("history unreadable, assuming none applied", "error", err)
		return nil, nil
	}
	return recs, nil
}

// MigrateToLatest applies every migration past the applied prefix, each in
// its own transaction, and returns the names applied. It stops at the first
// failure; migrations applied before it stay recorded.
func (m *Migrator) MigrateToLatest(ctx context.Context) ([]string, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	if err := check(m.migrations, applied); err != nil {
		return nil, err
	}
	pending := m.migrations[len(applied):]
	if len(pending) == 0 {
		m.logger.Info("schema is up to date", "applied", len(applied))
		return nil, nil
	}

	m.history.ensure(ctx, m.exec, m.logger)

	var done []string
	for _, mig := range pending {
		version, err := mig.Version()
		if err != nil {
			return done, fmt.Errorf("migration %q: %w", mig.Name, err)
		}
		l := stmt.New().DDL(mig.Up...)
		m.history.record(l, mig.Name, version)
		if _, err := m.exec.RunTx(ctx, l); err != nil {
			return done, fmt.Errorf("migration %q up: %w", mig.Name, err)
		}
		m.logger.Info("applied migration", "name", mig.Name, "version", version)
		done = append(done, mig.Name)
	}
	return done, nil
}

// MigrateDown reverts the last applied migration and returns its name, or ""
// when nothing is applied. Only the latest registered migration can be
// reverted; any other applied tail is a ConsistencyError.
func (m *Migrator) MigrateDown(ctx context.Context) (string, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return "", err
	}
	if err := check(m.migrations, applied); err != nil {
		return "", err
	}
	if len(applied) == 0 {
		m.logger.Info("nothing to revert")
		return "", nil
	}
	last := applied[len(applied)-1]
	if len(applied) != len(m.migrations) {
		return "", &ConsistencyError{
			Index:    len(applied) - 1,
			Applied:  last.Name,
			Expected: m.migrations[len(m.migrations)-1].Name,
		}
	}
	mig := m.migrations[len(applied)-1]

	l := stmt.New().DDL(mig.Down...)
	m.history.remove(l, mig.Name)
	if _, err := m.exec.RunTx(ctx, l); err != nil {
		return "", fmt.Errorf("migration %q down: %w", mig.Name, err)
	}
	m.logger.Info("reverted migration", "name", mig.Name)
	return mig.Name, nil
}

// Entry is the state of one registered migration.
type Entry struct {
	Name    string
	Version string
	Applied bool
	// Modified marks an applied migration whose recorded version differs
	// from the version of its current snapshot.
	Modified bool
}

// Status returns one entry per registered migration. It fails with a
// ConsistencyError when the history diverges.
func (m *Migrator) Status(ctx context.Context) ([]Entry, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	if err := check(m.migrations, applied); err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(m.migrations))
	for i, mig := range m.migrations {
		version, err := mig.Version()
		if err != nil {
			return nil, fmt.Errorf("migration %q: %w", mig.Name, err)
		}
		e := Entry{Name: mig.Name, Version: version}
		if i < len(applied) {
			e.Applied = true
			e.Modified = applied[i].Version != version
		}
		out = append(out, e)
	}
	return out, nil
}

// historyTable reads and writes the history through statement lists, so it
// works the same on every executor.
type historyTable struct {
	t *schema.Table
}

func newHistoryTable() *historyTable {
	return &historyTable{t: History()}
}

func (h *historyTable) read(ctx context.Context, e runner.Executor) ([]Record, error) {
	l := stmt.New()
	l.Select(query.From(h.t).
		OrderBy("m", query.F("m", "Name")).
		Select("m", query.Project(
			query.As("name", query.F("m", "Name")),
			query.As("version", query.F("m", "Version")),
		)))
	res, err := e.Run(ctx, l)
	if err != nil {
		return nil, err
	}
	return runner.Collect(res.Rows, func(r *value.Record) (Record, error) {
		name, err := runner.Field[string](r, "name")
		if err != nil {
			return Record{}, err
		}
		version, err := runner.Field[string](r, "version")
		return Record{Name: name, Version: version}, err
	})
}

// ensure creates the history table. Failures are ignored: the common one is
// that the table already exists, and any other surfaces when the first
// record is written.
func (h *historyTable) ensure(ctx context.Context, e runner.Executor, logger *slog.Logger) {
	if _, err := e.Run(ctx, stmt.New().CreateTable(h.t)); err != nil {
		logger.Debug("history table not created", "error", err)
	}
}

func (h *historyTable) record(l *stmt.List, name, version string) {
	l.Insert(h.t).
		Value("Name", query.Const(name)).
		Value("Version", query.Const(version))
}

func (h *historyTable) remove(l *stmt.List, name string) {
	l.Delete(h.t, query.From(h.t).
		Where("m", query.Eq(query.F("m", "Name"), query.Const(name))))
}
