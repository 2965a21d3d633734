package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/typedsql/internal/memory"
	"github.com/roach88/typedsql/internal/migrate"
	"github.com/roach88/typedsql/internal/runner"
	"github.com/roach88/typedsql/internal/sqlfmt"
)

// MigrateOptions holds flags shared by the migrate subcommands.
type MigrateOptions struct {
	DryRun bool
}

// NewMigrateCommand creates the migrate command and its subcommands.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, revert or inspect manifest migrations",
		Long: `Apply the migrations of a manifest to the configured database.

Migrations are ordered by name. The applied history must be a prefix of the
manifest; any divergence fails without changing the database. Each migration
runs in its own transaction.`,
	}
	cmd.PersistentFlags().BoolVar(&opts.DryRun, "dry-run", false, "run against an empty in-memory database")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, rootOpts, opts, func(ctx context.Context, m *migrate.Migrator) (any, error) {
				applied, err := m.MigrateToLatest(ctx)
				if err != nil {
					return nil, err
				}
				if applied == nil {
					applied = []string{}
				}
				return AppliedOutput{Action: "applied", Names: applied}, nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Revert the last applied migration",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, rootOpts, opts, func(ctx context.Context, m *migrate.Migrator) (any, error) {
				name, err := m.MigrateDown(ctx)
				if err != nil {
					return nil, err
				}
				out := AppliedOutput{Action: "reverted", Names: []string{}}
				if name != "" {
					out.Names = append(out.Names, name)
				}
				return out, nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, rootOpts, opts, func(ctx context.Context, m *migrate.Migrator) (any, error) {
				entries, err := m.Status(ctx)
				if err != nil {
					return nil, err
				}
				return statusOutput(entries), nil
			})
		},
	})

	return cmd
}

// AppliedOutput lists the migrations a command applied or reverted.
type AppliedOutput struct {
	Action string   `json:"action" yaml:"action"`
	Names  []string `json:"names" yaml:"names"`
}

func (a AppliedOutput) Text() string {
	if len(a.Names) == 0 {
		return fmt.Sprintf("nothing %s\n", a.Action)
	}
	var sb strings.Builder
	for _, n := range a.Names {
		fmt.Fprintf(&sb, "%s %s\n", a.Action, n)
	}
	return sb.String()
}

// StatusEntry is one line of migrate status.
type StatusEntry struct {
	Name     string `json:"name" yaml:"name"`
	Version  string `json:"version,omitempty" yaml:"version,omitempty"`
	Applied  bool   `json:"applied" yaml:"applied"`
	Modified bool   `json:"modified,omitempty" yaml:"modified,omitempty"`
}

// StatusOutput lists every manifest migration in order.
type StatusOutput []StatusEntry

func statusOutput(entries []migrate.Entry) StatusOutput {
	out := make(StatusOutput, 0, len(entries))
	for _, e := range entries {
		out = append(out, StatusEntry{Name: e.Name, Version: e.Version, Applied: e.Applied, Modified: e.Modified})
	}
	return out
}

func (s StatusOutput) Text() string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STATE\tNAME\tVERSION")
	for _, e := range s {
		state := "pending"
		switch {
		case e.Modified:
			state = "modified"
		case e.Applied:
			state = "applied"
		}
		version := e.Version
		if len(version) > 12 {
			version = version[:12]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", state, e.Name, version)
	}
	w.Flush()
	return sb.String()
}

func withMigrator(cmd *cobra.Command, rootOpts *RootOptions, opts *MigrateOptions,
	fn func(context.Context, *migrate.Migrator) (any, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := rootOpts.Config

	ms, err := LoadManifest(cfg.Manifest)
	if err != nil {
		return err
	}
	f := rootOpts.formatter(cmd)
	f.VerboseLog("Loaded %d migration(s) from %s", len(ms), cfg.Manifest)

	exec, closeExec, err := openExecutor(ctx, rootOpts, opts.DryRun)
	if err != nil {
		return err
	}
	defer closeExec()

	m, err := migrate.New(exec, ms, migrate.WithLogger(rootOpts.Logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid manifest", err)
	}
	out, err := fn(ctx, m)
	if err != nil {
		return WrapExitError(ExitFailure, "migration failed", err)
	}
	return f.Success(out)
}

// openExecutor connects to the configured database. Only SQLite has a
// bundled driver; other dialects are rendered with render and diff.
func openExecutor(ctx context.Context, rootOpts *RootOptions, dryRun bool) (runner.Executor, func(), error) {
	if dryRun {
		return runner.NewMemoryExecutor(memory.NewStore()), func() {}, nil
	}
	cfg := rootOpts.Config
	f, err := cfg.Formatter()
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "invalid dialect", err)
	}
	if f.Name() != sqlfmt.SQLiteName {
		return nil, nil, NewExitError(ExitCommandError,
			fmt.Sprintf("no driver for dialect %q: migrate runs on sqlite, use render or diff for other dialects", f.Name()))
	}
	db, err := runner.OpenSQLite(ctx, cfg.Database)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "cannot open database", err)
	}
	exec := runner.NewSQLExecutor(db, f, runner.WithLogger(rootOpts.Logger))
	return exec, func() { db.Close() }, nil
}
