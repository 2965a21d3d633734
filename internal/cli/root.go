// Package cli implements the typedsql command tree.
package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/typedsql/internal/config"
)

// RootOptions holds global flags and the configuration resolved from them.
type RootOptions struct {
	ConfigFile string
	Verbose    bool
	Format     string // "text" | "json" | "yaml"

	Config *config.Config
	Logger *slog.Logger
}

// NewRootCommand creates the root command for the typedsql CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "typedsql",
		Short: "Typed SQL schemas, diffs and migrations",
		Long: `typedsql renders schema snapshots as SQL for MySQL, PostgreSQL,
SQL Server and SQLite, diffs snapshots into migration statements and applies
migration manifests to a database.

Settings come from typedsql.yaml, TYPEDSQL_* environment variables and flags,
in increasing precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ConfigFile, "config", "", "config file (default: ./typedsql.yaml)")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging)")
	flags.StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	flags.String("dialect", "", "SQL dialect (mysql|postgres|sqlserver|sqlite)")
	flags.String("database", "", "database path for the sqlite dialect")
	flags.String("manifest", "", "migration manifest file")
	flags.String("log-level", "", "log level (debug|info|warn|error)")
	flags.Bool("ignore-foreign-keys", false, "skip foreign key statements the dialect cannot express")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	// Add subcommands
	cmd.AddCommand(NewRenderCommand(opts))
	cmd.AddCommand(NewDiffCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

func (o *RootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(config.New(), o.ConfigFile, ".", cmd.Flags())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	o.Config = cfg
	o.Format = cfg.Format

	level := cfg.SlogLevel()
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	o.Logger.Debug("configuration loaded", "file", cfg.File, "dialect", cfg.Dialect)
	return nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// Execute runs the command tree with args and reports any error in the
// configured output format. It returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}
	f := &OutputFormatter{Format: opts.Format, Writer: stdout, Verbose: opts.Verbose}
	if f.Format != "json" && f.Format != "yaml" {
		f.Format = "text"
		f.Writer = stderr
	}
	f.Error(errorCode(err), err.Error(), nil)
	return GetExitCode(err)
}

// exactArgs is cobra.ExactArgs with a command-error exit code.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return WrapExitError(ExitCommandError, "invalid arguments", err)
		}
		return nil
	}
}
