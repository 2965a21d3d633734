package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/typedsql/internal/schemadiff"
	"github.com/roach88/typedsql/internal/sqlfmt"
	"github.com/roach88/typedsql/internal/sqlir"
)

// CommandOutput is one rendered SQL command.
type CommandOutput struct {
	SQL    string   `json:"sql" yaml:"sql"`
	Params []string `json:"params,omitempty" yaml:"params,omitempty"`
}

// ScriptOutput is a rendered statement list.
type ScriptOutput struct {
	Dialect  string          `json:"dialect" yaml:"dialect"`
	Commands []CommandOutput `json:"commands" yaml:"commands"`
}

func (s ScriptOutput) Text() string {
	var sb strings.Builder
	for _, c := range s.Commands {
		sb.WriteString(c.SQL)
		sb.WriteString(";\n")
	}
	return sb.String()
}

func (o *RootOptions) renderScript(stmts []sqlir.Statement) (ScriptOutput, error) {
	f, err := o.Config.Formatter()
	if err != nil {
		return ScriptOutput{}, WrapExitError(ExitCommandError, "invalid dialect", err)
	}
	return render(f, stmts)
}

func render(f *sqlfmt.Formatter, stmts []sqlir.Statement) (ScriptOutput, error) {
	out := ScriptOutput{Dialect: f.Name(), Commands: []CommandOutput{}}
	if len(stmts) == 0 {
		return out, nil
	}
	b, err := f.Format(stmts)
	if err != nil {
		return out, WrapExitError(ExitCommandError, "cannot render for "+f.Name(), err)
	}
	for _, c := range b.Commands {
		out.Commands = append(out.Commands, CommandOutput{SQL: c.SQL, Params: c.Params})
	}
	return out, nil
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <snapshot>",
		Short: "Render the DDL that creates a schema snapshot",
		Long: `Render the statements that create every table, index and foreign key
of a snapshot file (.yaml or .cue) on an empty database.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := LoadSnapshot(args[0])
			if err != nil {
				return err
			}
			stmts, err := schemadiff.Compare(nil, tables)
			if err != nil {
				return err
			}
			script, err := rootOpts.renderScript(stmts)
			if err != nil {
				return err
			}
			rootOpts.formatter(cmd).VerboseLog("Rendered %d table(s) as %d command(s)", len(tables), len(script.Commands))
			return rootOpts.formatter(cmd).Success(script)
		},
	}
	return cmd
}
