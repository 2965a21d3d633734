package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/typedsql/internal/schemadiff"
)

// DiffOutput holds the up script and, when requested, the down script.
type DiffOutput struct {
	Up   ScriptOutput  `json:"up" yaml:"up"`
	Down *ScriptOutput `json:"down,omitempty" yaml:"down,omitempty"`
}

func (d DiffOutput) Text() string {
	if d.Down == nil {
		return d.Up.Text()
	}
	return "-- up\n" + d.Up.Text() + "-- down\n" + d.Down.Text()
}

// DiffOptions holds flags for the diff command.
type DiffOptions struct {
	Down bool
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiffOptions{}

	cmd := &cobra.Command{
		Use:   "diff <from-snapshot> <to-snapshot>",
		Short: "Render the migration between two schema snapshots",
		Long: `Compare two snapshot files and render the statements that turn the first
schema into the second. Foreign keys are dropped first and added last.`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := LoadSnapshot(args[0])
			if err != nil {
				return err
			}
			to, err := LoadSnapshot(args[1])
			if err != nil {
				return err
			}
			up, down, err := schemadiff.Migration(from, to)
			if err != nil {
				return err
			}

			var out DiffOutput
			if out.Up, err = rootOpts.renderScript(up); err != nil {
				return err
			}
			if opts.Down {
				d, err := rootOpts.renderScript(down)
				if err != nil {
					return err
				}
				out.Down = &d
			}
			return rootOpts.formatter(cmd).Success(out)
		},
	}

	cmd.Flags().BoolVar(&opts.Down, "down", false, "also render the reverse migration")
	return cmd
}
