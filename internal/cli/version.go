package cli

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/roach88/typedsql/internal/sqlfmt"
)

// Version is set at build time with -ldflags "-X ...cli.Version=v1.2.3".
var Version = "dev"

// VersionOutput describes the binary.
type VersionOutput struct {
	Version  string   `json:"version" yaml:"version"`
	Go       string   `json:"go" yaml:"go"`
	Dialects []string `json:"dialects" yaml:"dialects"`
}

func (v VersionOutput) Text() string {
	return fmt.Sprintf("typedsql %s (%s)\n", v.Version, v.Go)
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the typedsql version",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := VersionOutput{Version: Version, Go: "unknown", Dialects: sqlfmt.Names()}
			if info, ok := debug.ReadBuildInfo(); ok {
				out.Go = info.GoVersion
				if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
					out.Version = info.Main.Version
				}
			}
			return rootOpts.formatter(cmd).Success(out)
		},
	}
}
