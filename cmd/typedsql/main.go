// Command typedsql renders, diffs and migrates typed SQL schemas.
package main

import (
	"os"

	"github.com/roach88/typedsql/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
