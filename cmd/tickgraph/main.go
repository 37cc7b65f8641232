// Command tickgraph runs event scheduling scenarios on a virtual clock.
package main

import (
	"os"

	"github.com/randalmurphal/tickgraph/internal/cli"
)

func main() {
	os.Exit(cli.GetExitCode(cli.Execute()))
}
