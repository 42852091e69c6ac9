// Command cmstory serves the CM Story brochure site and operates its data.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/cmstory/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	cmd.SilenceErrors = true

	if err := cmd.Execute(); err != nil {
		if !cli.IsReported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
