// Command tbaudit audits task execution logs against the ledger.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/tbaudit/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
