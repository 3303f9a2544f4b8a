// Command cdcflow replays change-event files through the cdcflow engine
// and validates engine configuration.
package main

import (
	"fmt"
	"os"

	"github.com/randalmurphal/cdcflow/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(cli.ExitCode(err))
}
