// Command forestd runs the forest learning-journey server: the Tool Router
// (C12) and every wired component behind it, reachable over a one-JSON-
// object-per-line stdio transport (C16), plus operator subcommands for
// configuration bootstrap and project lifecycle management.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
