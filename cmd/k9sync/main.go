// Command k9sync inspects and maintains the local reconciliation state.
package main

import (
	"fmt"
	"os"

	"github.com/rbeezley/myk9q-sync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
