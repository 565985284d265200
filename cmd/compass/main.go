// Command compass is the entry point for the course document assistant.
// It provides a CLI (via Cobra) for syncing, ingesting, searching, and
// asking questions about course material, plus an optional HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/coursecompass/compass-go/cmd/compass/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
