// Command ragd is the entry point for the ragd retrieval service.
// It provides a CLI interface (via Cobra) and an HTTP server exposing
// document storage, similarity search, and grounded chat.
package main

import (
	"fmt"
	"os"

	"github.com/corpuslabs/ragd/cmd/ragd/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
