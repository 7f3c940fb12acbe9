// Command assura is the entry point for the Assura insurance support
// assistant. It provides a CLI interface (via Cobra) and an HTTP server
// exposing the chat API.
package main

import (
	"fmt"
	"os"

	"github.com/assura-labs/assura-go/cmd/assura/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
