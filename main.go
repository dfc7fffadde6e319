// The main package for the actions-ingest executable.
package main

import (
	"github.com/JakeFAU/actions-ingest/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
