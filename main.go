// The main package for the proxyherald executable.
package main

import (
	"proxyherald/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
