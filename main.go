// The main package for the legiscrawl executable.
package main

import (
	"github.com/blur702/legiscrawl/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
