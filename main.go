// The main package for the declaration-crawler executable.
package main

import (
	"github.com/openveris/declaration-crawler/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
