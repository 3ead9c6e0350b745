// The main package for the eventcached executable.
package main

import (
	"github.com/citypulse/eventcache/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
