// The main package for the harvester executable.
package main

import "github.com/skillsync/harvester/cmd"

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
