// fleetd is a local daemon for managing a fleet of heterogeneous LLM
// backends: loading models, opening sessions, streaming completions, and
// cancelling in-flight generations on behalf of multiple authenticated
// users.
package main

import (
	"os"

	"github.com/modelfleet/fleetd/cmd/fleetd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
