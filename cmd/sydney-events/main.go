// Command sydney-events scrapes Sydney event listings into a local catalog
// and serves them over HTTP. See the cli package for the subcommands.
package main

import (
	"github.com/pfrederiksen/sydney-events/internal/cli"
)

func main() {
	cli.Execute()
}
