package main

import (
	"os"

	"github.com/recall-labs/recall-cli/internal/adapters/driving/cli"
)

// version is overridden at build time with -ldflags.
var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
