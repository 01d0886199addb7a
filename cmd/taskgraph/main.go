// Package main provides the entry point for the taskgraph CLI.
package main

import (
	"os"

	"github.com/randalmurphal/taskgraph/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
