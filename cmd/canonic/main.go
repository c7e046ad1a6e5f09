// Package main is the entrypoint for the canonic CLI.
package main

import (
	"os"

	"github.com/canonica-labs/canonica/internal/cli"
)

var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.SetVersionInfo(version, gitCommit, buildDate)
	os.Exit(cli.New().Execute())
}
