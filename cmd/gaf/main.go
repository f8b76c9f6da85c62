// Package main implements the go-asm-flow CLI (gaf).
// It builds control flow graphs, call graphs and function summaries for
// assembly source files.
package main

import (
	"os"

	"github.com/l3aro/go-asm-flow/cmd/gaf/commands"
)

var (
	version   = "dev"
	buildTime = ""
)

func main() {
	commands.RootCmd.Version = version
	if buildTime != "" {
		commands.RootCmd.Version += " (built " + buildTime + ")"
	}
	commands.RootCmd.SetVersionTemplate(`gaf version {{.Version}}
`)

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
