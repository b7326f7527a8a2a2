// Package main is the entry point for the exposer CLI.
//
// exposer composes per-workload Kubernetes object graphs from a fleet file
// and applies them with server-side apply, gated on the readiness of the
// shared subsystems they depend on.
//
// Commands: init, render, apply, doctor, version.
//
// For detailed usage information, run:
//
//	exposer --help
package main

import (
	"fmt"
	"os"

	"github.com/imamik/exposer/cmd/exposer/commands"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
