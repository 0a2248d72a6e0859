// Package main is the entry point for the extend plugin host CLI.
package main

import (
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
)

// Version information (set via ldflags during build).
var (
	version = "0.1.0"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	hostVersion, err := semver.NewVersion(version)
	if err != nil {
		// Dev builds may carry a non-semver version string.
		hostVersion = semver.MustParse("0.0.0")
	}

	root := newRootCmd(hostVersion)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
