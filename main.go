// Command fileinsights analyzes directory trees and reports file insights.
package main

import (
	"fmt"
	"os"

	"github.com/idelchi/fileinsights/internal/cli"
)

// version is set at build time via -ldflags.
//
//nolint:gochecknoglobals // Set by the build
var version = "unknown - unofficial & generated by unknown"

func main() {
	if err := cli.New(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fileinsights: %v\n", err)

		os.Exit(cli.ExitCode(err))
	}
}
