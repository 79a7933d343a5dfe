// File: cmd/hioload-todo/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// hioload-todo serves an in-memory Todo list over HTTP/1.1.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hioload-todo",
		Short: "In-memory Todo CRUD server over raw TCP",
		Long: `hioload-todo serves a JSON Todo list over HTTP/1.1.

Each connection carries exactly one request and is handled by a fixed
pool of workers. Failures are appended to the error log file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
