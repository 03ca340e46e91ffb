// Package cli implements the httpmock command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "httpmock",
	Short: "httpmock is a standalone HTTP mocking server",
	Long: `httpmock runs a mock server that test suites connect to over the
control-plane API. Stubs, forwarding rules, proxy rules, and recordings are
configured at runtime by the connecting clients; static stubs can be loaded
from disk at startup.`,
	SilenceUsage:  true,
	SilenceErrors: true, // We handle errors in Execute()
}

// Execute runs the root command. Called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
