// Package main is the entry point for the statuswatch CLI.
//
// Usage:
//
//	statuswatch serve                        # watch the default provider
//	statuswatch serve -c providers.yaml --web
//	statuswatch validate -c providers.yaml   # check a config file
//	statuswatch version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "statuswatch",
	Short: "Track status page incidents and component changes",
	Long: `statuswatch polls Statuspage-style status pages and prints a line for
every new, updated or resolved incident and every component status change.

Quick start:
  statuswatch serve
  statuswatch serve -c providers.yaml --web --port 8080

Example config:
  poll_interval: 30s
  providers:
    OpenAI API: https://status.openai.com/api/v2
    GitHub: https://www.githubstatus.com/api/v2`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "statuswatch %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
