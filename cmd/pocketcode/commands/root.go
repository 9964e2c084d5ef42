// Package commands provides the CLI commands for pocketcode.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	printLogs bool
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "pocketcode",
	Short: "Pocketcode - mobile-friendly client for opencode servers",
	Long: `Pocketcode is a lightweight client for opencode coding-agent servers.
It keeps a registry of servers, caches session data locally, and follows
agent activity in real time over the server's event stream.

Run 'pocketcode' with no arguments to open the interactive UI.`,
	Version: Version,
	RunE:    runRun,
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr instead of the log file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG|INFO|WARN|ERROR)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("pocketcode %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(debugCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
