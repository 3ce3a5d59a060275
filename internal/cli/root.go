// Package cli holds the pioneer command tree.
package cli

import (
	"github.com/spf13/cobra"
)

// Build metadata, set at build time via ldflags.
var (
	Version   = "0.0.1"
	BuildDate = "unknown"
)

// AppName prefixes log files and is the cobra root name.
const AppName = "pioneer"

// NewRootCommand creates the root command for the pioneer CLI.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   AppName,
		Short: "Pioneer eGUI timeline runtime",
		Long: `Runs the widget state machine with its event recorder and timed playback,
driven by a scripting host and a websocket ingest server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewVersionCommand())
	return cmd
}
