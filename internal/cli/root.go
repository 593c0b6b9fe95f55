// Package cli implements the recollect command line.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "recollect",
	Short: "Tiered conversational memory for companion agents",
	Long:  "Recollect manages what a conversational session remembers, how strongly, and for how long: a working tier for the active exchange, a short-term session buffer, a decay-weighted long-term tier, and a patient profile that survives resets.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}
