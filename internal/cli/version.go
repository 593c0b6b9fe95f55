package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// VersionString returns the version for display and the API health
// endpoint.
func VersionString() string {
	return Version
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the recollect version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("recollect", VersionString())
	},
}
