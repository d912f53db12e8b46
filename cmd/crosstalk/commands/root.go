package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "crosstalk",
	Short: "Crosstalk - cross-widget state-synchronization bus",
	Long: `Crosstalk links independently rendered widgets through a shared
selection/filter bus, scoped by named groups and addressed by stable row
keys.

The CLI validates dataset key derivation, replays scripted interaction
scenarios against a document's bus, and serves the bus to remote widget
adapters over websockets.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}
