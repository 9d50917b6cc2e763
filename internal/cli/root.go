// Package cli provides the command-line interface for docharvester.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/docharvester/docharvester-go/internal/client"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	serverURL string

	api *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "docharvester",
	Short: "Documentation coverage and processing toolkit",
	Long: `DocHarvester chunks and classifies project documentation into lenses,
scores coverage against per-lens requirements, and fills the gaps with
generated content.

All commands talk to a running docharvester-server instance.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		api = client.New(serverURL)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (default $DOCHARVESTER_SERVER_URL or http://localhost:8080)")

	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(coverageCmd)
	rootCmd.AddCommand(requirementsCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(wikiCmd)
	rootCmd.AddCommand(searchCmd)
}
