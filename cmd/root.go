// Package cmd defines the CLI commands for the carcrawler executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "carcrawler",
		Short: "Background crawler for stock-photo image resources",
		Long: `carcrawler ingests image metadata and files from a stock-photo
provider, deduplicates them against the resource catalog, and tracks every
item through its download lifecycle.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file")
	cmd.AddCommand(newCrawlCmd())
	return cmd
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
