// Package cmd implements the reactorctl command line.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath points at an optional runtime configuration file.
	configPath string

	rootCmd = &cobra.Command{
		Use:           "reactorctl",
		Short:         "Inspect reactive state scenarios",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
)

// Execute runs reactorctl and exits with non-zero status on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to runtime configuration file")
	rootCmd.AddCommand(newRunCmd())
}
