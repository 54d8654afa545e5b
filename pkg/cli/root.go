// Package cli implements the cdml command-line interface.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	configPath  string
	noColor     bool
	maxProblems int
)

var rootCmd = &cobra.Command{
	Use:           "cdml",
	Short:         "cdml - compiler front end for CDML data models",
	Long:          "cdml loads CDML interchange documents, resolves every reference\nand reports the collected diagnostics.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to cdml.toml (default: ./cdml.toml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().IntVar(&maxProblems, "max-problems", 0, "truncate output after this many problems (0 = unlimited)")
}

// Execute runs the root command. The returned error carries the exit
// decision; diagnostics were already printed.
func Execute() error {
	return rootCmd.Execute()
}
