// Command racelens groups photographs of the same subject by outfit/bib,
// either against a curated roster (database mode) or by online visual
// clustering (auto-cluster mode). See internal/engine for the pipeline and
// internal/config for the resolved settings every subcommand shares.
package main

import (
	"github.com/spf13/cobra"

	"github.com/racelens/organizer/internal/logging"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "racelens",
	Short: "Organize race photos by subject",
	Long: `racelens groups photographs of the same subject into per-subject
directories, using either a curated roster (database mode) or fully
automatic visual clustering (auto-cluster mode).

Examples:
  # Match against a roster
  racelens organize ./incoming -o ./organized --mode database

  # Cluster without a roster
  racelens organize ./incoming -o ./organized --mode auto-cluster

  # Reverse the last run
  racelens undo -o ./organized`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.SetLevel(logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	rootCmd.AddCommand(organizeCmd)
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(databaseCmd)
}
