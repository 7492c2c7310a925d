package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	logLevel  string // Log verbosity level
	storeKind string // Checkpoint store backend
	dbPath    string // SQLite checkpoint database path
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "pathway-sim",
	Short: "Discrete-event simulator for spiking neural circuits",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
}

// addStoreFlags registers the checkpoint store flags on cmd.
func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&storeKind, "store", "sqlite", "Checkpoint store backend (memory, sqlite)")
	cmd.Flags().StringVar(&dbPath, "db", "pathway-sim.db", "SQLite checkpoint database path")
}
