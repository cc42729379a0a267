// Package cmd implements the taskboard command line.
package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree. Running it without a subcommand serves the API.
func NewRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "taskboard",
		Short: "Task assignment and workload engine",
		Long: `taskboard serves the task assignment API: task lifecycle, worker
workload tracking, candidate matching and change notifications.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configFile)
		},
	}

	// Global flags
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (environment variables take precedence)")

	root.AddCommand(
		newServeCmd(&configFile),
		newMigrateCmd(&configFile),
		newReconcileCmd(&configFile),
		newCreateAdminCmd(&configFile),
	)
	return root
}

// Execute loads .env, if present, and runs the root command
func Execute() error {
	_ = godotenv.Load()
	return NewRootCmd().Execute()
}
