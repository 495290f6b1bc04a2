package main

import (
	"github.com/spf13/cobra"
)

const (
	exitSuccess = 0
	exitError   = 1
)

// flagConfig is set by the --config flag.
var flagConfig string

var rootCmd = &cobra.Command{
	Use:   "taskifyd",
	Short: "Taskify user and task management service",
	Long: `Taskifyd serves the task management API and runs the background
repair worker. The verify and export subcommands operate on the same
dataset without starting the server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return applyFileConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file with environment-style keys (default: ./taskifyd.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(versionCmd)
}
