package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "seven-server",
	Short: "Seven assistant backend server",
	Long:  "Seven backend — conversation orchestration with topic tracking, correction learning, and a knowledge base.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Missing .env is fine; the environment still applies.
		_ = godotenv.Load()
	},
}

func Execute() error {
	return rootCmd.Execute()
}
