package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "conclave",
	Short: "Multi-agent deliberation pipeline",
	Long: `Conclave sends one question to a council of AI CLI agents in parallel,
has them rank each other's anonymized answers, and asks a chairman agent
to synthesize the final answer.

Modes:
- compete: answer, peer-rank, then synthesize with the rankings in view
- merge:   answer, then merge everything without ranking

Interrupted runs leave a checkpoint and resume where they stopped.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}
