// Package cmd implements the dormchat command-line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dormchat",
	Short: "dormchat - dormitory support chatbot backend",
	Long: `dormchat is a retrieval-augmented chat backend for dormitory support.

It serves chat sessions over WebSocket, answers questions from an indexed
document corpus, and governs connections with capacity limits, per-client
rate limiting, and idle-session eviction.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
