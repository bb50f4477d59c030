// Package cli implements the sendwatch command line: submission,
// the approval queue, and the privileged policy controls.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "sendwatch",
	Short: "Approval gateway for autonomous outbound actions",
	Long:  "Governs every outbound action an autonomous agent proposes — messages, queries, data changes. Frequency safeguards, content risk rules, and a kill-switch decide what sends, what queues, and what blocks. Everything is audited.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.sendwatch/config.yaml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
