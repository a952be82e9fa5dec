// Package cmd implements the totpctl operator commands.
package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"totpattend/internal/config"
)

var (
	okFmt   = color.New(color.FgGreen, color.Bold).SprintFunc()
	infoFmt = color.New(color.FgYellow).SprintFunc()
	dimFmt  = color.New(color.Faint).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:   "totpctl",
	Short: "Operator tools for the TOTP attendance service",
	Long: `totpctl helps operators check the attendance service by hand.

It prints the code a roster secret produces at a given time and mints
admin tokens for the admin endpoints.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.LoadDotEnv()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
