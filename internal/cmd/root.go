package cmd

import (
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "opentracker",
		Short: "opentracker - daily activity report agent",
		Long:  "Tracks foreground application usage and Chrome browsing history, and generates a categorized daily activity report",
	}

	rootCmd.AddCommand(NewServiceCmd())
	rootCmd.AddCommand(NewReportCmd())
	rootCmd.AddCommand(NewStatusCmd())
	rootCmd.AddCommand(NewDoctorCmd())
	rootCmd.AddCommand(NewConfigCmd())
	rootCmd.AddCommand(NewAICmd())
	rootCmd.AddCommand(NewCleanupCmd())

	return rootCmd
}
