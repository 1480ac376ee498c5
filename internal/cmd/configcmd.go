package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"opentracker/internal/config"
)

var configConfigPath string

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Get or set configuration values",
	}
	cmd.PersistentFlags().StringVarP(&configConfigPath, "config", "c", "", "Path to config file")
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())
	return cmd
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print a single configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := config.GetValue(configConfigPath, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Validate and persist a single configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.SetValue(configConfigPath, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Saved %s\n", args[0])
			return nil
		},
	}
}
