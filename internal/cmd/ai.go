package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"opentracker/internal/config"
	"opentracker/internal/enrich"
)

var aiConfigPath string

func NewAICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ai",
		Short: "AI reclassification utilities",
	}
	cmd.PersistentFlags().StringVarP(&aiConfigPath, "config", "c", "", "Path to config file")
	cmd.AddCommand(newAITestCmd())
	return cmd
}

func newAITestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Check AI API connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(aiConfigPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			reply, err := enrich.NewClient(cfg.AI).TestConnection(cmd.Context())
			if err != nil {
				return fmt.Errorf("AI connectivity check failed: %w", err)
			}

			fmt.Fprintf(os.Stdout, "AI API reachable (model %s)\n", cfg.AI.Model)
			fmt.Fprintf(os.Stdout, "Reply: %s\n", reply)
			return nil
		},
	}
}
