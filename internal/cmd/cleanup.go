package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"opentracker/internal/config"
	"opentracker/internal/storage"
)

var cleanupConfigPath string

func NewCleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete activity samples older than the retention window",
		RunE:  runCleanup,
	}
	cmd.Flags().StringVarP(&cleanupConfigPath, "config", "c", "", "Path to config file")
	return cmd
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cleanupConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open activity store: %w", err)
	}
	defer db.Close()

	deleted, err := db.CleanupOldActivities(cfg.Storage.RetentionDays)
	if err != nil {
		return fmt.Errorf("failed to cleanup old activities: %w", err)
	}

	fmt.Fprintf(os.Stdout, "Cleanup completed. %d samples older than %d days removed.\n", deleted, cfg.Storage.RetentionDays)
	return nil
}
