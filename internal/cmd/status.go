package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"opentracker/internal/config"
	"opentracker/internal/storage"
)

var statusConfigPath string

func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show collection and report status",
		RunE:  runStatus,
	}
	cmd.Flags().StringVarP(&statusConfigPath, "config", "c", "", "Path to config file")
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(statusConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open activity store: %w", err)
	}
	defer db.Close()

	todayActivities, err := db.ActivitiesForDate(time.Now())
	if err != nil {
		return fmt.Errorf("failed to query today's activities: %w", err)
	}
	lastCollected, err := db.LatestActivityTimestamp()
	if err != nil {
		return fmt.Errorf("failed to query last collection time: %w", err)
	}
	latestReport, err := db.LatestReportMeta()
	if err != nil {
		return fmt.Errorf("failed to query latest report: %w", err)
	}

	fmt.Fprintf(os.Stdout, "opentracker Status\n")
	fmt.Fprintf(os.Stdout, "==================\n\n")
	fmt.Fprintf(os.Stdout, "Today's activity samples: %d\n", len(todayActivities))

	if lastCollected != nil {
		fmt.Fprintf(os.Stdout, "Last sample collected: %s\n", time.Unix(*lastCollected, 0).Format("2006-01-02 15:04:05"))
	} else {
		fmt.Fprintf(os.Stdout, "Last sample collected: never\n")
	}

	if latestReport != nil {
		fmt.Fprintf(os.Stdout, "Latest report: %s (%s)\n", latestReport.Date, latestReport.MarkdownPath)
	} else {
		fmt.Fprintf(os.Stdout, "Latest report: none\n")
	}

	fmt.Fprintf(os.Stdout, "Report time: %s\n", cfg.Report.Time)
	fmt.Fprintf(os.Stdout, "API port: %d\n", cfg.API.Port)
	return nil
}
