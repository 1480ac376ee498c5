package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"opentracker/internal/config"
	"opentracker/internal/storage"
	"opentracker/internal/task"
)

var (
	reportConfigPath string
	reportDate       string
)

func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate the daily report for a single date",
		RunE:  runReport,
	}
	cmd.Flags().StringVarP(&reportConfigPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVarP(&reportDate, "date", "d", "", "Target date (YYYY-MM-DD, default today)")
	return cmd
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(reportConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Report.EnsureDir(); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := cfg.Storage.EnsureCategoriesFile(); err != nil {
		return fmt.Errorf("failed to bootstrap categories file: %w", err)
	}

	date := time.Now()
	if reportDate != "" {
		date, err = time.ParseInLocation(storage.DateLayout, reportDate, time.Local)
		if err != nil {
			return fmt.Errorf("invalid date format: %s (example: 2026-02-18)", reportDate)
		}
	}

	daily, saved, err := task.NewPipeline(cfg).Run(cmd.Context(), date)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Report generated: %s\n", daily.Date)
	fmt.Fprintf(os.Stdout, "- Markdown: %s\n", saved.MarkdownPath)
	fmt.Fprintf(os.Stdout, "- JSON: %s\n", saved.JSONPath)
	return nil
}
