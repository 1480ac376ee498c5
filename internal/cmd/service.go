package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"opentracker/internal/api"
	"opentracker/internal/category"
	"opentracker/internal/collector"
	"opentracker/internal/config"
	"opentracker/internal/logger"
	"opentracker/internal/scheduler"
	"opentracker/internal/storage"
	"opentracker/internal/task"
)

var serviceConfigPath string

func NewServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Run the collector, report scheduler and API server in the foreground",
		RunE:  runService,
	}
	cmd.Flags().StringVarP(&serviceConfigPath, "config", "c", "", "Path to config file")
	return cmd
}

func runService(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serviceConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Storage.EnsureDBPath(); err != nil {
		return fmt.Errorf("failed to create db path: %w", err)
	}
	if err := cfg.Report.EnsureDir(); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := cfg.Storage.EnsureCategoriesFile(); err != nil {
		return fmt.Errorf("failed to bootstrap categories file: %w", err)
	}

	rules, err := category.LoadRules(cfg.Storage.CategoriesPath)
	if err != nil {
		return fmt.Errorf("failed to load category rules: %w", err)
	}

	log := logger.GetLogger()
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Storage.CleanupCron != "" {
		cleanupSched := scheduler.NewCronScheduler(cfg.Storage.CleanupCron)
		if err := cleanupSched.Start(func() error {
			db, err := storage.Open(cfg.Storage.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()
			deleted, err := db.CleanupOldActivities(cfg.Storage.RetentionDays)
			if err != nil {
				return err
			}
			log.Infof("retention cleanup removed %d activity rows", deleted)
			return nil
		}); err != nil {
			return fmt.Errorf("failed to start cleanup scheduler: %w", err)
		}
		defer cleanupSched.Stop()
	}

	pipeline := task.NewPipeline(cfg)
	dailyTask := func(ctx context.Context, date time.Time) error {
		_, _, err := pipeline.Run(ctx, date)
		return err
	}
	scheduleProvider := func() (string, error) {
		reportTime, err := config.CurrentReportTime(serviceConfigPath)
		if err != nil {
			return "", err
		}
		return scheduler.CronFromReportTime(reportTime)
	}

	// The first loop to return, for any reason, takes the whole service
	// down with it.
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return collector.New(cfg, rules, &collector.OSAScriptSampler{}).Run(groupCtx)
	})
	group.Go(func() error {
		return scheduler.RunDaily(groupCtx, scheduleProvider, dailyTask)
	})
	group.Go(func() error {
		return api.NewServer(cfg, serviceConfigPath).Run(groupCtx)
	})

	log.Info("opentracker service started. Press Ctrl+C to stop.")

	err = group.Wait()
	if err != nil && ctx.Err() != nil {
		log.Info("opentracker service stopped")
		return nil
	}
	return err
}
