package collector

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"opentracker/internal/category"
	"opentracker/internal/config"
	"opentracker/internal/logger"
	"opentracker/internal/scheduler"
	"opentracker/internal/storage"
)

const frontmostAppScript = `tell application "System Events" to get name of first application process whose frontmost is true`
const frontWindowScript = `tell application "System Events" to tell (first application process whose frontmost is true) to get name of front window`

// WindowSample is one observation of the foreground application.
type WindowSample struct {
	RecordedAt  int64
	AppName     string
	WindowTitle string
}

// Sampler produces foreground-window samples. The production sampler
// shells out to osascript; tests substitute their own.
type Sampler interface {
	Sample() (*WindowSample, error)
}

// OSAScriptSampler reads the frontmost application through macOS
// System Events. A missing window title is not an error; a missing
// application name degrades to "Unknown".
type OSAScriptSampler struct{}

func (s *OSAScriptSampler) Sample() (*WindowSample, error) {
	appName, err := runOSAScript(frontmostAppScript)
	if err != nil || appName == "" {
		appName = "Unknown"
	}

	// Window titles require accessibility permission; treat failure as
	// an absent title rather than a failed sample.
	windowTitle, _ := runOSAScript(frontWindowScript)

	return &WindowSample{
		RecordedAt:  time.Now().Unix(),
		AppName:     appName,
		WindowTitle: windowTitle,
	}, nil
}

// WindowAccessAvailable reports whether window titles are readable,
// which requires the accessibility permission grant.
func (s *OSAScriptSampler) WindowAccessAvailable() bool {
	title, err := runOSAScript(frontWindowScript)
	return err == nil && title != ""
}

func runOSAScript(script string) (string, error) {
	output, err := exec.Command("osascript", "-e", script).Output()
	if err != nil {
		return "", fmt.Errorf("osascript failed: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// Collector samples the foreground window at a fixed interval and
// persists each sample as one activity record.
type Collector struct {
	cfg     *config.Config
	rules   *category.Rules
	sampler Sampler
}

func New(cfg *config.Config, rules *category.Rules, sampler Sampler) *Collector {
	return &Collector{cfg: cfg, rules: rules, sampler: sampler}
}

// Run blocks until ctx is cancelled. Sample or storage failures are
// logged and the loop continues; only cancellation ends it.
func (c *Collector) Run(ctx context.Context) error {
	log := logger.GetLogger()
	interval := time.Duration(c.cfg.Collector.PollingSeconds) * time.Second

	log.Infof("activity collector started (polling every %s)", interval)

	ticker := scheduler.NewFixedRateScheduler(interval)
	if err := ticker.Start(func() error {
		if err := c.collectOnce(); err != nil {
			log.Errorf("failed to store activity sample: %v", err)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("failed to start collector ticker: %w", err)
	}
	defer ticker.Stop()

	<-ctx.Done()
	return ctx.Err()
}

func (c *Collector) collectOnce() error {
	sample, err := c.sampler.Sample()
	if err != nil {
		return fmt.Errorf("failed to sample foreground window: %w", err)
	}

	record := storage.NewActivityRecord(
		sample.RecordedAt,
		sample.AppName,
		sample.WindowTitle,
		c.rules.CategorizeApp(sample.AppName),
		int64(c.cfg.Collector.PollingSeconds),
	)

	db, err := storage.Open(c.cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open activity store: %w", err)
	}
	defer db.Close()

	if err := db.InsertActivity(record); err != nil {
		return err
	}

	// Retention trimming piggybacks on the sampling tick; the nightly
	// cleanup job covers periods when sampling is paused.
	if c.cfg.Storage.RetentionDays > 0 {
		if _, err := db.CleanupOldActivities(c.cfg.Storage.RetentionDays); err != nil {
			logger.GetLogger().Warnf("failed to trim old activities: %v", err)
		}
	}

	logger.GetLogger().Debugf("activity sample captured: app=%s category=%s", record.AppName, record.Category)
	return nil
}
