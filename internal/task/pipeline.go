package task

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"opentracker/internal/category"
	"opentracker/internal/config"
	"opentracker/internal/enrich"
	"opentracker/internal/history"
	"opentracker/internal/logger"
	"opentracker/internal/report"
	"opentracker/internal/storage"
)

// Pipeline turns one day's collected samples and browsing history into
// stored report artifacts.
type Pipeline struct {
	cfg *config.Config

	// Overrides the Chrome profile root when non-empty; tests point it
	// at fixture directories.
	profilesRoot string
}

func NewPipeline(cfg *config.Config) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// Run executes the full daily pipeline for one date: load category rules,
// extract browsing history, reclassify (best effort), replace the stored
// visit rows, aggregate, persist artifacts, notify. Re-running for the
// same date fully supersedes the prior run. Callers must serialize runs
// for the same date.
func (p *Pipeline) Run(ctx context.Context, date time.Time) (*report.DailyReport, *report.SavedReport, error) {
	log := logger.GetLogger()
	dateStr := date.Format(storage.DateLayout)

	rules, err := category.LoadRules(p.cfg.Storage.CategoriesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load category rules for %s: %w", dateStr, err)
	}

	extractor := history.NewExtractor(p.cfg.Collector.ChromeProfiles, rules)
	if p.profilesRoot != "" {
		extractor.ProfilesRoot = p.profilesRoot
	}
	visits, err := extractor.VisitsForDate(date)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to extract browsing history for %s: %w", dateStr, err)
	}

	enrichment := enrich.NewClient(p.cfg.AI).EnrichVisits(ctx, date, visits)

	db, err := storage.Open(p.cfg.Storage.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open activity store for %s: %w", dateStr, err)
	}
	defer db.Close()

	if err := db.ReplaceChromeVisitsForDate(date, enrichment.Visits); err != nil {
		return nil, nil, fmt.Errorf("failed to store browsing visits for %s: %w", dateStr, err)
	}

	activities, err := db.ActivitiesForDate(date)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load activities for %s: %w", dateStr, err)
	}
	storedVisits, err := db.ChromeVisitsForDate(date)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load browsing visits for %s: %w", dateStr, err)
	}

	daily := report.BuildDailyReport(date, activities, storedVisits)
	daily.Anomalies = appendInsights(daily.Anomalies, enrichment.Insights)

	saved, err := report.SaveReportFiles(daily, p.cfg.Report.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to save report artifacts for %s: %w", dateStr, err)
	}

	if err := db.UpsertReportMeta(date, time.Now().Unix(), saved.MarkdownPath, saved.JSONPath); err != nil {
		return nil, nil, fmt.Errorf("failed to record report metadata for %s: %w", dateStr, err)
	}

	if p.cfg.Report.Notify {
		notifyReportReady(daily.Date, saved.MarkdownPath)
	}

	log.Infof("daily report generated for %s: %s", daily.Date, saved.MarkdownPath)
	return daily, saved, nil
}

// appendInsights appends AI insights after the rule-based anomalies,
// prefixed so readers can tell the sources apart, deduplicating across
// the combined list.
func appendInsights(anomalies, insights []string) []string {
	seen := make(map[string]bool, len(anomalies)+len(insights))
	combined := make([]string, 0, len(anomalies)+len(insights))

	appendUnique := func(entry string) {
		if !seen[entry] {
			seen[entry] = true
			combined = append(combined, entry)
		}
	}

	for _, anomaly := range anomalies {
		appendUnique(anomaly)
	}
	for _, insight := range insights {
		appendUnique("AI insight: " + insight)
	}
	return combined
}

// notifyReportReady posts a desktop notification via terminal-notifier.
// Notification failure never fails the pipeline.
func notifyReportReady(date, markdownPath string) {
	err := exec.Command("terminal-notifier",
		"-title", "opentracker report ready",
		"-message", fmt.Sprintf("Report %s is ready.", date),
		"-open", "file://"+markdownPath,
	).Run()
	if err != nil {
		logger.GetLogger().Warnf("failed to send report notification: %v", err)
	}
}
