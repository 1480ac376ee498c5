package report

import (
	"strings"
	"testing"
	"time"

	"opentracker/internal/storage"
)

var reportDate = time.Date(2026, 8, 28, 0, 0, 0, 0, time.Local)

func activity(app, cat string, seconds int64) *storage.ActivityRecord {
	return &storage.ActivityRecord{AppName: app, Category: cat, DurationSec: seconds}
}

func visit(domain, cat string, seconds int64) *storage.ChromeVisit {
	return &storage.ChromeVisit{Domain: domain, Category: cat, DurationSec: seconds}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{3661, "1h 1m 1s"},
		{3660, "1h 1m"},
		{3600, "1h 0m"},
		{65, "1m 5s"},
		{60, "1m"},
		{5, "5s"},
		{0, "0s"},
		{-10, "0s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.seconds); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestBuildDailyReportCategoryMapsAlwaysComplete(t *testing.T) {
	report := BuildDailyReport(reportDate, nil, nil)

	maps := map[string]map[string]int64{
		"categories_seconds":        report.CategoriesSeconds,
		"categories":                report.Categories,
		"chrome_categories_seconds": report.ChromeCategoriesSeconds,
		"chrome_categories":         report.ChromeCategories,
	}
	for name, m := range maps {
		if len(m) != 7 {
			t.Errorf("%s has %d keys, want all 7 canonical categories", name, len(m))
		}
		for key, value := range m {
			if value != 0 {
				t.Errorf("%s[%q] = %d, want 0 for empty input", name, key, value)
			}
		}
	}
	if report.Date != "2026-08-28" {
		t.Errorf("report date = %q", report.Date)
	}
}

func TestBuildDailyReportTotals(t *testing.T) {
	activities := []*storage.ActivityRecord{
		activity("Code", "development", 3600),
		activity("Code", "development", 300),
		activity("Slack", "communication", 900),
		activity("Broken", "other", -50), // clamped
	}
	visits := []*storage.ChromeVisit{
		visit("github.com", "development", 1200),
		visit("youtube.com", "entertainment", 600),
	}

	report := BuildDailyReport(reportDate, activities, visits)

	if report.TotalSeconds != 4800 || report.ActiveWindowSeconds != 4800 {
		t.Errorf("activity totals = %d/%d, want 4800", report.TotalSeconds, report.ActiveWindowSeconds)
	}
	if report.TotalMinutes != 80 {
		t.Errorf("TotalMinutes = %d, want 80", report.TotalMinutes)
	}
	if report.ChromeHistorySeconds != 1800 || report.ChromeHistoryMinutes != 30 {
		t.Errorf("chrome totals = %d/%d, want 1800/30", report.ChromeHistorySeconds, report.ChromeHistoryMinutes)
	}
	if report.CategoriesSeconds["development"] != 3900 {
		t.Errorf("development seconds = %d, want 3900", report.CategoriesSeconds["development"])
	}
	if report.Categories["development"] != 65 {
		t.Errorf("development minutes = %d, want 65", report.Categories["development"])
	}
	if report.ChromeCategoriesSeconds["entertainment"] != 600 {
		t.Errorf("chrome entertainment seconds = %d", report.ChromeCategoriesSeconds["entertainment"])
	}
	if len(report.TopApps) != 3 || report.TopApps[0].Name != "Code" || report.TopApps[0].Seconds != 3900 {
		t.Errorf("top apps = %+v", report.TopApps)
	}
}

func TestTopNMetricsTieBreaksByName(t *testing.T) {
	metrics := topNMetrics(map[string]int64{
		"b.com": 120,
		"a.com": 120,
		"c.com": 300,
	}, 10)

	want := []string{"c.com", "a.com", "b.com"}
	for i, name := range want {
		if metrics[i].Name != name {
			t.Errorf("rank %d = %q, want %q", i, metrics[i].Name, name)
		}
	}
	if metrics[1].Minutes != 2 {
		t.Errorf("minutes = %d, want 2", metrics[1].Minutes)
	}
}

func TestTopNMetricsLimits(t *testing.T) {
	source := make(map[string]int64)
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		source[name] = 60
	}
	if got := len(topNMetrics(source, 5)); got != 5 {
		t.Errorf("top-5 returned %d entries", got)
	}
}

func TestEntertainmentAnomalyBoundary(t *testing.T) {
	// 89m59s stays quiet, 90m00s flags.
	quiet := BuildDailyReport(reportDate, []*storage.ActivityRecord{
		activity("TV", "entertainment", 90*60-1),
		activity("Code", "development", 3600),
	}, nil)
	for _, anomaly := range quiet.Anomalies {
		if strings.Contains(anomaly, "Entertainment") {
			t.Errorf("entertainment anomaly fired below threshold: %q", anomaly)
		}
	}

	flagged := BuildDailyReport(reportDate, []*storage.ActivityRecord{
		activity("TV", "entertainment", 90*60),
		activity("Code", "development", 3600),
	}, nil)
	if len(flagged.Anomalies) == 0 || !strings.Contains(flagged.Anomalies[0], "Entertainment usage is high: 1h 30m") {
		t.Errorf("expected entertainment anomaly first, got %v", flagged.Anomalies)
	}
}

func TestAnomalyOrderAndContents(t *testing.T) {
	activities := []*storage.ActivityRecord{
		activity("TV", "entertainment", 2*3600), // 1: entertainment >= 90m
	}
	visits := []*storage.ChromeVisit{
		visit("youtube.com", "entertainment", 3*3600), // 2: youtube >= 60m, 4: chrome > active
	}

	report := BuildDailyReport(reportDate, activities, visits)

	if len(report.Anomalies) != 3 {
		t.Fatalf("expected 3 anomalies, got %v", report.Anomalies)
	}
	if !strings.Contains(report.Anomalies[0], "Entertainment usage is high") {
		t.Errorf("anomaly[0] = %q", report.Anomalies[0])
	}
	if !strings.Contains(report.Anomalies[1], "YouTube session was unusually long") {
		t.Errorf("anomaly[1] = %q", report.Anomalies[1])
	}
	if !strings.Contains(report.Anomalies[2], "overlap across tabs") {
		t.Errorf("anomaly[2] = %q", report.Anomalies[2])
	}
}

func TestLowActivityAnomaly(t *testing.T) {
	report := BuildDailyReport(reportDate, []*storage.ActivityRecord{
		activity("Code", "development", 59*60),
	}, nil)
	if len(report.Anomalies) != 1 || report.Anomalies[0] != "Total tracked time is below 1 hour" {
		t.Errorf("anomalies = %v", report.Anomalies)
	}
}

func TestRenderMarkdown(t *testing.T) {
	activities := []*storage.ActivityRecord{
		activity("Code", "development", 3600),
		activity("Chrome", "research", 1800),
	}
	visits := []*storage.ChromeVisit{
		visit("github.com", "development", 600),
	}

	report := BuildDailyReport(reportDate, activities, visits)
	markdown := RenderMarkdown(report)

	for _, want := range []string{
		"# Daily Activity Report - 2026-08-28",
		"- Active window tracked time: 1h 30m",
		"- Productivity ratio (development + research): 100%",
		"- Most used app: Code (1h 0m)",
		"| Development | 1h 0m | 67% |",
		"| SNS | 0s | 0% |",
		"1. Code - 1h 0m",
		"1. github.com - 10m",
	} {
		if !strings.Contains(markdown, want) {
			t.Errorf("markdown missing %q\n%s", want, markdown)
		}
	}
}

func TestRenderMarkdownNoAnomalies(t *testing.T) {
	report := BuildDailyReport(reportDate, []*storage.ActivityRecord{
		activity("Code", "development", 2 * 3600),
	}, nil)
	if len(report.Anomalies) != 0 {
		t.Fatalf("unexpected anomalies: %v", report.Anomalies)
	}
	if !strings.Contains(RenderMarkdown(report), "- No notable anomaly detected") {
		t.Error("missing explicit no-anomaly line")
	}
}

func TestSaveReportFilesOverwrites(t *testing.T) {
	dir := t.TempDir()
	report := BuildDailyReport(reportDate, []*storage.ActivityRecord{
		activity("Code", "development", 2 * 3600),
	}, nil)

	first, err := SaveReportFiles(report, dir)
	if err != nil {
		t.Fatalf("SaveReportFiles() error = %v", err)
	}
	second, err := SaveReportFiles(report, dir)
	if err != nil {
		t.Fatalf("SaveReportFiles() second error = %v", err)
	}
	if first.MarkdownPath != second.MarkdownPath || first.JSONPath != second.JSONPath {
		t.Errorf("paths changed between runs: %+v vs %+v", first, second)
	}
	if !strings.HasSuffix(first.MarkdownPath, "2026-08-28.md") {
		t.Errorf("markdown path = %q", first.MarkdownPath)
	}
}
