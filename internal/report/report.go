package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"opentracker/internal/category"
	"opentracker/internal/storage"
)

// ReportMetric is one ranked entry in the top-apps or top-domains lists.
// Minutes are integer division of seconds, never rounded up.
type ReportMetric struct {
	Name    string `json:"name"`
	Seconds int64  `json:"seconds"`
	Minutes int64  `json:"minutes"`
}

// DailyReport is the aggregated result for one calendar day. The category
// maps always contain all seven canonical categories, zero-filled when no
// data exists; consumers rely on that.
type DailyReport struct {
	Date                    string           `json:"date"`
	GeneratedAt             string           `json:"generated_at"`
	TotalSeconds            int64            `json:"total_seconds"`
	TotalMinutes            int64            `json:"total_minutes"`
	ActiveWindowSeconds     int64            `json:"active_window_seconds"`
	ActiveWindowMinutes     int64            `json:"active_window_minutes"`
	ChromeHistorySeconds    int64            `json:"chrome_history_seconds"`
	ChromeHistoryMinutes    int64            `json:"chrome_history_minutes"`
	CategoriesSeconds       map[string]int64 `json:"categories_seconds"`
	Categories              map[string]int64 `json:"categories"`
	ChromeCategoriesSeconds map[string]int64 `json:"chrome_categories_seconds"`
	ChromeCategories        map[string]int64 `json:"chrome_categories"`
	TopApps                 []ReportMetric   `json:"top_apps"`
	TopDomains              []ReportMetric   `json:"top_domains"`
	Anomalies               []string         `json:"anomalies"`
}

// SavedReport holds the file paths of one persisted report pair.
type SavedReport struct {
	MarkdownPath string
	JSONPath     string
}

// BuildDailyReport aggregates activity samples and categorized browsing
// visits into a DailyReport. Negative durations are clamped to zero.
func BuildDailyReport(date time.Time, activities []*storage.ActivityRecord, visits []*storage.ChromeVisit) *DailyReport {
	var activityTotal int64
	appSeconds := make(map[string]int64)
	activityCategorySeconds := make(map[string]int64)
	for _, activity := range activities {
		seconds := clampNonNegative(activity.DurationSec)
		activityTotal += seconds
		appSeconds[activity.AppName] += seconds
		activityCategorySeconds[activity.Category] += seconds
	}

	var domainTotal int64
	domainSeconds := make(map[string]int64)
	domainCategorySeconds := make(map[string]int64)
	for _, visit := range visits {
		seconds := clampNonNegative(visit.DurationSec)
		domainTotal += seconds
		domainSeconds[visit.Domain] += seconds
		domainCategorySeconds[visit.Category] += seconds
	}

	categoriesSeconds := canonicalMap(activityCategorySeconds, false)
	chromeCategoriesSeconds := canonicalMap(domainCategorySeconds, false)

	topApps := topNMetrics(appSeconds, 5)
	topDomains := topNMetrics(domainSeconds, 10)

	return &DailyReport{
		Date:                    date.Format(storage.DateLayout),
		GeneratedAt:             time.Now().UTC().Format(time.RFC3339),
		TotalSeconds:            activityTotal,
		TotalMinutes:            activityTotal / 60,
		ActiveWindowSeconds:     activityTotal,
		ActiveWindowMinutes:     activityTotal / 60,
		ChromeHistorySeconds:    domainTotal,
		ChromeHistoryMinutes:    domainTotal / 60,
		CategoriesSeconds:       categoriesSeconds,
		Categories:              canonicalMap(activityCategorySeconds, true),
		ChromeCategoriesSeconds: chromeCategoriesSeconds,
		ChromeCategories:        canonicalMap(domainCategorySeconds, true),
		TopApps:                 topApps,
		TopDomains:              topDomains,
		Anomalies:               detectAnomalies(categoriesSeconds, topDomains, activityTotal, domainTotal),
	}
}

// RenderMarkdown produces the human-readable report document.
func RenderMarkdown(report *DailyReport) string {
	productivitySeconds := report.CategoriesSeconds[category.Development] + report.CategoriesSeconds[category.Research]
	productivityRatio := ratioPercent(productivitySeconds, report.ActiveWindowSeconds)

	mostUsedApp := "None"
	if len(report.TopApps) > 0 {
		top := report.TopApps[0]
		mostUsedApp = fmt.Sprintf("%s (%s)", top.Name, FormatDuration(top.Seconds))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Daily Activity Report - %s\n\n", report.Date)

	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- Active window tracked time: %s\n", FormatDuration(report.ActiveWindowSeconds))
	fmt.Fprintf(&b, "- Chrome history tracked time: %s\n", FormatDuration(report.ChromeHistorySeconds))
	fmt.Fprintf(&b, "- Productivity ratio (development + research): %.0f%%\n", productivityRatio)
	fmt.Fprintf(&b, "- Most used app: %s\n\n", mostUsedApp)

	b.WriteString("## Time by Category (Active Window Tracking)\n")
	b.WriteString("| Category | Time | Ratio |\n")
	b.WriteString("|----------|------|-------|\n")
	for _, name := range category.Canonical() {
		seconds := report.CategoriesSeconds[name]
		ratio := ratioPercent(seconds, report.ActiveWindowSeconds)
		fmt.Fprintf(&b, "| %s | %s | %.0f%% |\n", category.DisplayName(name), FormatDuration(seconds), ratio)
	}

	b.WriteString("\n## Top Apps (5)\n")
	b.WriteString(listMetrics(report.TopApps))

	b.WriteString("\n\n## Top Domains (10, Chrome History)\n")
	b.WriteString(listMetrics(report.TopDomains))

	b.WriteString("\n\n## Anomalies\n")
	if len(report.Anomalies) == 0 {
		b.WriteString("- No notable anomaly detected\n")
	} else {
		for _, anomaly := range report.Anomalies {
			fmt.Fprintf(&b, "- %s\n", anomaly)
		}
	}

	return b.String()
}

// SaveReportFiles writes the Markdown and JSON artifacts for one report,
// named <date>.md and <date>.json, overwriting any earlier run's files.
func SaveReportFiles(report *DailyReport, reportDir string) (*SavedReport, error) {
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory %s: %w", reportDir, err)
	}

	markdownPath := filepath.Join(reportDir, report.Date+".md")
	jsonPath := filepath.Join(reportDir, report.Date+".json")

	if err := os.WriteFile(markdownPath, []byte(RenderMarkdown(report)), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write markdown report %s: %w", markdownPath, err)
	}

	content, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize report JSON: %w", err)
	}
	if err := os.WriteFile(jsonPath, content, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write JSON report %s: %w", jsonPath, err)
	}

	return &SavedReport{MarkdownPath: markdownPath, JSONPath: jsonPath}, nil
}

// FormatDuration renders seconds as "XhYmZs", dropping the seconds
// component when it is zero and the hours component when there are none.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	remain := seconds % 60

	switch {
	case hours > 0 && remain == 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, remain)
	case minutes > 0 && remain == 0:
		return fmt.Sprintf("%dm", minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, remain)
	default:
		return fmt.Sprintf("%ds", remain)
	}
}

func detectAnomalies(categoriesSeconds map[string]int64, topDomains []ReportMetric, activeSeconds, chromeSeconds int64) []string {
	anomalies := make([]string, 0, 4)

	if entertainment := categoriesSeconds[category.Entertainment]; entertainment >= 90*60 {
		anomalies = append(anomalies, "Entertainment usage is high: "+FormatDuration(entertainment))
	}

	for _, metric := range topDomains {
		if strings.Contains(metric.Name, "youtube.com") && metric.Seconds >= 60*60 {
			anomalies = append(anomalies, "YouTube session was unusually long: "+FormatDuration(metric.Seconds))
			break
		}
	}

	if activeSeconds < 60*60 {
		anomalies = append(anomalies, "Total tracked time is below 1 hour")
	}

	if chromeSeconds > activeSeconds && chromeSeconds > 0 {
		anomalies = append(anomalies, "Chrome history durations can overlap across tabs, so web time may exceed active window time")
	}

	return anomalies
}

func topNMetrics(source map[string]int64, n int) []ReportMetric {
	metrics := make([]ReportMetric, 0, len(source))
	for name, seconds := range source {
		seconds = clampNonNegative(seconds)
		metrics = append(metrics, ReportMetric{Name: name, Seconds: seconds, Minutes: seconds / 60})
	}

	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].Seconds != metrics[j].Seconds {
			return metrics[i].Seconds > metrics[j].Seconds
		}
		return metrics[i].Name < metrics[j].Name
	})

	if len(metrics) > n {
		metrics = metrics[:n]
	}
	return metrics
}

func listMetrics(metrics []ReportMetric) string {
	if len(metrics) == 0 {
		return "- No data"
	}
	lines := make([]string, len(metrics))
	for i, metric := range metrics {
		lines[i] = fmt.Sprintf("%d. %s - %s", i+1, metric.Name, FormatDuration(metric.Seconds))
	}
	return strings.Join(lines, "\n")
}

func canonicalMap(source map[string]int64, toMinutes bool) map[string]int64 {
	result := make(map[string]int64, 7)
	for _, name := range category.Canonical() {
		seconds := clampNonNegative(source[name])
		if toMinutes {
			result[name] = seconds / 60
		} else {
			result[name] = seconds
		}
	}
	return result
}

func ratioPercent(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func clampNonNegative(seconds int64) int64 {
	if seconds < 0 {
		return 0
	}
	return seconds
}
