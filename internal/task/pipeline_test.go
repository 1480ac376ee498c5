package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"opentracker/internal/config"
	"opentracker/internal/storage"
)

const categoriesFixture = `{
  "apps": {"code": "development"},
  "domains": {"github.com": "development", "youtube.com": "entertainment"}
}`

func writeChromeFixture(t *testing.T, profileDir string, date time.Time) {
	t.Helper()
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		t.Fatalf("failed to create profile dir: %v", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(profileDir, "History"))
	if err != nil {
		t.Fatalf("failed to create history fixture: %v", err)
	}
	defer db.Close()

	for _, statement := range []string{
		`CREATE TABLE urls (id INTEGER PRIMARY KEY, url TEXT NOT NULL)`,
		`CREATE TABLE visits (id INTEGER PRIMARY KEY, url INTEGER NOT NULL, visit_time INTEGER NOT NULL, visit_duration INTEGER)`,
	} {
		if _, err := db.Exec(statement); err != nil {
			t.Fatalf("failed to create fixture schema: %v", err)
		}
	}

	visitTime := (date.Add(12*time.Hour).Unix() + 11644473600) * 1_000_000
	if _, err := db.Exec("INSERT INTO urls (id, url) VALUES (1, 'https://github.com/golang/go')"); err != nil {
		t.Fatalf("failed to insert url: %v", err)
	}
	if _, err := db.Exec("INSERT INTO visits (url, visit_time, visit_duration) VALUES (1, ?, 600000000)", visitTime); err != nil {
		t.Fatalf("failed to insert visit: %v", err)
	}
}

func pipelineFixture(t *testing.T) (*Pipeline, *config.Config, time.Time) {
	t.Helper()
	root := t.TempDir()
	date := time.Date(2026, 8, 28, 0, 0, 0, 0, time.Local)

	categoriesPath := filepath.Join(root, "categories.json")
	if err := os.WriteFile(categoriesPath, []byte(categoriesFixture), 0o644); err != nil {
		t.Fatalf("failed to write categories fixture: %v", err)
	}
	writeChromeFixture(t, filepath.Join(root, "chrome", "Default"), date)

	cfg := &config.Config{
		Collector: config.CollectorConfig{
			PollingSeconds: 300,
			ChromeProfiles: []string{"Default"},
		},
		Report: config.ReportConfig{Dir: filepath.Join(root, "reports")},
		Storage: config.StorageConfig{
			DBPath:         filepath.Join(root, "db", "activity.db"),
			CategoriesPath: categoriesPath,
		},
	}

	pipeline := NewPipeline(cfg)
	pipeline.profilesRoot = filepath.Join(root, "chrome")
	return pipeline, cfg, date
}

func seedActivities(t *testing.T, cfg *config.Config, date time.Time) {
	t.Helper()
	db, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()

	samples := []struct {
		app      string
		category string
		seconds  int64
	}{
		{"Code", "development", 3600},
		{"Code", "development", 300},
		{"Slack", "communication", 900},
	}
	base := date.Add(10 * time.Hour)
	for i, s := range samples {
		record := storage.NewActivityRecord(base.Add(time.Duration(i)*time.Minute).Unix(), s.app, "", s.category, s.seconds)
		if err := db.InsertActivity(record); err != nil {
			t.Fatalf("failed to seed activity: %v", err)
		}
	}
}

func TestPipelineRunBuildsAndStoresReport(t *testing.T) {
	pipeline, cfg, date := pipelineFixture(t)
	seedActivities(t, cfg, date)

	daily, saved, err := pipeline.Run(context.Background(), date)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if daily.Date != "2026-08-28" {
		t.Errorf("report date = %q", daily.Date)
	}
	if daily.ActiveWindowSeconds != 4800 {
		t.Errorf("active seconds = %d, want 4800", daily.ActiveWindowSeconds)
	}
	if daily.ChromeHistorySeconds != 600 {
		t.Errorf("chrome seconds = %d, want 600", daily.ChromeHistorySeconds)
	}
	if daily.ChromeCategoriesSeconds["development"] != 600 {
		t.Errorf("chrome development seconds = %d", daily.ChromeCategoriesSeconds["development"])
	}

	for _, path := range []string{saved.MarkdownPath, saved.JSONPath} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("report artifact missing: %v", err)
		}
	}

	db, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer db.Close()

	meta, err := db.ReportMeta(date)
	if err != nil || meta == nil {
		t.Fatalf("report meta = (%v, %v), want stored row", meta, err)
	}
	if meta.MarkdownPath != saved.MarkdownPath {
		t.Errorf("meta markdown path = %q, want %q", meta.MarkdownPath, saved.MarkdownPath)
	}
}

func TestPipelineRunIsIdempotent(t *testing.T) {
	pipeline, cfg, date := pipelineFixture(t)
	seedActivities(t, cfg, date)

	first, firstSaved, err := pipeline.Run(context.Background(), date)
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	second, _, err := pipeline.Run(context.Background(), date)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if first.ChromeHistorySeconds != second.ChromeHistorySeconds {
		t.Errorf("visit totals differ across runs: %d vs %d",
			first.ChromeHistorySeconds, second.ChromeHistorySeconds)
	}

	db, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer db.Close()

	visits, err := db.ChromeVisitsForDate(date)
	if err != nil {
		t.Fatalf("ChromeVisitsForDate() error = %v", err)
	}
	if len(visits) != 1 {
		t.Errorf("stored visit rows = %d, want 1 (delete-then-insert, no duplication)", len(visits))
	}

	content, err := os.ReadFile(firstSaved.JSONPath)
	if err != nil {
		t.Fatalf("failed to read report JSON: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(content, &decoded); err != nil {
		t.Fatalf("report JSON does not parse: %v", err)
	}
	for _, field := range []string{
		"date", "generated_at", "total_seconds", "active_window_seconds",
		"chrome_history_seconds", "categories_seconds", "categories",
		"chrome_categories_seconds", "chrome_categories",
		"top_apps", "top_domains", "anomalies",
	} {
		if _, ok := decoded[field]; !ok {
			t.Errorf("report JSON missing field %q", field)
		}
	}
}
