package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Database wraps a SQLite connection. Handles are opened per logical
// operation and closed right after; the delete-then-insert visit
// replacement transaction is the only concurrency boundary.
type Database struct {
	db *sql.DB
}

// Open opens (creating if needed) the activity database and ensures
// the schema exists.
func Open(dbPath string) (*Database, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	d := &Database{db: db}
	if err := d.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return d, nil
}

func (d *Database) init() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS activities (
			id           TEXT PRIMARY KEY,
			recorded_at  INTEGER NOT NULL,
			app_name     TEXT NOT NULL,
			window_title TEXT,
			category     TEXT NOT NULL DEFAULT 'other',
			duration_sec INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS chrome_visits (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			date         TEXT NOT NULL,
			domain       TEXT NOT NULL,
			category     TEXT NOT NULL DEFAULT 'other',
			duration_sec INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS reports (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			date         TEXT NOT NULL UNIQUE,
			generated_at INTEGER NOT NULL,
			md_path      TEXT NOT NULL,
			json_path    TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_activities_recorded_at ON activities(recorded_at);`,
		`CREATE INDEX IF NOT EXISTS idx_chrome_visits_date ON chrome_visits(date);`,
		`CREATE INDEX IF NOT EXISTS idx_reports_date ON reports(date);`,
	}

	for _, statement := range statements {
		if _, err := d.db.Exec(statement); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// InsertActivity stores one foreground-application sample.
func (d *Database) InsertActivity(record *ActivityRecord) error {
	query := `
	INSERT INTO activities (id, recorded_at, app_name, window_title, category, duration_sec)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := d.db.Exec(query, record.ID, record.RecordedAt, record.AppName, record.WindowTitle, record.Category, record.DurationSec)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

// LatestActivityTimestamp returns the most recent sample time, or nil
// when no samples exist yet.
func (d *Database) LatestActivityTimestamp() (*int64, error) {
	var timestamp int64
	err := d.db.QueryRow(`SELECT recorded_at FROM activities ORDER BY recorded_at DESC LIMIT 1`).Scan(&timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest activity: %w", err)
	}
	return &timestamp, nil
}

// ActivitiesBetween returns samples within the inclusive epoch-second range.
func (d *Database) ActivitiesBetween(fromTs, toTs int64) ([]*ActivityRecord, error) {
	query := `
	SELECT id, recorded_at, app_name, COALESCE(window_title, ''), category, duration_sec
	FROM activities
	WHERE recorded_at >= ? AND recorded_at <= ?
	ORDER BY recorded_at ASC
	`
	rows, err := d.db.Query(query, fromTs, toTs)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	var records []*ActivityRecord
	for rows.Next() {
		var r ActivityRecord
		if err := rows.Scan(&r.ID, &r.RecordedAt, &r.AppName, &r.WindowTitle, &r.Category, &r.DurationSec); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

// ActivitiesForDate returns the samples recorded during the local
// calendar day containing date.
func (d *Database) ActivitiesForDate(date time.Time) ([]*ActivityRecord, error) {
	from, to := DayRange(date)
	return d.ActivitiesBetween(from, to)
}

// ReplaceChromeVisitsForDate atomically replaces the stored visit rows
// for one date: delete-then-insert inside a single transaction, so a
// re-run fully supersedes the prior run instead of appending.
func (d *Database) ReplaceChromeVisitsForDate(date time.Time, visits []ChromeVisit) error {
	dateStr := date.Format(DateLayout)

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM chrome_visits WHERE date = ?`, dateStr); err != nil {
		return fmt.Errorf("failed to delete existing visits: %w", err)
	}

	for _, visit := range visits {
		_, err := tx.Exec(
			`INSERT INTO chrome_visits (date, domain, category, duration_sec) VALUES (?, ?, ?, ?)`,
			dateStr, visit.Domain, visit.Category, visit.DurationSec,
		)
		if err != nil {
			return fmt.Errorf("failed to insert visit: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit visits: %w", err)
	}
	return nil
}

// ChromeVisitsForDate returns the stored visit rows for one date,
// longest durations first.
func (d *Database) ChromeVisitsForDate(date time.Time) ([]*ChromeVisit, error) {
	query := `
	SELECT id, date, domain, category, duration_sec
	FROM chrome_visits
	WHERE date = ?
	ORDER BY duration_sec DESC
	`
	rows, err := d.db.Query(query, date.Format(DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	var visits []*ChromeVisit
	for rows.Next() {
		var v ChromeVisit
		if err := rows.Scan(&v.ID, &v.Date, &v.Domain, &v.Category, &v.DurationSec); err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		visits = append(visits, &v)
	}
	return visits, rows.Err()
}

// UpsertReportMeta records (or replaces) the artifact locations for a
// generated report.
func (d *Database) UpsertReportMeta(date time.Time, generatedAt int64, mdPath, jsonPath string) error {
	query := `
	INSERT INTO reports (date, generated_at, md_path, json_path)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(date)
	DO UPDATE SET generated_at=excluded.generated_at, md_path=excluded.md_path, json_path=excluded.json_path
	`
	_, err := d.db.Exec(query, date.Format(DateLayout), generatedAt, mdPath, jsonPath)
	if err != nil {
		return fmt.Errorf("failed to upsert report metadata: %w", err)
	}
	return nil
}

// ReportMeta returns the report metadata for one date, nil when absent.
func (d *Database) ReportMeta(date time.Time) (*ReportMeta, error) {
	var meta ReportMeta
	err := d.db.QueryRow(
		`SELECT id, date, generated_at, md_path, json_path FROM reports WHERE date = ?`,
		date.Format(DateLayout),
	).Scan(&meta.ID, &meta.Date, &meta.GeneratedAt, &meta.MarkdownPath, &meta.JSONPath)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report metadata: %w", err)
	}
	return &meta, nil
}

// LatestReportMeta returns the newest report metadata, nil when no
// report has been generated yet.
func (d *Database) LatestReportMeta() (*ReportMeta, error) {
	var meta ReportMeta
	err := d.db.QueryRow(
		`SELECT id, date, generated_at, md_path, json_path FROM reports ORDER BY date DESC LIMIT 1`,
	).Scan(&meta.ID, &meta.Date, &meta.GeneratedAt, &meta.MarkdownPath, &meta.JSONPath)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest report metadata: %w", err)
	}
	return &meta, nil
}

// ListReports returns up to limit report metadata rows, newest first.
func (d *Database) ListReports(limit int) ([]*ReportMeta, error) {
	query := `
	SELECT id, date, generated_at, md_path, json_path
	FROM reports
	ORDER BY date DESC
	LIMIT ?
	`
	rows, err := d.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []*ReportMeta
	for rows.Next() {
		var meta ReportMeta
		if err := rows.Scan(&meta.ID, &meta.Date, &meta.GeneratedAt, &meta.MarkdownPath, &meta.JSONPath); err != nil {
			return nil, fmt.Errorf("failed to scan report metadata: %w", err)
		}
		reports = append(reports, &meta)
	}
	return reports, rows.Err()
}

// CleanupOldActivities deletes samples older than the retention window
// and returns the number of deleted rows.
func (d *Database) CleanupOldActivities(retentionDays int) (int64, error) {
	threshold := time.Now().AddDate(0, 0, -retentionDays).Unix()

	result, err := d.db.Exec(`DELETE FROM activities WHERE recorded_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old activities: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted activities: %w", err)
	}
	return deleted, nil
}
