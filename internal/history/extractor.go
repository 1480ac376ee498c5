package history

import (
	"database/sql"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"opentracker/internal/category"
	"opentracker/internal/logger"
	"opentracker/internal/storage"
)

// Chrome stores visit timestamps as microseconds since the Windows epoch
// (1601-01-01). Subtracting this offset converts to Unix seconds.
const webkitEpochOffsetSeconds = 11644473600

const visitsQuery = `
SELECT urls.url, COALESCE(visits.visit_duration, 0)
FROM visits
JOIN urls ON visits.url = urls.id
WHERE DATE(datetime((visits.visit_time / 1000000) - 11644473600, 'unixepoch', 'localtime')) = ?`

// Extractor reads per-domain browsing durations out of Chrome profile
// History databases. Chrome keeps its History file locked while running,
// so each profile is copied to a temp location before querying.
type Extractor struct {
	ProfilesRoot string
	Profiles     []string
	Rules        *category.Rules
}

func NewExtractor(profiles []string, rules *category.Rules) *Extractor {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return &Extractor{
		ProfilesRoot: filepath.Join(home, "Library", "Application Support", "Google", "Chrome"),
		Profiles:     profiles,
		Rules:        rules,
	}
}

// VisitsForDate aggregates visit durations per domain across all configured
// profiles for the given local date. Profiles without a History file are
// skipped; a copy or query failure on an existing file aborts the extraction.
func (e *Extractor) VisitsForDate(date time.Time) ([]storage.ChromeVisit, error) {
	log := logger.GetLogger()
	totals := make(map[string]int64)

	for _, profile := range e.Profiles {
		historyPath := filepath.Join(e.ProfilesRoot, profile, "History")
		if _, err := os.Stat(historyPath); os.IsNotExist(err) {
			log.Debugf("chrome profile %s has no history file, skipping", profile)
			continue
		}

		if err := e.collectProfile(historyPath, date, totals); err != nil {
			return nil, fmt.Errorf("failed to extract chrome history for profile %s: %w", profile, err)
		}
	}

	visits := make([]storage.ChromeVisit, 0, len(totals))
	dateStr := date.Format(storage.DateLayout)
	for domain, seconds := range totals {
		visits = append(visits, storage.ChromeVisit{
			Date:        dateStr,
			Domain:      domain,
			Category:    e.Rules.CategorizeDomain(domain),
			DurationSec: seconds,
		})
	}
	sort.Slice(visits, func(i, j int) bool {
		if visits[i].DurationSec != visits[j].DurationSec {
			return visits[i].DurationSec > visits[j].DurationSec
		}
		return visits[i].Domain < visits[j].Domain
	})
	return visits, nil
}

func (e *Extractor) collectProfile(historyPath string, date time.Time, totals map[string]int64) error {
	tempDir := filepath.Join(os.TempDir(), "opentracker-history-"+uuid.New().String())
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	tempPath := filepath.Join(tempDir, "History")
	if err := copyFile(historyPath, tempPath); err != nil {
		return fmt.Errorf("failed to copy history database: %w", err)
	}

	db, err := sql.Open("sqlite", tempPath)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(visitsQuery, date.Format(storage.DateLayout))
	if err != nil {
		return fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rawURL string
		var durationMicros int64
		if err := rows.Scan(&rawURL, &durationMicros); err != nil {
			return fmt.Errorf("failed to scan visit row: %w", err)
		}

		seconds := durationMicros / 1_000_000
		if seconds <= 0 {
			continue
		}

		domain := DomainOf(rawURL)
		if domain == "" {
			continue
		}
		totals[domain] += seconds
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate visit rows: %w", err)
	}
	return nil
}

// DomainOf extracts the lowercase host from a URL, dropping a leading
// "www." prefix. Returns "" for URLs without a host (chrome://, file:).
func DomainOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimPrefix(host, "www.")
	return host
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
