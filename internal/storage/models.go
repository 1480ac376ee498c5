package storage

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar-date key used across the store and the
// report artifacts.
const DateLayout = "2006-01-02"

// ActivityRecord is one foreground-application sample. Samples are
// immutable once recorded and always carry the fixed polling duration.
type ActivityRecord struct {
	ID          string `json:"id"`
	RecordedAt  int64  `json:"recorded_at"`
	AppName     string `json:"app_name"`
	WindowTitle string `json:"window_title,omitempty"`
	Category    string `json:"category"`
	DurationSec int64  `json:"duration_sec"`
}

// NewActivityRecord builds a sample with a fresh identifier.
func NewActivityRecord(recordedAt int64, appName, windowTitle, category string, durationSec int64) *ActivityRecord {
	return &ActivityRecord{
		ID:          uuid.New().String(),
		RecordedAt:  recordedAt,
		AppName:     appName,
		WindowTitle: windowTitle,
		Category:    category,
		DurationSec: durationSec,
	}
}

// ChromeVisit is the stored per-domain browsing total for one date.
// The reclassification step may rewrite Category; Domain and
// DurationSec never change after extraction.
type ChromeVisit struct {
	ID          int64  `json:"id,omitempty"`
	Date        string `json:"date,omitempty"`
	Domain      string `json:"domain"`
	Category    string `json:"category"`
	DurationSec int64  `json:"duration_sec"`
}

// ReportMeta points at the persisted artifacts for one generated report.
type ReportMeta struct {
	ID           int64  `json:"id"`
	Date         string `json:"date"`
	GeneratedAt  int64  `json:"generated_at"`
	MarkdownPath string `json:"md_path"`
	JSONPath     string `json:"json_path"`
}

// DayRange returns the inclusive epoch-second bounds of the local
// calendar day containing t.
func DayRange(t time.Time) (from, to int64) {
	local := t.Local()
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.Local)
	return start.Unix(), start.AddDate(0, 0, 1).Unix() - 1
}
