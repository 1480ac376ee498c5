package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseHHMM(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		hour    int
		minute  int
		wantErr bool
	}{
		{name: "valid evening", value: "23:30", hour: 23, minute: 30},
		{name: "midnight", value: "00:00", hour: 0, minute: 0},
		{name: "padded whitespace", value: " 09:05 ", hour: 9, minute: 5},
		{name: "hour out of range", value: "24:00", wantErr: true},
		{name: "minute out of range", value: "12:60", wantErr: true},
		{name: "missing colon", value: "2330", wantErr: true},
		{name: "not a number", value: "aa:bb", wantErr: true},
		{name: "empty", value: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hour, minute, err := ParseHHMM(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseHHMM(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if err == nil && (hour != tt.hour || minute != tt.minute) {
				t.Errorf("ParseHHMM(%q) = %d:%d, want %d:%d", tt.value, hour, minute, tt.hour, tt.minute)
			}
		})
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"report_time", "report.time"},
		{"notify_on_report", "report.notify"},
		{"chrome_profiles", "collector.chrome_profiles"},
		{"ai_api_key", "ai.api_key"},
		{"report.time", "report.time"},
		{"unknown_key", "unknown_key"},
	}
	for _, tt := range tests {
		if got := normalizeKey(tt.key); got != tt.want {
			t.Errorf("normalizeKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func writeConfigFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "report:\n  time: \"23:30\"\n  notify: true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config fixture: %v", err)
	}
	return path
}

func TestSetValueValidation(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{name: "valid report time", key: "report.time", value: "09:15"},
		{name: "invalid report time", key: "report.time", value: "25:00", wantErr: "invalid hour"},
		{name: "polling interval is fixed", key: "polling_seconds", value: "60", wantErr: "fixed to 300"},
		{name: "polling interval accepts the fixed value", key: "polling_seconds", value: "300"},
		{name: "bad boolean", key: "ai_enabled", value: "maybe", wantErr: "must be true/false"},
		{name: "bad port", key: "api_port", value: "99999", wantErr: "port number"},
		{name: "retention must be positive", key: "retention_days", value: "0", wantErr: "positive"},
		{name: "ai timeout floor", key: "ai_timeout_seconds", value: "2", wantErr: ">= 5"},
		{name: "unknown key", key: "mystery", value: "1", wantErr: "unsupported config key"},
		{name: "empty profile list", key: "chrome_profiles", value: " , ", wantErr: "at least one profile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFixture(t)
			err := SetValue(path, tt.key, tt.value)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("SetValue(%q, %q) error = %v", tt.key, tt.value, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("SetValue(%q, %q) error = %v, want containing %q", tt.key, tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestSetValueRoundTrip(t *testing.T) {
	path := writeConfigFixture(t)

	if err := SetValue(path, "report_time", "08:45"); err != nil {
		t.Fatalf("SetValue() error = %v", err)
	}

	got, err := CurrentReportTime(path)
	if err != nil {
		t.Fatalf("CurrentReportTime() error = %v", err)
	}
	if got != "08:45" {
		t.Errorf("CurrentReportTime() = %q, want 08:45", got)
	}
}

func TestCurrentReportTimeDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("api:\n  port: 7890\n"), 0o644); err != nil {
		t.Fatalf("failed to write config fixture: %v", err)
	}

	got, err := CurrentReportTime(path)
	if err != nil {
		t.Fatalf("CurrentReportTime() error = %v", err)
	}
	if got != DefaultReportTime {
		t.Errorf("CurrentReportTime() = %q, want default %q", got, DefaultReportTime)
	}
}

func TestCurrentReportTimeRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("report:\n  time: \"soon\"\n"), 0o644); err != nil {
		t.Fatalf("failed to write config fixture: %v", err)
	}

	if _, err := CurrentReportTime(path); err == nil {
		t.Error("CurrentReportTime() accepted a non-HH:MM value")
	}
}

func TestGetValueMasksAPIKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("ai:\n  api_key: \"sk-secret\"\n"), 0o644); err != nil {
		t.Fatalf("failed to write config fixture: %v", err)
	}

	got, err := GetValue(path, "ai_api_key")
	if err != nil {
		t.Fatalf("GetValue() error = %v", err)
	}
	if strings.Contains(got, "secret") {
		t.Errorf("GetValue() leaked the credential: %q", got)
	}
}

func TestAIConfigTimeoutFloor(t *testing.T) {
	cfg := AIConfig{TimeoutSeconds: 1}
	if got := cfg.Timeout().Seconds(); got != 5 {
		t.Errorf("Timeout() = %vs, want floor of 5s", got)
	}
	cfg.TimeoutSeconds = 30
	if got := cfg.Timeout().Seconds(); got != 30 {
		t.Errorf("Timeout() = %vs, want 30s", got)
	}
}
