package category

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "canonical passthrough", input: "development", want: "development"},
		{name: "synonym dev", input: "dev", want: "development"},
		{name: "korean development", input: "개발", want: "development"},
		{name: "korean shopping", input: "쇼핑", want: "shopping"},
		{name: "mixed case with spaces", input: "  Research ", want: "research"},
		{name: "unknown collapses to other", input: "gaming", want: "other"},
		{name: "empty string", input: "", want: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{"development", "Dev", "엔터테인먼트", "sns", "", "random junk", "SHOPPING"}
	canonical := map[string]bool{}
	for _, c := range Canonical() {
		canonical[c] = true
	}

	for _, input := range inputs {
		once := Normalize(input)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q then %q", input, once, twice)
		}
		if !canonical[once] {
			t.Errorf("Normalize(%q) = %q is not a canonical category", input, once)
		}
	}
}

func TestCategorizeApp(t *testing.T) {
	rules := &Rules{
		Apps: map[string]string{
			"code":               "development",
			"visual studio code": "development",
			"slack":              "communication",
		},
	}

	tests := []struct {
		name string
		app  string
		want string
	}{
		{name: "exact match", app: "Slack", want: "communication"},
		{name: "substring fallback prefers longest key", app: "Visual Studio Code - Insiders", want: "development"},
		{name: "substring fallback", app: "Xcode", want: "development"},
		{name: "no match", app: "Calculator", want: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rules.CategorizeApp(tt.app); got != tt.want {
				t.Errorf("CategorizeApp(%q) = %q, want %q", tt.app, got, tt.want)
			}
		})
	}
}

func TestCategorizeDomain(t *testing.T) {
	rules := &Rules{
		Domains: map[string]string{
			"github.com":      "development",
			"docs.github.com": "research",
			"hub.com":         "shopping",
			"youtube.com":     "entertainment",
		},
	}

	tests := []struct {
		name   string
		domain string
		want   string
	}{
		{name: "exact match", domain: "github.com", want: "development"},
		{name: "subdomain match", domain: "gist.github.com", want: "development"},
		{name: "longest rule wins over shorter suffix", domain: "docs.github.com", want: "research"},
		{name: "no bare substring match", domain: "github.com", want: "development"}, // hub.com must not match
		{name: "www stripped", domain: "www.youtube.com", want: "entertainment"},
		{name: "unrelated domain", domain: "example.org", want: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rules.CategorizeDomain(tt.domain); got != tt.want {
				t.Errorf("CategorizeDomain(%q) = %q, want %q", tt.domain, got, tt.want)
			}
		})
	}
}

func TestCategorizeDomainNoSubstringMatch(t *testing.T) {
	rules := &Rules{Domains: map[string]string{"hub.com": "shopping"}}

	if got := rules.CategorizeDomain("github.com"); got != "other" {
		t.Errorf("rule hub.com must not match github.com, got %q", got)
	}
	if got := rules.CategorizeDomain("my.hub.com"); got != "shopping" {
		t.Errorf("rule hub.com should match my.hub.com, got %q", got)
	}
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "categories.json")
	content := `{
		"apps": {"  Slack  ": "Communication", "vlc": "movies"},
		"domains": {"www.GitHub.com": "dev", "shop.example.com": "unknown-label"}
	}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}

	if got := rules.Apps["slack"]; got != "communication" {
		t.Errorf("app key not normalized: got %q", got)
	}
	if got := rules.Apps["vlc"]; got != "other" {
		t.Errorf("unknown app category should coerce to other, got %q", got)
	}
	if got := rules.Domains["github.com"]; got != "development" {
		t.Errorf("domain key should strip www. and lowercase, got %q", got)
	}
	if got := rules.Domains["shop.example.com"]; got != "other" {
		t.Errorf("unknown domain category should coerce to other, got %q", got)
	}
}

func TestLoadRulesMissingFile(t *testing.T) {
	if _, err := LoadRules(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("LoadRules() expected error for missing file")
	}
}
