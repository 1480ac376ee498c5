package category

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// The seven canonical categories, in report rendering order.
const (
	Development   = "development"
	Research      = "research"
	Communication = "communication"
	Entertainment = "entertainment"
	SNS           = "sns"
	Shopping      = "shopping"
	Other         = "other"
)

// Canonical returns the canonical category labels in rendering order.
func Canonical() []string {
	return []string{Development, Research, Communication, Entertainment, SNS, Shopping, Other}
}

// DisplayName maps a canonical category to its report display name.
func DisplayName(raw string) string {
	switch raw {
	case Development:
		return "Development"
	case Research:
		return "Research"
	case Communication:
		return "Communication"
	case Entertainment:
		return "Entertainment"
	case SNS:
		return "SNS"
	case Shopping:
		return "Shopping"
	default:
		return "Other"
	}
}

// Normalize maps an arbitrary category string onto the canonical set.
// Unknown values, including the empty string, collapse to "other".
func Normalize(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "development", "dev", "개발":
		return Development
	case "research", "리서치":
		return Research
	case "communication", "커뮤니케이션":
		return Communication
	case "entertainment", "엔터테인먼트":
		return Entertainment
	case "sns":
		return SNS
	case "shopping", "쇼핑":
		return Shopping
	default:
		return Other
	}
}

// Rules maps application names and browsing domains to categories.
// Keys are case-normalized at load time; values are always canonical.
type Rules struct {
	Apps    map[string]string `json:"apps"`
	Domains map[string]string `json:"domains"`
}

// LoadRules reads and normalizes a category rules file. Unknown
// category values are coerced to "other" rather than rejected.
func LoadRules(path string) (*Rules, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read categories file %s: %w", path, err)
	}

	var parsed Rules
	if err := json.Unmarshal(content, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse categories file %s: %w", path, err)
	}

	return parsed.normalized(), nil
}

func (r *Rules) normalized() *Rules {
	apps := make(map[string]string, len(r.Apps))
	for key, value := range r.Apps {
		apps[strings.ToLower(strings.TrimSpace(key))] = Normalize(value)
	}

	domains := make(map[string]string, len(r.Domains))
	for key, value := range r.Domains {
		domains[normalizeDomain(key)] = Normalize(value)
	}

	return &Rules{Apps: apps, Domains: domains}
}

// CategorizeApp looks up the application name: exact match first, then
// the longest rule key contained in the name as a substring. The
// longest-key rule keeps the fallback deterministic regardless of map
// iteration order; ties break on the lexicographically smaller key.
func (r *Rules) CategorizeApp(appName string) string {
	normalized := strings.ToLower(strings.TrimSpace(appName))

	if value, ok := r.Apps[normalized]; ok {
		return Normalize(value)
	}

	bestKey := ""
	bestValue := ""
	for key, value := range r.Apps {
		if key == "" || !strings.Contains(normalized, key) {
			continue
		}
		if len(key) > len(bestKey) || (len(key) == len(bestKey) && key < bestKey) {
			bestKey = key
			bestValue = value
		}
	}
	if bestKey != "" {
		return Normalize(bestValue)
	}
	return Other
}

// CategorizeDomain matches a domain against the rules. A rule matches
// when the domain equals it or is a proper subdomain of it; plain
// substring matches never count ("hub.com" does not match
// "github.com"). The longest matching rule wins.
func (r *Rules) CategorizeDomain(domain string) string {
	normalized := normalizeDomain(domain)

	bestRule := ""
	bestValue := ""
	for rule, value := range r.Domains {
		if !domainMatches(normalized, rule) {
			continue
		}
		if len(rule) > len(bestRule) || (len(rule) == len(bestRule) && rule < bestRule) {
			bestRule = rule
			bestValue = value
		}
	}
	if bestRule != "" {
		return Normalize(bestValue)
	}
	return Other
}

func domainMatches(domain, rule string) bool {
	rule = normalizeDomain(rule)
	if rule == "" {
		return false
	}
	return domain == rule || strings.HasSuffix(domain, "."+rule)
}

func normalizeDomain(raw string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(raw)), "www.")
}
