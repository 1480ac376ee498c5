package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"opentracker/internal/category"
	"opentracker/internal/config"
	"opentracker/internal/logger"
	"opentracker/internal/storage"
)

const maxInsights = 8

const systemPrompt = `You are a strict activity classifier. Return JSON only: {"domain_categories":[{"domain":"example.com","category":"research"}],"insights":["..."]}. Categories must be one of development,research,communication,entertainment,sns,shopping,other.`

// Enrichment is the outcome of one reclassification call: the visit list
// with overridden categories plus up to 8 free-text insight strings.
type Enrichment struct {
	Visits   []storage.ChromeVisit
	Insights []string
}

// Client talks to an OpenAI-compatible chat-completion endpoint.
type Client struct {
	cfg        config.AIConfig
	httpClient *http.Client
}

func NewClient(cfg config.AIConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
	}
}

// Enabled reports whether the client has both the feature flag and a
// credential; when false, EnrichVisits is a passthrough.
func (c *Client) Enabled() bool {
	return c.cfg.Enabled && c.cfg.ResolveAPIKey() != ""
}

// EnrichVisits asks the model to recategorize low-confidence domains and
// produce daily insights. Every failure mode degrades to the input visits
// with zero insights; this call never aborts the pipeline.
func (c *Client) EnrichVisits(ctx context.Context, date time.Time, visits []storage.ChromeVisit) Enrichment {
	passthrough := Enrichment{Visits: visits}
	if !c.Enabled() || len(visits) == 0 {
		return passthrough
	}

	log := logger.GetLogger()

	userPayload, err := buildUserPayload(date, visits)
	if err != nil {
		log.Warnf("failed to build AI request payload: %v", err)
		return passthrough
	}

	content, err := c.chatCompletion(ctx, systemPrompt, userPayload)
	if err != nil {
		log.Warnf("AI reclassification skipped: %v", err)
		return passthrough
	}

	payload, err := parsePayload(content)
	if err != nil {
		log.Warnf("AI reclassification skipped: %v", err)
		return passthrough
	}

	overrides := make(map[string]string, len(payload.DomainCategories))
	for _, item := range payload.DomainCategories {
		domain := strings.ToLower(strings.TrimSpace(item.Domain))
		if domain == "" {
			continue
		}
		overrides[domain] = category.Normalize(item.Category)
	}

	enriched := make([]storage.ChromeVisit, len(visits))
	for i, visit := range visits {
		enriched[i] = visit
		if mapped, ok := overrides[strings.ToLower(strings.TrimSpace(visit.Domain))]; ok {
			enriched[i].Category = mapped
		}
	}

	insights := make([]string, 0, maxInsights)
	for _, insight := range payload.Insights {
		trimmed := strings.TrimSpace(insight)
		if trimmed == "" {
			continue
		}
		insights = append(insights, trimmed)
		if len(insights) == maxInsights {
			break
		}
	}

	return Enrichment{Visits: enriched, Insights: insights}
}

// TestConnection sends a minimal round-trip request and returns the model's
// reply, for the `ai test` diagnostic command.
func (c *Client) TestConnection(ctx context.Context) (string, error) {
	if c.cfg.ResolveAPIKey() == "" {
		return "", fmt.Errorf("AI API key is missing: set ai.api_key in the config or OPENTRACKER_AI_API_KEY")
	}
	return c.chatCompletion(ctx,
		"Return exactly one short sentence indicating AI API connectivity is healthy.",
		"Health check for opentracker.")
}

func buildUserPayload(date time.Time, visits []storage.ChromeVisit) (string, error) {
	type domainEntry struct {
		Domain          string `json:"domain"`
		DurationSec     int64  `json:"duration_sec"`
		CurrentCategory string `json:"current_category"`
	}

	domains := make([]domainEntry, len(visits))
	for i, visit := range visits {
		domains[i] = domainEntry{
			Domain:          visit.Domain,
			DurationSec:     visit.DurationSec,
			CurrentCategory: visit.Category,
		}
	}

	payload := map[string]any{
		"date":               date.Format(storage.DateLayout),
		"domains":            domains,
		"allowed_categories": category.Canonical(),
		"instruction":        "Unknown domains can be recategorized if confidence is high.",
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal user payload: %w", err)
	}
	return string(encoded), nil
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type classificationPayload struct {
	DomainCategories []struct {
		Domain   string `json:"domain"`
		Category string `json:"category"`
	} `json:"domain_categories"`
	Insights []string `json:"insights"`
}

func (c *Client) chatCompletion(ctx context.Context, system, user string) (string, error) {
	apiKey := c.cfg.ResolveAPIKey()
	if apiKey == "" {
		return "", fmt.Errorf("AI API key is empty")
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"

	requestBody, err := json.Marshal(map[string]any{
		"model":       c.cfg.Model,
		"temperature": 0.1,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal AI request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to build AI request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("AI API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read AI response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("AI API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse AI response: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("AI response did not include any choices")
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("AI response did not include message.content")
	}
	return content, nil
}

func parsePayload(content string) (*classificationPayload, error) {
	extracted := extractJSONBlock(content)

	var payload classificationPayload
	if err := json.Unmarshal([]byte(extracted), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse AI JSON payload: %w", err)
	}
	return &payload, nil
}

// extractJSONBlock digs the JSON object out of a free-text model reply:
// a ```json fenced block first, then any fenced block starting with "{",
// then the substring between the first "{" and the last "}".
func extractJSONBlock(content string) string {
	for _, block := range strings.Split(content, "```") {
		block = strings.TrimSpace(block)
		if rest, ok := strings.CutPrefix(block, "json"); ok {
			return strings.TrimSpace(rest)
		}
		if strings.HasPrefix(block, "{") {
			return block
		}
	}

	first := strings.Index(content, "{")
	last := strings.LastIndex(content, "}")
	if first >= 0 && last > first {
		return content[first : last+1]
	}
	return strings.TrimSpace(content)
}
