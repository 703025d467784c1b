// Package slack sends analysis notifications to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/verdict/internal/analysis"
)

const (
	maxExplanationLen = 3000
	httpTimeout       = 10 * time.Second
)

// Notifier sends analysis results to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Name identifies this channel in routing configuration.
func (n *Notifier) Name() string { return "slack" }

// Send posts an analysis result to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, result *analysis.Complete) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(result)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(r *analysis.Complete) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(r),
			{"type": "divider"},
			fieldsBlock(r),
			{"type": "divider"},
			explanationBlock(r),
			{"type": "divider"},
			contextBlock(r),
		},
	}
}

func headerBlock(r *analysis.Complete) map[string]any {
	text := fmt.Sprintf("%s %s Alert: %s", verdictEmoji(r.Verdict), strings.ToUpper(r.Verdict), r.AlertID)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(r *analysis.Complete) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Verdict:* %s", r.Verdict),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Confidence:* %.1f%%", r.Confidence*100),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Action:* %s", r.Action),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Top factors:* %s", topFactors(r)),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func explanationBlock(r *analysis.Complete) map[string]any {
	text := truncate(r.Explanation, maxExplanationLen)
	if text == "" {
		text = "_No explanation available._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Analysis*\n\n%s", text),
		},
	}
}

func contextBlock(r *analysis.Complete) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("verdict • analysis %s • %s", r.ID, r.CreatedAt.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func topFactors(r *analysis.Complete) string {
	if r.Attribution == nil || len(r.Attribution.Top) == 0 {
		return "n/a"
	}
	names := make([]string, 0, 3)
	for _, f := range r.Attribution.Top {
		names = append(names, f.HumanName)
		if len(names) == 3 {
			break
		}
	}
	return strings.Join(names, ", ")
}

func verdictEmoji(verdict string) string {
	switch verdict {
	case "malicious":
		return "\U0001f534" // red circle
	case "suspicious":
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
