package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/waterworm/waterworm/pkg/format"
)

// payloads builds the request body for each webhook type.
var payloads = map[string]func(*Alert) ([]byte, error){
	"slack": slackPayload,
	"teams": teamsPayload,
	"http":  httpPayload,
}

// deliver posts a to every webhook with a resolvable URL. Failures are
// logged and never reach the caller.
func (e *Engine) deliver(a *Alert) {
	for _, wh := range e.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}
		build, ok := payloads[wh.Type]
		if !ok {
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}
		body, err := build(a)
		if err == nil {
			err = e.post(url, body)
		}
		if err != nil {
			slog.Error("alerts: webhook delivery failed", "type", wh.Type, "rule", a.RuleName, "source", a.SourceID, "err", err)
			continue
		}
		slog.Debug("alerts: webhook delivered", "type", wh.Type, "rule", a.RuleName, "state", a.State)
	}
}

func slackPayload(a *Alert) ([]byte, error) {
	text := fmt.Sprintf("*%s* %s", severityLabel(a.Severity), a.Message)
	if a.State == StateResolved {
		text = fmt.Sprintf("*[RESOLVED]* %s on %s", a.RuleName, a.SourceID)
	}
	return json.Marshal(map[string]string{"text": text})
}

type teamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func teamsPayload(a *Alert) ([]byte, error) {
	facts := []teamsFact{
		{"Source", a.SourceID},
		{"Rule", a.RuleName},
		{"Severity", a.Severity},
		{"Fired", format.Timestamp(a.FiredAt)},
	}
	if a.ResolvedAt != nil {
		facts = append(facts, teamsFact{"Resolved", format.Timestamp(*a.ResolvedAt)})
	}
	return json.Marshal(map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": severityColor(a.Severity),
		"summary":    a.RuleName,
		"title":      fmt.Sprintf("Waterworm alert: %s (%s)", a.RuleName, a.State),
		"text":       a.Message,
		"sections":   []map[string]interface{}{{"facts": facts}},
	})
}

func httpPayload(a *Alert) ([]byte, error) {
	return json.Marshal(map[string]interface{}{"alert": a})
}

func (e *Engine) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("alerts: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("alerts: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("alerts: webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func severityLabel(s string) string {
	switch s {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

// severityColor is the Teams card accent per severity.
func severityColor(s string) string {
	switch s {
	case "critical":
		return "D7263D"
	case "warning":
		return "F46036"
	default:
		return "1B98E0"
	}
}
