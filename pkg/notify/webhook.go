package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// WebhookConfig holds webhook configuration.
type WebhookConfig struct {
	URL     string            `yaml:"url" json:"url" env:"EPIGRAM_ALERT_WEBHOOK"`
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// WebhookNotifier posts JSON to a webhook URL. The payload carries a
// "text" field so Slack-compatible incoming webhooks render it directly.
type WebhookNotifier struct {
	config WebhookConfig
	http   *http.Client
}

// NewWebhookNotifier creates a new webhook notifier.
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{
		config: cfg,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookNotifier) Channel() Channel { return ChannelWebhook }

type webhookPayload struct {
	Text   string            `json:"text"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Level  Level             `json:"level,omitempty"`
	URL    string            `json:"url,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
	SentAt time.Time         `json:"sent_at"`
}

// Send sends a message to the webhook URL.
func (w *WebhookNotifier) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(webhookPayload{
		Text:   formatText(msg),
		Title:  msg.Title,
		Body:   msg.Body,
		Level:  msg.Level,
		URL:    msg.URL,
		Fields: msg.Fields,
		SentAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", w.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func formatText(msg Message) string {
	var sb strings.Builder
	if msg.Level == LevelError {
		sb.WriteString("[error] ")
	}
	sb.WriteString(msg.Title)
	if msg.Body != "" {
		sb.WriteString("\n")
		sb.WriteString(msg.Body)
	}
	keys := make([]string, 0, len(msg.Fields))
	for k := range msg.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "\n%s: %s", k, msg.Fields[k])
	}
	if msg.URL != "" {
		sb.WriteString("\n")
		sb.WriteString(msg.URL)
	}
	return sb.String()
}
