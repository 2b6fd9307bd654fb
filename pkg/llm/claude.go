package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// claudeClient implements the Client interface for Anthropic Claude API.
type claudeClient struct {
	cfg    Config
	http   *http.Client
	apiKey string
	base   string
}

func newClaudeClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Claude API key is required")
	}
	base := "https://api.anthropic.com/v1"
	if cfg.BaseURL != "" {
		base = cfg.BaseURL
	}
	client := &claudeClient{
		cfg:    cfg,
		apiKey: cfg.APIKey,
		base:   base,
		http:   &http.Client{Timeout: cfg.Timeout},
	}
	return wrapWithRetry(client, cfg.MaxRetries), nil
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
	Stream      bool            `json:"stream"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// claudeEvent covers the fields used from every streaming event type.
type claudeEvent struct {
	Type    string `json:"type"`
	Message *struct {
		Model string `json:"model"`
		Usage struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Delta *struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Usage *struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *claudeClient) Stream(ctx context.Context, req *Request, onDelta DeltaFunc) (*Response, error) {
	start := time.Now()

	messages := make([]claudeMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role != "system" {
			messages = append(messages, claudeMessage{Role: m.Role, Content: m.Content})
		}
	}

	maxTokens := c.cfg.maxTokens(req)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	cReq := claudeRequest{
		Model:       c.cfg.Model,
		MaxTokens:   maxTokens,
		System:      req.System,
		Messages:    messages,
		Temperature: c.cfg.temperature(req),
		Stream:      true,
	}

	body, err := json.Marshal(cReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.base+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer httpResp.Body.Close()

	if err := checkStatus(Claude, httpResp); err != nil {
		return nil, err
	}

	out := &collector{onDelta: onDelta}
	resp := &Response{Model: c.cfg.Model}
	stopped := false

	err = readSSE(httpResp.Body, func(data []byte) error {
		var ev claudeEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("unmarshal event: %w", err)
		}
		switch ev.Type {
		case "message_start":
			if ev.Message != nil {
				resp.Model = ev.Message.Model
				resp.TokensIn = ev.Message.Usage.InputTokens
			}
		case "content_block_delta":
			if ev.Delta != nil && ev.Delta.Type == "text_delta" {
				return out.emit(ev.Delta.Text)
			}
		case "message_delta":
			if ev.Delta != nil {
				resp.FinishReason = ev.Delta.StopReason
			}
			if ev.Usage != nil {
				resp.TokensOut = ev.Usage.OutputTokens
			}
		case "message_stop":
			stopped = true
		case "error":
			if ev.Error != nil {
				return fmt.Errorf("Claude stream error (%s): %s", ev.Error.Type, ev.Error.Message)
			}
			return fmt.Errorf("Claude stream error")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !stopped {
		return nil, fmt.Errorf("stream ended before completion")
	}

	resp.Content = out.text()
	resp.Cost = EstimateCost(resp.Model, resp.TokensIn, resp.TokensOut)
	resp.LatencyMs = time.Since(start).Milliseconds()
	return resp, nil
}

func (c *claudeClient) Provider() Provider { return Claude }
func (c *claudeClient) Close() error       { return nil }
