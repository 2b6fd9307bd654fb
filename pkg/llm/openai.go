package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// openaiClient implements the Client interface for OpenAI-compatible APIs.
type openaiClient struct {
	cfg    Config
	http   *http.Client
	apiKey string
	base   string
}

func newOpenAIClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	base := "https://api.openai.com/v1"
	if cfg.BaseURL != "" {
		base = cfg.BaseURL
	}
	client := &openaiClient{
		cfg:    cfg,
		apiKey: cfg.APIKey,
		base:   base,
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
	return wrapWithRetry(client, cfg.MaxRetries), nil
}

type openaiRequest struct {
	Model         string               `json:"model"`
	Messages      []openaiMessage      `json:"messages"`
	MaxTokens     int                  `json:"max_tokens,omitempty"`
	Temperature   float64              `json:"temperature,omitempty"`
	Stream        bool                 `json:"stream"`
	StreamOptions *openaiStreamOptions `json:"stream_options,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type openaiChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *openaiClient) Stream(ctx context.Context, req *Request, onDelta DeltaFunc) (*Response, error) {
	start := time.Now()

	messages := make([]openaiMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openaiMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, openaiMessage{Role: m.Role, Content: m.Content})
	}

	oReq := openaiRequest{
		Model:         c.cfg.Model,
		Messages:      messages,
		MaxTokens:     c.cfg.maxTokens(req),
		Temperature:   c.cfg.temperature(req),
		Stream:        true,
		StreamOptions: &openaiStreamOptions{IncludeUsage: true},
	}

	body, err := json.Marshal(oReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.base+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer httpResp.Body.Close()

	if err := checkStatus(OpenAI, httpResp); err != nil {
		return nil, err
	}

	out := &collector{onDelta: onDelta}
	think := &thinkFilter{}
	resp := &Response{Model: c.cfg.Model}

	err = readSSE(httpResp.Body, func(data []byte) error {
		var chunk openaiChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			return fmt.Errorf("unmarshal chunk: %w", err)
		}
		if chunk.Error != nil {
			return fmt.Errorf("stream error: %s", chunk.Error.Message)
		}
		if chunk.Model != "" {
			resp.Model = chunk.Model
		}
		if chunk.Usage != nil {
			resp.TokensIn = chunk.Usage.PromptTokens
			resp.TokensOut = chunk.Usage.CompletionTokens
		}
		for _, choice := range chunk.Choices {
			if choice.FinishReason != nil {
				resp.FinishReason = *choice.FinishReason
			}
			if err := out.emit(think.Write(choice.Delta.Content)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := out.emit(think.Flush()); err != nil {
		return nil, err
	}
	if resp.FinishReason == "" {
		return nil, fmt.Errorf("stream ended before completion")
	}

	resp.Content = out.text()
	resp.Cost = EstimateCost(resp.Model, resp.TokensIn, resp.TokensOut)
	resp.LatencyMs = time.Since(start).Milliseconds()
	return resp, nil
}

func (c *openaiClient) Provider() Provider {
	return OpenAI
}

func (c *openaiClient) Close() error {
	return nil
}
