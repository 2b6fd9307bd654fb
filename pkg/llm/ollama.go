package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ollamaClient implements the Client interface for local Ollama models.
type ollamaClient struct {
	cfg  Config
	http *http.Client
	base string
}

func newOllamaClient(cfg Config) (Client, error) {
	base := "http://localhost:11434"
	if cfg.BaseURL != "" {
		base = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.2"
	}
	client := &ollamaClient{
		cfg:  cfg,
		base: base,
		http: &http.Client{Timeout: cfg.Timeout},
	}
	// No retry for local models
	return client, nil
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChunk struct {
	Model   string `json:"model"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error"`
}

func (c *ollamaClient) Stream(ctx context.Context, req *Request, onDelta DeltaFunc) (*Response, error) {
	start := time.Now()

	messages := make([]ollamaMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, ollamaMessage{Role: m.Role, Content: m.Content})
	}

	oReq := ollamaRequest{
		Model:    c.cfg.Model,
		Messages: messages,
		Stream:   true,
		Options: &ollamaOptions{
			Temperature: c.cfg.temperature(req),
			NumPredict:  c.cfg.maxTokens(req),
		},
	}

	body, err := json.Marshal(oReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.base+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer httpResp.Body.Close()

	if err := checkStatus(Ollama, httpResp); err != nil {
		return nil, err
	}

	out := &collector{onDelta: onDelta}
	resp := &Response{Model: c.cfg.Model}
	done := false

	err = readNDJSON(httpResp.Body, func(line []byte) error {
		var chunk ollamaChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return fmt.Errorf("unmarshal chunk: %w", err)
		}
		if chunk.Error != "" {
			return fmt.Errorf("Ollama stream error: %s", chunk.Error)
		}
		if err := out.emit(chunk.Message.Content); err != nil {
			return err
		}
		if chunk.Done {
			done = true
			resp.FinishReason = chunk.DoneReason
			resp.TokensIn = chunk.PromptEvalCount
			resp.TokensOut = chunk.EvalCount
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !done {
		return nil, fmt.Errorf("stream ended before completion")
	}

	resp.Content = out.text()
	resp.LatencyMs = time.Since(start).Milliseconds()
	return resp, nil
}

func (c *ollamaClient) Provider() Provider { return Ollama }
func (c *ollamaClient) Close() error       { return nil }
