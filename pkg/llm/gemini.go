package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// geminiClient implements the Client interface on the Google Gen AI SDK.
type geminiClient struct {
	cfg    Config
	client *genai.Client
}

func newGeminiClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	gc, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	return wrapWithRetry(&geminiClient{cfg: cfg, client: gc}, cfg.MaxRetries), nil
}

func (c *geminiClient) Stream(ctx context.Context, req *Request, onDelta DeltaFunc) (*Response, error) {
	start := time.Now()

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}

	gcfg := &genai.GenerateContentConfig{ThinkingConfig: thinkingConfig(c.cfg.Model)}
	if req.System != "" {
		gcfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if n := c.cfg.maxTokens(req); n > 0 {
		gcfg.MaxOutputTokens = int32(n)
	}
	if t := c.cfg.temperature(req); t > 0 {
		gcfg.Temperature = genai.Ptr(float32(t))
	}

	out := &collector{onDelta: onDelta}
	resp := &Response{Model: c.cfg.Model}

	for chunk, err := range c.client.Models.GenerateContentStream(ctx, c.cfg.Model, contents, gcfg) {
		if err != nil {
			return nil, fmt.Errorf("Gemini stream: %w", err)
		}
		if err := out.emit(chunk.Text()); err != nil {
			return nil, err
		}
		if len(chunk.Candidates) > 0 && chunk.Candidates[0].FinishReason != "" {
			resp.FinishReason = string(chunk.Candidates[0].FinishReason)
		}
		if chunk.UsageMetadata != nil {
			resp.TokensIn = int(chunk.UsageMetadata.PromptTokenCount)
			resp.TokensOut = int(chunk.UsageMetadata.CandidatesTokenCount)
		}
	}
	if resp.FinishReason == "" {
		return nil, fmt.Errorf("stream ended before completion")
	}

	resp.Content = out.text()
	resp.Cost = EstimateCost(c.cfg.Model, resp.TokensIn, resp.TokensOut)
	resp.LatencyMs = time.Since(start).Milliseconds()
	return resp, nil
}

// thinkingConfig disables thinking on flash models, where thinking tokens
// would otherwise consume the output budget. Pro models reject a zero
// budget and keep their default.
func thinkingConfig(model string) *genai.ThinkingConfig {
	if !strings.Contains(strings.ToLower(model), "flash") {
		return nil
	}
	return &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)}
}

func (c *geminiClient) Provider() Provider { return Gemini }
func (c *geminiClient) Close() error       { return nil }
