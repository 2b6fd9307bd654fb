// Package llm provides a unified streaming interface for multiple LLM providers.
// It supports OpenAI (and OpenAI-compatible MiniMax), Gemini, Claude, and Ollama
// with retries before the first token and cost tracking.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Provider represents an LLM provider.
type Provider string

const (
	OpenAI  Provider = "openai"
	Gemini  Provider = "gemini"
	Claude  Provider = "claude"
	Ollama  Provider = "ollama"
	MiniMax Provider = "minimax"
)

// Config holds configuration for an LLM client.
type Config struct {
	Provider    Provider      `yaml:"provider" json:"provider" env:"LLM_PROVIDER"`
	Model       string        `yaml:"model" json:"model" env:"OPENAI_MODEL_NAME,LLM_MODEL"`
	APIKey      string        `yaml:"api_key" json:"-" env:"LLM_API_KEY,OPENAI_API_KEY"`
	BaseURL     string        `yaml:"base_url" json:"base_url" env:"LLM_BASE_URL"`
	MaxRetries  int           `yaml:"max_retries" json:"max_retries"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens"`
	Temperature float64       `yaml:"temperature" json:"temperature"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:    OpenAI,
		Model:       "gpt-4o-mini",
		MaxRetries:  3,
		Timeout:     120 * time.Second,
		MaxTokens:   2048,
		Temperature: 0.7,
	}
}

// DeltaFunc receives generated text as it arrives. Returning an error aborts
// the stream and the error is returned from Stream.
type DeltaFunc func(delta string) error

// Client is the unified interface for LLM interactions.
type Client interface {
	// Stream sends a prompt and delivers the response incrementally to onDelta.
	// The returned Response holds the complete text. onDelta may be nil.
	Stream(ctx context.Context, req *Request, onDelta DeltaFunc) (*Response, error)

	// Provider returns the name of the provider.
	Provider() Provider

	// Close releases any resources held by the client.
	Close() error
}

// Message represents a single message in a conversation.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Request holds the parameters for an LLM generation request.
type Request struct {
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// Response holds the result of an LLM generation.
type Response struct {
	Content      string  `json:"content"`
	FinishReason string  `json:"finish_reason,omitempty"` // "stop", "length", "STOP", "MAX_TOKENS", ...
	TokensIn     int     `json:"tokens_in"`
	TokensOut    int     `json:"tokens_out"`
	Cost         float64 `json:"cost"`
	Model        string  `json:"model"`
	LatencyMs    int64   `json:"latency_ms"`
}

// NewClient creates a new LLM client based on the provided config.
func NewClient(cfg Config) (Client, error) {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	switch cfg.Provider {
	case OpenAI:
		return newOpenAIClient(cfg)
	case Gemini:
		return newGeminiClient(cfg)
	case Claude:
		return newClaudeClient(cfg)
	case Ollama:
		return newOllamaClient(cfg)
	case MiniMax:
		if cfg.BaseURL == "" {
			cfg.BaseURL = "https://api.minimax.io/v1"
		}
		return newOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

func (c Config) maxTokens(req *Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return c.MaxTokens
}

func (c Config) temperature(req *Request) float64 {
	if req.Temperature > 0 {
		return req.Temperature
	}
	return c.Temperature
}
