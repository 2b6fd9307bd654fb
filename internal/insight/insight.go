// Package insight generates streamed multi-article summaries and memoizes
// them per source set.
package insight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/RobinCoderZhao/epigram/internal/news"
	"github.com/RobinCoderZhao/epigram/pkg/llm"
)

// DefaultTTL is how long a generated insight is served from cache.
const DefaultTTL = 24 * time.Hour

// ErrNoSources is returned when an insight is requested for nothing.
var ErrNoSources = errors.New("no source articles")

// Cache stores generated insight text.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Config controls caching behaviour.
type Config struct {
	TTL time.Duration `yaml:"ttl"`
	// CanonicalKeys sorts source URLs before building the cache key, so the
	// same set in any order shares one entry.
	CanonicalKeys bool `yaml:"canonical_keys"`
}

// Result describes a finished insight.
type Result struct {
	Key    string
	Text   string
	Cached bool
	Usage  *llm.Response
}

// Generator produces insights through an LLM and a cache.
type Generator struct {
	client    llm.Client
	cache     Cache
	ttl       time.Duration
	canonical bool
	logger    *slog.Logger
}

// NewGenerator creates a Generator. A zero TTL means DefaultTTL.
func NewGenerator(client llm.Client, cache Cache, cfg Config) *Generator {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Generator{
		client:    client,
		cache:     cache,
		ttl:       cfg.TTL,
		canonical: cfg.CanonicalKeys,
		logger:    slog.Default(),
	}
}

// Key returns the cache key for the given source URLs. Unless canonical
// keys are enabled the order of urls is significant.
func (g *Generator) Key(urls []string) string {
	if g.canonical {
		urls = append([]string(nil), urls...)
		sort.Strings(urls)
	}
	return "ai-insights:" + strings.Join(urls, ",")
}

// Generate writes the insight for sources to emit. A cached insight is
// emitted once in full. Otherwise the text is streamed as it is produced
// and cached only after the whole generation succeeded; a failed or
// cancelled stream leaves the cache untouched.
func (g *Generator) Generate(ctx context.Context, sources []news.Article, emit llm.DeltaFunc) (*Result, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	urls := make([]string, len(sources))
	for i, s := range sources {
		urls[i] = s.URL
	}
	key := g.Key(urls)

	cached, ok, err := g.cache.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("insight cache: %w", err)
	}
	if ok && cached != "" {
		if err := emit(cached); err != nil {
			return nil, err
		}
		return &Result{Key: key, Text: cached, Cached: true}, nil
	}

	var sb strings.Builder
	resp, err := g.client.Stream(ctx, &llm.Request{
		Messages: []llm.Message{{Role: "user", Content: BuildPrompt(sources)}},
	}, func(delta string) error {
		sb.WriteString(delta)
		return emit(delta)
	})
	if err != nil {
		return nil, fmt.Errorf("generate insight: %w", err)
	}

	text := sb.String()
	if strings.TrimSpace(text) == "" {
		g.logger.Warn("empty insight not cached", "sources", len(sources))
		return &Result{Key: key, Text: text, Usage: resp}, nil
	}
	if err := g.cache.Set(ctx, key, text, g.ttl); err != nil {
		return nil, fmt.Errorf("insight cache: %w", err)
	}
	g.logger.Info("insight generated",
		"sources", len(sources), "tokens_in", resp.TokensIn, "tokens_out", resp.TokensOut,
		"cost", resp.Cost, "latency_ms", resp.LatencyMs)
	return &Result{Key: key, Text: text, Usage: resp}, nil
}
