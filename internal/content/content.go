// Package content turns article URLs or search queries into raw article
// records using an external retrieval service or a direct page scrape.
package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RobinCoderZhao/epigram/internal/news"
)

// ErrSearchUnsupported is returned by providers that cannot search.
var ErrSearchUnsupported = errors.New("search not supported by content provider")

// SearchOptions bounds a search.
type SearchOptions struct {
	NumResults     int
	StartPublished time.Time
}

// Fetcher retrieves full article records.
type Fetcher interface {
	Contents(ctx context.Context, urls []string) ([]news.RawArticle, error)
	Search(ctx context.Context, query string, opts SearchOptions) ([]news.RawArticle, error)
}

// Provider names a content backend.
type Provider string

const (
	ProviderExa    Provider = "exa"
	ProviderScrape Provider = "scrape"
)

// Config selects and configures the content provider.
type Config struct {
	Provider    Provider      `yaml:"provider" env:"EPIGRAM_CONTENT_PROVIDER"`
	ExaAPIKey   string        `yaml:"exa_api_key" env:"EXA_API_KEY"`
	ExaBaseURL  string        `yaml:"exa_base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"`
}

// New builds the configured Fetcher.
func New(cfg Config) (Fetcher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	switch cfg.Provider {
	case ProviderExa, "":
		if cfg.ExaAPIKey == "" {
			return nil, fmt.Errorf("exa: api key is required")
		}
		return NewExa(cfg.ExaAPIKey, cfg.ExaBaseURL, cfg.Timeout), nil
	case ProviderScrape:
		return NewScrape(nil, cfg.Concurrency), nil
	default:
		return nil, fmt.Errorf("unsupported content provider: %s", cfg.Provider)
	}
}
