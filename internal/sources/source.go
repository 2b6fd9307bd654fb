// Package sources lists candidate article URLs per topic from news listing
// providers.
package sources

import (
	"fmt"
	"time"

	"github.com/RobinCoderZhao/epigram/internal/news"
)

// Provider names a listing backend.
type Provider string

const (
	ProviderMediastack Provider = "mediastack"
	ProviderRSS        Provider = "rss"
)

// Config selects and configures the listing provider.
type Config struct {
	Provider         Provider            `yaml:"provider" env:"EPIGRAM_LISTING_PROVIDER"`
	MediastackAPIKey string              `yaml:"mediastack_api_key" env:"MEDIASTACK_API_KEY"`
	MediastackURL    string              `yaml:"mediastack_url"`
	RSSFeeds         map[string][]string `yaml:"rss_feeds"`
	PerTopicLimit    int                 `yaml:"per_topic_limit" env:"PER_TOPIC_NEWS_LIMIT"`
	Timeout          time.Duration       `yaml:"timeout"`
}

// New builds the configured Lister.
func New(cfg Config) (news.Lister, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	switch cfg.Provider {
	case ProviderMediastack, "":
		if cfg.MediastackAPIKey == "" {
			return nil, fmt.Errorf("mediastack: api key is required")
		}
		return NewMediastack(cfg.MediastackAPIKey, cfg.MediastackURL, cfg.Timeout), nil
	case ProviderRSS:
		feeds := make(map[news.Topic][]string, len(cfg.RSSFeeds))
		for name, urls := range cfg.RSSFeeds {
			topic, err := news.ParseTopic(name)
			if err != nil {
				return nil, fmt.Errorf("rss feeds: %w", err)
			}
			feeds[topic] = urls
		}
		return NewRSS(feeds, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported listing provider: %s", cfg.Provider)
	}
}
