package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/RobinCoderZhao/epigram/internal/news"
	"github.com/RobinCoderZhao/epigram/pkg/scraper"
)

const summaryRunes = 300

// Scrape fetches pages directly and derives article records from their
// markup. Pages that fail are left out of the result.
type Scrape struct {
	fetcher     scraper.Fetcher
	opts        *scraper.FetchOptions
	concurrency int
	logger      *slog.Logger
}

// NewScrape creates a scraping provider. A nil fetcher uses an HTTP fetcher.
func NewScrape(fetcher scraper.Fetcher, concurrency int) *Scrape {
	if fetcher == nil {
		fetcher = scraper.NewHTTPFetcher()
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	opts := scraper.DefaultFetchOptions()
	return &Scrape{
		fetcher:     fetcher,
		opts:        opts,
		concurrency: concurrency,
		logger:      slog.Default(),
	}
}

// Contents scrapes each URL, preserving input order. It fails only when
// every URL fails.
func (s *Scrape) Contents(ctx context.Context, urls []string) ([]news.RawArticle, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	results := make([]*news.RawArticle, len(urls))
	errs := make([]error, len(urls))
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}
			defer func() { <-sem }()

			res, err := s.fetcher.Fetch(ctx, u, s.opts)
			if err != nil {
				errs[i] = err
				return
			}
			raw := toRaw(u, res)
			results[i] = &raw
		}(i, u)
	}
	wg.Wait()

	var (
		articles []news.RawArticle
		failed   []error
	)
	for i, r := range results {
		if r == nil {
			s.logger.Warn("scrape failed", "url", urls[i], "error", errs[i])
			failed = append(failed, errs[i])
			continue
		}
		articles = append(articles, *r)
	}
	if len(failed) == len(urls) {
		return nil, fmt.Errorf("scrape: %w", errors.Join(failed...))
	}
	return articles, nil
}

// Search is not available without a search index.
func (s *Scrape) Search(context.Context, string, SearchOptions) ([]news.RawArticle, error) {
	return nil, ErrSearchUnsupported
}

func toRaw(requested string, res *scraper.FetchResult) news.RawArticle {
	summary := res.Meta.Description
	if summary == "" {
		summary = res.CleanText
	}
	return news.RawArticle{
		ID:            uuid.NewString(),
		Title:         res.Meta.Title,
		Summary:       truncate(strings.Join(strings.Fields(summary), " "), summaryRunes),
		Text:          res.CleanText,
		URL:           requested,
		PublishedDate: res.Meta.PublishedTime,
		Image:         res.Meta.Image,
		Favicon:       res.Meta.Favicon,
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
