package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/RobinCoderZhao/epigram/internal/news"
)

// RSS lists articles from RSS or Atom feeds configured per topic.
type RSS struct {
	feeds  map[news.Topic][]string
	client *http.Client
	logger *slog.Logger
}

// NewRSS creates an RSS lister.
func NewRSS(feeds map[news.Topic][]string, timeout time.Duration) *RSS {
	return &RSS{
		feeds:  feeds,
		client: &http.Client{Timeout: timeout},
		logger: slog.Default(),
	}
}

type feedResult struct {
	url      string
	listings []news.Listing
	err      error
}

// List fetches every feed for topic concurrently and returns up to limit
// items, newest first. A topic without feeds lists nothing. Feeds that fail
// are skipped unless all of them fail.
func (r *RSS) List(ctx context.Context, topic news.Topic, limit int) ([]news.Listing, error) {
	urls := r.feeds[topic]
	if len(urls) == 0 {
		return nil, nil
	}

	ch := make(chan feedResult, len(urls))
	for _, u := range urls {
		go func(feedURL string) {
			listings, err := r.fetch(ctx, feedURL)
			ch <- feedResult{url: feedURL, listings: listings, err: err}
		}(u)
	}

	var (
		all  []news.Listing
		errs []error
		at   = make(map[string]time.Time)
	)
	for range urls {
		res := <-ch
		if res.err != nil {
			r.logger.Warn("rss feed failed", "topic", topic, "feed", res.url, "error", res.err)
			errs = append(errs, res.err)
			continue
		}
		for _, l := range res.listings {
			if _, dup := at[l.URL]; dup {
				continue
			}
			t, _ := time.Parse(time.RFC3339, l.PublishedAt)
			at[l.URL] = t
			all = append(all, l)
		}
	}
	if len(errs) == len(urls) {
		return nil, errors.Join(errs...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return at[all[i].URL].After(at[all[j].URL])
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *RSS) fetch(ctx context.Context, feedURL string) ([]news.Listing, error) {
	parser := gofeed.NewParser()
	parser.Client = r.client
	parser.UserAgent = "Epigram/1.0"

	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}

	listings := make([]news.Listing, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link == "" {
			continue
		}
		var published string
		switch {
		case item.PublishedParsed != nil:
			published = item.PublishedParsed.UTC().Format(time.RFC3339)
		case item.UpdatedParsed != nil:
			published = item.UpdatedParsed.UTC().Format(time.RFC3339)
		}
		listings = append(listings, news.Listing{
			URL:         item.Link,
			Title:       item.Title,
			PublishedAt: published,
		})
	}
	return listings, nil
}
