package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/RobinCoderZhao/epigram/internal/config"
	"github.com/RobinCoderZhao/epigram/internal/content"
	"github.com/RobinCoderZhao/epigram/internal/insight"
	"github.com/RobinCoderZhao/epigram/internal/news"
	"github.com/RobinCoderZhao/epigram/internal/ratelimit"
	"github.com/RobinCoderZhao/epigram/internal/sources"
	"github.com/RobinCoderZhao/epigram/pkg/kv"
	"github.com/RobinCoderZhao/epigram/pkg/llm"
	"github.com/RobinCoderZhao/epigram/pkg/notify"
)

// app holds the process-wide clients. The LLM client and content fetcher
// are built on first use; Close releases everything.
type app struct {
	cfg     *config.Config
	store   kv.Store
	llm     llm.Client
	fetcher content.Fetcher
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	store, err := kv.Open(ctx, cfg.KV)
	if err != nil {
		return nil, fmt.Errorf("open kv store: %w", err)
	}
	return &app{cfg: cfg, store: store}, nil
}

func (a *app) contentFetcher() (content.Fetcher, error) {
	if a.fetcher == nil {
		f, err := content.New(a.cfg.Content)
		if err != nil {
			return nil, err
		}
		a.fetcher = f
	}
	return a.fetcher, nil
}

func (a *app) populator() (*news.Populator, error) {
	lister, err := sources.New(a.cfg.Listing)
	if err != nil {
		return nil, err
	}
	fetcher, err := a.contentFetcher()
	if err != nil {
		return nil, err
	}
	p := news.NewPopulator(lister, fetcher, news.NewTopicStore(a.store), news.PopulatorConfig{
		PerTopicLimit: a.cfg.Listing.PerTopicLimit,
		ExcludeHosts:  a.cfg.Populate.ExcludeHosts,
	})
	if a.cfg.Populate.Alert.URL != "" {
		p.WithNotifier(notify.NewWebhookNotifier(a.cfg.Populate.Alert))
	}
	return p, nil
}

func (a *app) insights() (*insight.Generator, error) {
	if a.llm == nil {
		client, err := llm.NewClient(a.cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("create llm client: %w", err)
		}
		a.llm = client
	}
	return insight.NewGenerator(a.llm, a.store, a.cfg.Insights), nil
}

func (a *app) limiter() *ratelimit.Limiter {
	return ratelimit.New(a.store, "ai-insight", a.cfg.RateLimit)
}

func (a *app) Close() error {
	var errs []error
	if a.llm != nil {
		errs = append(errs, a.llm.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}
