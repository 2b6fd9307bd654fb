package news

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/RobinCoderZhao/epigram/pkg/notify"
)

// DefaultExcludeHosts lists hosts whose listings never reach a bucket.
var DefaultExcludeHosts = []string{"ycombinator.com", "news.ycombinator.com", "jobs.ashbyhq.com"}

// Listing is a candidate article from a news listing provider. PublishedAt
// is the provider's publication timestamp and takes precedence over any
// date extracted from the page itself.
type Listing struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	PublishedAt string `json:"published_at"`
}

// Lister lists recent article URLs for a topic.
type Lister interface {
	List(ctx context.Context, topic Topic, limit int) ([]Listing, error)
}

// ContentFetcher turns URLs into raw article records.
type ContentFetcher interface {
	Contents(ctx context.Context, urls []string) ([]RawArticle, error)
}

// BucketWriter is the write side of TopicStore.
type BucketWriter interface {
	Put(ctx context.Context, topic Topic, articles []Article) error
}

// TopicReport summarizes one topic of a population run.
type TopicReport struct {
	Topic   Topic  `json:"topic"`
	Listed  int    `json:"listed"`
	Fetched int    `json:"fetched"`
	Stored  int    `json:"stored"`
	Dropped int    `json:"dropped"`
	Err     string `json:"error,omitempty"`
}

// Report summarizes a population run.
type Report struct {
	RunID    string        `json:"run_id"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Topics   []TopicReport `json:"topics"`
}

// Failed returns the topics that did not complete.
func (r *Report) Failed() []TopicReport {
	var failed []TopicReport
	for _, t := range r.Topics {
		if t.Err != "" {
			failed = append(failed, t)
		}
	}
	return failed
}

// PopulatorConfig controls a Populator.
type PopulatorConfig struct {
	PerTopicLimit int
	ExcludeHosts  []string
}

// Populator refreshes topic buckets from a listing provider and a content
// fetcher.
type Populator struct {
	lister   Lister
	fetcher  ContentFetcher
	buckets  BucketWriter
	notifier notify.Notifier
	limit    int
	exclude  map[string]struct{}
	logger   *slog.Logger
}

// NewPopulator creates a Populator. A zero PerTopicLimit means 10.
func NewPopulator(lister Lister, fetcher ContentFetcher, buckets BucketWriter, cfg PopulatorConfig) *Populator {
	if cfg.PerTopicLimit <= 0 {
		cfg.PerTopicLimit = 10
	}
	exclude := make(map[string]struct{}, len(cfg.ExcludeHosts))
	for _, h := range cfg.ExcludeHosts {
		exclude[strings.ToLower(h)] = struct{}{}
	}
	return &Populator{
		lister:  lister,
		fetcher: fetcher,
		buckets: buckets,
		limit:   cfg.PerTopicLimit,
		exclude: exclude,
		logger:  slog.Default(),
	}
}

// WithNotifier sends an alert for every run that has failed topics.
func (p *Populator) WithNotifier(n notify.Notifier) *Populator {
	p.notifier = n
	return p
}

// Run populates each topic in order. A failing topic leaves its bucket
// untouched and does not stop the remaining topics; the failures are joined
// into the returned error.
func (p *Populator) Run(ctx context.Context, topics []Topic) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), Started: time.Now()}
	logger := p.logger.With("run_id", report.RunID)
	logger.Info("population started", "topics", len(topics))

	var errs []error
	for _, topic := range topics {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		tr, err := p.populateTopic(ctx, topic)
		if err != nil {
			tr.Err = err.Error()
			errs = append(errs, fmt.Errorf("populate %s: %w", topic, err))
			logger.Error("topic population failed", "topic", topic, "error", err)
		} else {
			logger.Info("topic populated", "topic", topic,
				"listed", tr.Listed, "fetched", tr.Fetched, "stored", tr.Stored, "dropped", tr.Dropped)
		}
		report.Topics = append(report.Topics, tr)
	}
	report.Duration = time.Since(report.Started)

	runErr := errors.Join(errs...)
	if runErr != nil {
		p.alert(ctx, report)
	}
	logger.Info("population finished", "duration", report.Duration, "failed", len(report.Failed()))
	return report, runErr
}

func (p *Populator) populateTopic(ctx context.Context, topic Topic) (TopicReport, error) {
	tr := TopicReport{Topic: topic}

	listings, err := p.lister.List(ctx, topic, p.limit)
	if err != nil {
		return tr, fmt.Errorf("list: %w", err)
	}
	listings = p.filter(listings)
	tr.Listed = len(listings)

	var articles []Article
	if len(listings) > 0 {
		urls := make([]string, len(listings))
		published := make(map[string]string, len(listings))
		for i, l := range listings {
			urls[i] = l.URL
			published[l.URL] = l.PublishedAt
		}

		raws, err := p.fetcher.Contents(ctx, urls)
		if err != nil {
			return tr, fmt.Errorf("fetch contents: %w", err)
		}
		tr.Fetched = len(raws)

		for i := range raws {
			if at, ok := published[raws[i].URL]; ok && at != "" {
				raws[i].PublishedDate = at
			}
		}
		articles, tr.Dropped = ParseMany(raws)
		if tr.Dropped > 0 {
			p.logger.Warn("dropped invalid articles", "topic", topic, "dropped", tr.Dropped)
		}
	}

	if err := p.buckets.Put(ctx, topic, articles); err != nil {
		return tr, err
	}
	tr.Stored = len(articles)
	return tr, nil
}

// filter removes listings on excluded hosts and listings without a usable URL.
func (p *Populator) filter(listings []Listing) []Listing {
	kept := listings[:0:0]
	for _, l := range listings {
		u, err := url.Parse(l.URL)
		if err != nil || u.Hostname() == "" {
			continue
		}
		if _, skip := p.exclude[strings.ToLower(u.Hostname())]; skip {
			continue
		}
		kept = append(kept, l)
	}
	return kept
}

func (p *Populator) alert(ctx context.Context, report *Report) {
	if p.notifier == nil {
		return
	}
	failed := report.Failed()
	fields := make(map[string]string, len(failed))
	for _, t := range failed {
		fields[string(t.Topic)] = t.Err
	}
	msg := notify.Message{
		Title:  "News population failed",
		Body:   fmt.Sprintf("%d of %d topics failed (run %s)", len(failed), len(report.Topics), report.RunID),
		Level:  notify.LevelError,
		Fields: fields,
	}
	if err := p.notifier.Send(ctx, msg); err != nil {
		p.logger.Error("population alert failed", "run_id", report.RunID, "error", err)
	}
}
