package news

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/RobinCoderZhao/epigram/pkg/notify"
)

type mockLister struct {
	listFn func(topic Topic, limit int) ([]Listing, error)
}

func (m *mockLister) List(_ context.Context, topic Topic, limit int) ([]Listing, error) {
	return m.listFn(topic, limit)
}

type mockFetcher struct {
	calls     int
	contentFn func(urls []string) ([]RawArticle, error)
}

func (m *mockFetcher) Contents(_ context.Context, urls []string) ([]RawArticle, error) {
	m.calls++
	return m.contentFn(urls)
}

type recordingBuckets struct {
	puts map[Topic][]Article
}

func (r *recordingBuckets) Put(_ context.Context, topic Topic, articles []Article) error {
	if r.puts == nil {
		r.puts = make(map[Topic][]Article)
	}
	r.puts[topic] = articles
	return nil
}

type mockNotifier struct {
	sent []notify.Message
}

func (m *mockNotifier) Channel() notify.Channel { return notify.ChannelWebhook }

func (m *mockNotifier) Send(_ context.Context, msg notify.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

// rawFor builds a valid raw article whose extracted date is stale.
func rawFor(url string) RawArticle {
	return RawArticle{
		ID:            url,
		Title:         "Title for " + url,
		Summary:       "summary",
		Text:          "text",
		URL:           url,
		PublishedDate: "2001-01-01T00:00:00Z",
	}
}

func echoFetcher() *mockFetcher {
	return &mockFetcher{contentFn: func(urls []string) ([]RawArticle, error) {
		out := make([]RawArticle, len(urls))
		for i, u := range urls {
			out[i] = rawFor(u)
		}
		return out, nil
	}}
}

func TestPopulator_ExcludesHostsAndOverridesDates(t *testing.T) {
	lister := &mockLister{listFn: func(topic Topic, limit int) ([]Listing, error) {
		if limit != 5 {
			t.Errorf("expected limit 5, got %d", limit)
		}
		return []Listing{
			{URL: "https://news.ycombinator.com/item?id=1", PublishedAt: "2024-03-01T00:00:00+00:00"},
			{URL: "https://example.com/a", PublishedAt: "2024-03-02T10:00:00+00:00"},
			{URL: "::bad", PublishedAt: "2024-03-02T10:00:00+00:00"},
			{URL: "https://jobs.ashbyhq.com/x", PublishedAt: "2024-03-02T10:00:00+00:00"},
		}, nil
	}}
	var requested []string
	fetcher := echoFetcher()
	inner := fetcher.contentFn
	fetcher.contentFn = func(urls []string) ([]RawArticle, error) {
		requested = urls
		return inner(urls)
	}
	buckets := &recordingBuckets{}

	p := NewPopulator(lister, fetcher, buckets, PopulatorConfig{PerTopicLimit: 5, ExcludeHosts: DefaultExcludeHosts})
	report, err := p.Run(context.Background(), []Topic{Technology})
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(requested, []string{"https://example.com/a"}) {
		t.Fatalf("unexpected fetch urls %v", requested)
	}
	stored := buckets.puts[Technology]
	if len(stored) != 1 || stored[0].PublishedDate != "2024-03-02T10:00:00Z" {
		t.Fatalf("expected listing date to win, got %+v", stored)
	}
	if report.RunID == "" || report.Topics[0].Listed != 1 || report.Topics[0].Stored != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestPopulator_IsolatesTopicFailures(t *testing.T) {
	lister := &mockLister{listFn: func(topic Topic, limit int) ([]Listing, error) {
		if topic == Business {
			return nil, errors.New("quota exceeded")
		}
		return []Listing{{URL: "https://example.com/" + string(topic)}}, nil
	}}
	buckets := &recordingBuckets{puts: map[Topic][]Article{Business: {art("old", "Old", "2020-01-01T00:00:00Z")}}}
	notifier := &mockNotifier{}

	p := NewPopulator(lister, echoFetcher(), buckets, PopulatorConfig{}).WithNotifier(notifier)
	report, err := p.Run(context.Background(), []Topic{General, Business, Health})
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected joined error, got %v", err)
	}

	if len(buckets.puts[General]) != 1 || len(buckets.puts[Health]) != 1 {
		t.Fatalf("healthy topics should be stored: %+v", buckets.puts)
	}
	if buckets.puts[Business][0].ID != "old" {
		t.Fatal("failed topic should keep its previous bucket")
	}
	if failed := report.Failed(); len(failed) != 1 || failed[0].Topic != Business {
		t.Fatalf("unexpected failures %+v", failed)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].Fields["business"] == "" {
		t.Fatalf("expected one alert naming business, got %+v", notifier.sent)
	}
}

func TestPopulator_EmptyListingSkipsFetch(t *testing.T) {
	lister := &mockLister{listFn: func(Topic, int) ([]Listing, error) {
		return []Listing{{URL: "https://ycombinator.com/jobs"}}, nil
	}}
	fetcher := echoFetcher()
	buckets := &recordingBuckets{}

	p := NewPopulator(lister, fetcher, buckets, PopulatorConfig{ExcludeHosts: DefaultExcludeHosts})
	if _, err := p.Run(context.Background(), []Topic{Sports}); err != nil {
		t.Fatal(err)
	}
	if fetcher.calls != 0 {
		t.Fatalf("expected no content fetch, got %d calls", fetcher.calls)
	}
	got, ok := buckets.puts[Sports]
	if !ok || len(got) != 0 {
		t.Fatalf("expected empty bucket to be written, got %v (ok=%v)", got, ok)
	}
}

func TestPopulator_DropsInvalidArticles(t *testing.T) {
	lister := &mockLister{listFn: func(Topic, int) ([]Listing, error) {
		return []Listing{{URL: "https://example.com/a"}, {URL: "https://example.com/b"}}, nil
	}}
	fetcher := &mockFetcher{contentFn: func(urls []string) ([]RawArticle, error) {
		bad := rawFor(urls[1])
		bad.Text = ""
		return []RawArticle{rawFor(urls[0]), bad}, nil
	}}
	buckets := &recordingBuckets{}

	report, err := NewPopulator(lister, fetcher, buckets, PopulatorConfig{}).Run(context.Background(), []Topic{Science})
	if err != nil {
		t.Fatal(err)
	}
	tr := report.Topics[0]
	if tr.Fetched != 2 || tr.Stored != 1 || tr.Dropped != 1 {
		t.Fatalf("unexpected counts %+v", tr)
	}
}

func TestPopulator_FetchErrorLeavesBucket(t *testing.T) {
	lister := &mockLister{listFn: func(Topic, int) ([]Listing, error) {
		return []Listing{{URL: "https://example.com/a"}}, nil
	}}
	fetcher := &mockFetcher{contentFn: func([]string) ([]RawArticle, error) {
		return nil, errors.New("provider down")
	}}
	buckets := &recordingBuckets{}

	_, err := NewPopulator(lister, fetcher, buckets, PopulatorConfig{}).Run(context.Background(), []Topic{General})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, written := buckets.puts[General]; written {
		t.Fatal("bucket should not be written on fetch failure")
	}
}
