package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/RobinCoderZhao/epigram/internal/insight"
	"github.com/RobinCoderZhao/epigram/internal/news"
	"github.com/RobinCoderZhao/epigram/internal/ratelimit"
	"github.com/RobinCoderZhao/epigram/pkg/kv"
	"github.com/RobinCoderZhao/epigram/pkg/llm"
)

type mockFeed struct {
	topics      []news.Topic
	aggregateFn func(topics []news.Topic) ([]news.Article, error)
}

func (m *mockFeed) Aggregate(_ context.Context, topics []news.Topic) ([]news.Article, error) {
	m.topics = topics
	return m.aggregateFn(topics)
}

type mockPopulator struct {
	calls int
	runFn func() (*news.Report, error)
}

func (m *mockPopulator) Run(context.Context, []news.Topic) (*news.Report, error) {
	m.calls++
	if m.runFn == nil {
		return &news.Report{}, nil
	}
	return m.runFn()
}

type mockLimiter struct {
	allowed bool
	err     error
	ids     []string
}

func (m *mockLimiter) Check(_ context.Context, id string) (ratelimit.Decision, error) {
	m.ids = append(m.ids, id)
	return ratelimit.Decision{Allowed: m.allowed, Limit: 5, Reset: time.Unix(60, 0)}, m.err
}

type mockInsights struct {
	calls      int
	generateFn func(sources []news.Article, emit llm.DeltaFunc) (*insight.Result, error)
}

func (m *mockInsights) Generate(_ context.Context, sources []news.Article, emit llm.DeltaFunc) (*insight.Result, error) {
	m.calls++
	return m.generateFn(sources, emit)
}

type mockPinger struct{ err error }

func (m mockPinger) Ping(context.Context) error { return m.err }

func newTestServer(deps Deps) http.Handler {
	if deps.Health == nil {
		deps.Health = mockPinger{}
	}
	return NewServer(deps, Options{SecretHeader: "x-cron-secret", Secret: "s3cret"}).Routes()
}

func TestHealth(t *testing.T) {
	for _, tt := range []struct {
		err  error
		want int
	}{{nil, http.StatusOK}, {errors.New("down"), http.StatusServiceUnavailable}} {
		h := newTestServer(Deps{Health: mockPinger{err: tt.err}})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
		if rec.Code != tt.want {
			t.Fatalf("expected %d, got %d", tt.want, rec.Code)
		}
	}
}

func TestFeed(t *testing.T) {
	feed := &mockFeed{aggregateFn: func([]news.Topic) ([]news.Article, error) {
		return []news.Article{{ID: "1", Title: "One"}}, nil
	}}
	h := newTestServer(Deps{Feed: feed})

	for _, path := range []string{"/news?categories=sports,business", "/api/news?categories=sports,business"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
		if cc := rec.Header().Get("Cache-Control"); cc != "public, s-maxage=300" {
			t.Fatalf("unexpected Cache-Control %q", cc)
		}
		var got []news.Article
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil || len(got) != 1 {
			t.Fatalf("unexpected body: %v %v", got, err)
		}
		if len(feed.topics) != 2 || feed.topics[0] != news.Sports {
			t.Fatalf("unexpected topics %v", feed.topics)
		}
	}
}

func TestFeed_DefaultsAndEmpty(t *testing.T) {
	feed := &mockFeed{aggregateFn: func([]news.Topic) ([]news.Article, error) { return nil, nil }}
	rec := httptest.NewRecorder()
	newTestServer(Deps{Feed: feed}).ServeHTTP(rec, httptest.NewRequest("GET", "/news", nil))

	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %q", rec.Body.String())
	}
	if len(feed.topics) != 4 || feed.topics[0] != news.General {
		t.Fatalf("expected default topics, got %v", feed.topics)
	}
}

func TestFeed_StoreError(t *testing.T) {
	feed := &mockFeed{aggregateFn: func([]news.Topic) ([]news.Article, error) {
		return nil, errors.New("connection refused")
	}}
	rec := httptest.NewRecorder()
	newTestServer(Deps{Feed: feed}).ServeHTTP(rec, httptest.NewRequest("GET", "/news", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

type staticLister struct{}

func (staticLister) List(context.Context, news.Topic, int) ([]news.Listing, error) {
	return []news.Listing{{URL: "https://example.com/a", PublishedAt: "2024-03-01T00:00:00Z"}}, nil
}

type staticFetcher struct{}

func (staticFetcher) Contents(_ context.Context, urls []string) ([]news.RawArticle, error) {
	return []news.RawArticle{{ID: "a", Title: "A", Summary: "s", Text: "t", URL: urls[0], PublishedDate: "2024-03-01T00:00:00Z"}}, nil
}

func TestPopulate_SecretMismatchWritesNothing(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	store := news.NewTopicStore(kv.NewRedisStoreFromClient(rdb))
	pop := news.NewPopulator(staticLister{}, staticFetcher{}, store, news.PopulatorConfig{})
	h := newTestServer(Deps{Populator: pop})

	for _, secret := range []string{"", "wrong"} {
		req := httptest.NewRequest("GET", "/api/news/populate", nil)
		if secret != "" {
			req.Header.Set("x-cron-secret", secret)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("expected no writes, found %v", keys)
	}

	req := httptest.NewRequest("GET", "/news/populate", nil)
	req.Header.Set("x-cron-secret", "s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "Populated news successfully" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
	if len(mr.Keys()) != len(news.AllTopics) {
		t.Fatalf("expected every topic bucket, got %v", mr.Keys())
	}
}

func TestPopulate_UnconfiguredSecretRejects(t *testing.T) {
	pop := &mockPopulator{}
	h := NewServer(Deps{Populator: pop}, Options{SecretHeader: "x-cron-secret"}).Routes()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/news/populate", nil))
	if rec.Code != http.StatusBadRequest || pop.calls != 0 {
		t.Fatalf("expected rejection without running, got %d (calls=%d)", rec.Code, pop.calls)
	}
}

func TestPopulate_Failure(t *testing.T) {
	pop := &mockPopulator{runFn: func() (*news.Report, error) {
		return &news.Report{Topics: []news.TopicReport{{Topic: news.General, Err: "boom"}}}, errors.New("boom")
	}}
	req := httptest.NewRequest("GET", "/news/populate", nil)
	req.Header.Set("x-cron-secret", "s3cret")
	rec := httptest.NewRecorder()
	newTestServer(Deps{Populator: pop}).ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

const insightBody = `{"sources":[{"id":"1","url":"https://example.com/a","text":"body"}]}`

func TestInsights_RateLimited(t *testing.T) {
	limiter := &mockLimiter{allowed: false}
	gen := &mockInsights{}
	req := httptest.NewRequest("POST", "/news/ai-insights", strings.NewReader(insightBody))
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()
	newTestServer(Deps{Limiter: limiter, Insights: gen}).ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if gen.calls != 0 {
		t.Fatal("generator must not run when rate limited")
	}
	if limiter.ids[0] != "203.0.113.7" {
		t.Fatalf("unexpected identity %q", limiter.ids[0])
	}
	if rec.Header().Get("X-RateLimit-Limit") != "5" {
		t.Fatal("expected rate limit headers")
	}
}

func TestInsights_Streams(t *testing.T) {
	gen := &mockInsights{generateFn: func(sources []news.Article, emit llm.DeltaFunc) (*insight.Result, error) {
		if len(sources) != 1 || sources[0].URL != "https://example.com/a" {
			t.Errorf("unexpected sources %+v", sources)
		}
		emit("KEY ")
		emit("TAKEAWAYS")
		return &insight.Result{Text: "KEY TAKEAWAYS"}, nil
	}}
	rec := httptest.NewRecorder()
	newTestServer(Deps{Limiter: &mockLimiter{allowed: true}, Insights: gen}).
		ServeHTTP(rec, httptest.NewRequest("POST", "/api/news/ai-insights", strings.NewReader(insightBody)))

	if rec.Code != http.StatusOK || rec.Body.String() != "KEY TAKEAWAYS" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !rec.Flushed {
		t.Fatal("expected streamed response to be flushed")
	}
}

func TestInsights_FailureBeforeOutput(t *testing.T) {
	gen := &mockInsights{generateFn: func([]news.Article, llm.DeltaFunc) (*insight.Result, error) {
		return nil, errors.New("upstream 500")
	}}
	rec := httptest.NewRecorder()
	newTestServer(Deps{Limiter: &mockLimiter{allowed: true}, Insights: gen}).
		ServeHTTP(rec, httptest.NewRequest("POST", "/news/ai-insights", strings.NewReader(insightBody)))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestInsights_FailureMidStream(t *testing.T) {
	gen := &mockInsights{generateFn: func(_ []news.Article, emit llm.DeltaFunc) (*insight.Result, error) {
		emit("partial")
		return nil, errors.New("stream reset")
	}}
	rec := httptest.NewRecorder()
	newTestServer(Deps{Limiter: &mockLimiter{allowed: true}, Insights: gen}).
		ServeHTTP(rec, httptest.NewRequest("POST", "/news/ai-insights", strings.NewReader(insightBody)))
	if rec.Code != http.StatusOK || rec.Body.String() != "partial" {
		t.Fatalf("expected truncated stream, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestInsights_BadRequest(t *testing.T) {
	for _, body := range []string{"not json", `{"sources":[]}`} {
		gen := &mockInsights{}
		rec := httptest.NewRecorder()
		newTestServer(Deps{Limiter: &mockLimiter{allowed: true}, Insights: gen}).
			ServeHTTP(rec, httptest.NewRequest("POST", "/news/ai-insights", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest || gen.calls != 0 {
			t.Fatalf("body %q: expected 400 without generation, got %d", body, rec.Code)
		}
	}
}

func TestInsights_LimiterError(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(Deps{Limiter: &mockLimiter{err: errors.New("down")}, Insights: &mockInsights{}}).
		ServeHTTP(rec, httptest.NewRequest("POST", "/news/ai-insights", strings.NewReader(insightBody)))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestRoutes_RequestIDAndCORS(t *testing.T) {
	feed := &mockFeed{aggregateFn: func([]news.Topic) ([]news.Article, error) { return nil, nil }}
	h := NewServer(Deps{Feed: feed, Health: mockPinger{}}, Options{
		SecretHeader: "x", Secret: "y", CORSOrigins: []string{"https://epigram.example"},
	}).Routes()

	req := httptest.NewRequest("GET", "/news", nil)
	req.Header.Set("Origin", "https://epigram.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://epigram.example" {
		t.Fatalf("expected CORS header, got %q", got)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("DELETE", "/news", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
