// Package api provides the HTTP server for the news feed, population
// trigger and AI insights.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/RobinCoderZhao/epigram/internal/insight"
	"github.com/RobinCoderZhao/epigram/internal/news"
	"github.com/RobinCoderZhao/epigram/internal/ratelimit"
	"github.com/RobinCoderZhao/epigram/pkg/llm"
)

// FeedReader builds the merged feed.
type FeedReader interface {
	Aggregate(ctx context.Context, topics []news.Topic) ([]news.Article, error)
}

// Populator refreshes topic buckets.
type Populator interface {
	Run(ctx context.Context, topics []news.Topic) (*news.Report, error)
}

// InsightGenerator streams insights.
type InsightGenerator interface {
	Generate(ctx context.Context, sources []news.Article, emit llm.DeltaFunc) (*insight.Result, error)
}

// Limiter gates insight requests.
type Limiter interface {
	Check(ctx context.Context, identity string) (ratelimit.Decision, error)
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the server delegates to.
type Deps struct {
	Feed      FeedReader
	Populator Populator
	Insights  InsightGenerator
	Limiter   Limiter
	Health    Pinger
}

// Options configure request handling.
type Options struct {
	SecretHeader string
	Secret       string
	CORSOrigins  []string
}

// Server holds the dependencies for the API.
type Server struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
}

// NewServer creates a new API Server instance.
func NewServer(deps Deps, opts Options) *Server {
	return &Server{
		deps:   deps,
		opts:   opts,
		logger: slog.Default(),
	}
}

// Routes returns the configured http.Handler for the API. Every news route
// is also served under /api.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth())

	for _, prefix := range []string{"", "/api"} {
		mux.HandleFunc("GET "+prefix+"/news", s.handleFeed())
		mux.HandleFunc("GET "+prefix+"/news/populate", s.handlePopulate())
		mux.HandleFunc("POST "+prefix+"/news/ai-insights", s.handleInsights())
	}

	return s.middleware(mux)
}

// --- Helpers ---

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
