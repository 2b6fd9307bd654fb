package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/RobinCoderZhao/epigram/internal/news"
	"github.com/RobinCoderZhao/epigram/internal/ratelimit"
)

const maxInsightBody = 5 << 20

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Health.Ping(ctx); err != nil {
			s.logger.Error("health check failed", "error", err)
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleFeed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topics := news.ParseTopicList(r.URL.Query().Get("categories"))
		articles, err := s.deps.Feed.Aggregate(r.Context(), topics)
		if err != nil {
			s.logger.Error("feed read failed", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to load news")
			return
		}
		if articles == nil {
			articles = []news.Article{}
		}
		w.Header().Set("Cache-Control", "public, s-maxage=300")
		respondJSON(w, http.StatusOK, articles)
	}
}

func (s *Server) handlePopulate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(s.opts.SecretHeader)
		if s.opts.Secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.Secret)) != 1 {
			respondText(w, http.StatusBadRequest, "Cron secret doesn't match")
			return
		}

		report, err := s.deps.Populator.Run(r.Context(), news.AllTopics)
		if err != nil {
			failed := 0
			if report != nil {
				failed = len(report.Failed())
			}
			s.logger.Error("population failed", "failed_topics", failed, "error", err)
			respondText(w, http.StatusInternalServerError,
				fmt.Sprintf("Population failed for %d of %d topics", failed, len(news.AllTopics)))
			return
		}
		respondText(w, http.StatusOK, "Populated news successfully")
	}
}

type insightRequest struct {
	Sources []news.Article `json:"sources"`
}

func (s *Server) handleInsights() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		decision, err := s.deps.Limiter.Check(r.Context(), ratelimit.Identity(r))
		if err != nil {
			s.logger.Error("rate limit check failed", "error", err)
			respondText(w, http.StatusInternalServerError, "Rate limiter unavailable")
			return
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.Reset.Unix(), 10))
		if !decision.Allowed {
			respondText(w, http.StatusTooManyRequests, "Ratelimited!")
			return
		}

		var req insightRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxInsightBody)).Decode(&req); err != nil {
			respondText(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if len(req.Sources) == 0 {
			respondText(w, http.StatusBadRequest, "No sources provided")
			return
		}

		flusher, _ := w.(http.Flusher)
		started := false
		emit := func(delta string) error {
			if !started {
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.Header().Set("X-Content-Type-Options", "nosniff")
				w.WriteHeader(http.StatusOK)
				started = true
			}
			if _, err := w.Write([]byte(delta)); err != nil {
				return err
			}
			if flusher != nil {
				flusher.Flush()
			}
			return nil
		}

		res, err := s.deps.Insights.Generate(r.Context(), req.Sources, emit)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				s.logger.Info("insight stream cancelled by client")
				return
			}
			s.logger.Error("insight generation failed", "streamed", started, "error", err)
			if !started {
				respondText(w, http.StatusBadGateway, "Failed to generate insight")
			}
			return
		}
		if !started {
			// Nothing was produced; still answer with an empty text body.
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
		}
		s.logger.Debug("insight served", "cached", res.Cached, "sources", len(req.Sources))
	}
}
