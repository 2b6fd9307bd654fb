package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/RobinCoderZhao/epigram/internal/news"
)

const (
	defaultExaURL = "https://api.exa.ai"

	// SummaryQuery conditions the provider's per-article summary.
	SummaryQuery = "As a professional news editor, summarize this article in 50 words or less"

	imageLinks        = 3
	defaultNumResults = 3
)

// Exa fetches live-crawled article content from the Exa API.
type Exa struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewExa creates an Exa client. An empty baseURL uses the public API.
func NewExa(apiKey, baseURL string, timeout time.Duration) *Exa {
	if baseURL == "" {
		baseURL = defaultExaURL
	}
	return &Exa{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type exaSummary struct {
	Query string `json:"query"`
}

type exaExtras struct {
	ImageLinks int `json:"imageLinks,omitempty"`
}

type exaContentsOptions struct {
	Text      bool        `json:"text"`
	Summary   *exaSummary `json:"summary,omitempty"`
	Extras    *exaExtras  `json:"extras,omitempty"`
	Livecrawl string      `json:"livecrawl"`
}

type exaContentsRequest struct {
	URLs []string `json:"urls"`
	exaContentsOptions
}

type exaSearchRequest struct {
	Query              string             `json:"query"`
	Type               string             `json:"type"`
	NumResults         int                `json:"numResults"`
	StartPublishedDate string             `json:"startPublishedDate,omitempty"`
	Contents           exaContentsOptions `json:"contents"`
}

type exaResult struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	Title         string `json:"title"`
	PublishedDate string `json:"publishedDate"`
	Text          string `json:"text"`
	Summary       string `json:"summary"`
	Image         string `json:"image"`
	Favicon       string `json:"favicon"`
	Extras        struct {
		ImageLinks []string `json:"imageLinks"`
	} `json:"extras"`
}

type exaResponse struct {
	Results []exaResult `json:"results"`
	Error   string      `json:"error"`
}

func contentsOptions() exaContentsOptions {
	return exaContentsOptions{
		Text:      true,
		Summary:   &exaSummary{Query: SummaryQuery},
		Extras:    &exaExtras{ImageLinks: imageLinks},
		Livecrawl: "always",
	}
}

// Contents returns one record per URL the provider could crawl.
func (e *Exa) Contents(ctx context.Context, urls []string) ([]news.RawArticle, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	return e.post(ctx, "/contents", exaContentsRequest{URLs: urls, exaContentsOptions: contentsOptions()})
}

// Search runs a semantic search restricted to articles published after
// opts.StartPublished.
func (e *Exa) Search(ctx context.Context, query string, opts SearchOptions) ([]news.RawArticle, error) {
	if opts.NumResults <= 0 {
		opts.NumResults = defaultNumResults
	}
	req := exaSearchRequest{
		Query:      query,
		Type:       "neural",
		NumResults: opts.NumResults,
		Contents:   contentsOptions(),
	}
	if !opts.StartPublished.IsZero() {
		req.StartPublishedDate = opts.StartPublished.UTC().Format(time.RFC3339)
	}
	return e.post(ctx, "/search", req)
}

func (e *Exa) post(ctx context.Context, path string, payload any) ([]news.RawArticle, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exa %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read exa response: %w", err)
	}

	var result exaResponse
	if err := json.Unmarshal(respBody, &result); err != nil && resp.StatusCode == http.StatusOK {
		return nil, fmt.Errorf("parse exa response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := result.Error
		if msg == "" {
			msg = string(respBody)
		}
		return nil, fmt.Errorf("exa %s: status %d: %s", path, resp.StatusCode, msg)
	}

	articles := make([]news.RawArticle, 0, len(result.Results))
	for _, r := range result.Results {
		image := r.Image
		if image == "" && len(r.Extras.ImageLinks) > 0 {
			image = r.Extras.ImageLinks[0]
		}
		articles = append(articles, news.RawArticle{
			ID:            r.ID,
			Title:         r.Title,
			Summary:       r.Summary,
			Text:          r.Text,
			URL:           r.URL,
			PublishedDate: r.PublishedDate,
			Image:         image,
			Favicon:       r.Favicon,
		})
	}
	return articles, nil
}
