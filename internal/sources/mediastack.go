package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/RobinCoderZhao/epigram/internal/news"
)

const defaultMediastackURL = "https://api.mediastack.com/v1/news"

// Mediastack lists English-language US news by category from the
// mediastack API.
type Mediastack struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewMediastack creates a mediastack lister. An empty baseURL uses the
// public endpoint.
func NewMediastack(apiKey, baseURL string, timeout time.Duration) *Mediastack {
	if baseURL == "" {
		baseURL = defaultMediastackURL
	}
	return &Mediastack{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type mediastackResponse struct {
	Data []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		PublishedAt string `json:"published_at"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// List returns the provider's newest listings for topic.
func (m *Mediastack) List(ctx context.Context, topic news.Topic, limit int) ([]news.Listing, error) {
	q := url.Values{}
	q.Set("access_key", m.apiKey)
	q.Set("languages", "en")
	q.Set("countries", "us")
	q.Set("categories", string(topic))
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, "GET", m.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mediastack %s: %w", topic, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read mediastack response: %w", err)
	}

	var result mediastackResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("mediastack status %d: %w", resp.StatusCode, err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("mediastack %s: %s", result.Error.Code, result.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mediastack returned status %d", resp.StatusCode)
	}

	listings := make([]news.Listing, 0, len(result.Data))
	for _, d := range result.Data {
		listings = append(listings, news.Listing{
			URL:         strings.TrimSpace(d.URL),
			Title:       d.Title,
			PublishedAt: d.PublishedAt,
		})
	}
	return listings, nil
}
