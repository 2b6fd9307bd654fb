// Package news holds the canonical Article model and the population and
// feed pipeline built around per-topic buckets in the key-value store.
package news

import (
	"fmt"
	"strings"
)

// Article is a normalized news item as stored in topic buckets and served
// by the feed.
type Article struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Summary       string `json:"summary"`
	Text          string `json:"text"`
	URL           string `json:"url"`
	PublishedDate string `json:"publishedDate"`
	Image         string `json:"image"`
	Favicon       string `json:"favicon"`
}

// RawArticle is an unvalidated record as returned by a content provider.
type RawArticle struct {
	ID            string `json:"id" validate:"required"`
	Title         string `json:"title" validate:"required,max=500"`
	Summary       string `json:"summary" validate:"required,max=500"`
	Text          string `json:"text" validate:"required"`
	URL           string `json:"url" validate:"required,url|eq=#"`
	PublishedDate string `json:"publishedDate" validate:"required"`
	Image         string `json:"image" validate:"omitempty,url"`
	Favicon       string `json:"favicon" validate:"omitempty,url"`
}

// Topic names a bucket of articles.
type Topic string

const (
	General       Topic = "general"
	Business      Topic = "business"
	Entertainment Topic = "entertainment"
	Health        Topic = "health"
	Science       Topic = "science"
	Sports        Topic = "sports"
	Technology    Topic = "technology"
)

// AllTopics is the population order.
var AllTopics = []Topic{General, Business, Entertainment, Health, Science, Sports, Technology}

// DefaultFeedTopics are read when a feed request names no categories.
var DefaultFeedTopics = []Topic{General, Technology, Science, Health}

// Valid reports whether t is one of the known topics.
func (t Topic) Valid() bool {
	for _, known := range AllTopics {
		if t == known {
			return true
		}
	}
	return false
}

// ParseTopic converts a user-supplied name into a Topic.
func ParseTopic(s string) (Topic, error) {
	t := Topic(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown topic %q", s)
	}
	return t, nil
}

// ParseTopicList splits a comma-separated list, keeping order and skipping
// unknown names. An empty input yields the defaults.
func ParseTopicList(s string) []Topic {
	if strings.TrimSpace(s) == "" {
		return DefaultFeedTopics
	}
	var topics []Topic
	for _, part := range strings.Split(s, ",") {
		t, err := ParseTopic(part)
		if err != nil {
			continue
		}
		topics = append(topics, t)
	}
	return topics
}
