package news

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/RobinCoderZhao/epigram/pkg/kv"
)

// TopicStore persists one JSON-encoded article list per topic. Writes
// replace the bucket; there is no expiry and no merge.
type TopicStore struct {
	kv kv.Store
}

// NewTopicStore creates a TopicStore on top of the given key-value store.
func NewTopicStore(store kv.Store) *TopicStore {
	return &TopicStore{kv: store}
}

// BucketKey returns the storage key for a topic.
func BucketKey(topic Topic) string {
	return "news:" + string(topic)
}

// Put overwrites the bucket for topic.
func (s *TopicStore) Put(ctx context.Context, topic Topic, articles []Article) error {
	if articles == nil {
		articles = []Article{}
	}
	data, err := json.Marshal(articles)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	if err := s.kv.Set(ctx, BucketKey(topic), string(data), 0); err != nil {
		return fmt.Errorf("store %s: %w", topic, err)
	}
	return nil
}

// Get returns the bucket for topic. ok is false when nothing has been stored.
func (s *TopicStore) Get(ctx context.Context, topic Topic) ([]Article, bool, error) {
	data, ok, err := s.kv.Get(ctx, BucketKey(topic))
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", topic, err)
	}
	if !ok {
		return nil, false, nil
	}
	var articles []Article
	if err := json.Unmarshal([]byte(data), &articles); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", topic, err)
	}
	return articles, true, nil
}
