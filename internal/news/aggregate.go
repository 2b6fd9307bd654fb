package news

import (
	"context"
	"sort"
	"time"
)

// FeedLimit caps the number of articles returned by Aggregate.
const FeedLimit = 100

// BucketReader is the read side of TopicStore.
type BucketReader interface {
	Get(ctx context.Context, topic Topic) ([]Article, bool, error)
}

// Aggregator builds the feed from topic buckets.
type Aggregator struct {
	buckets BucketReader
	limit   int
}

// NewAggregator creates an Aggregator returning at most FeedLimit articles.
func NewAggregator(buckets BucketReader) *Aggregator {
	return &Aggregator{buckets: buckets, limit: FeedLimit}
}

// Aggregate reads topics in order, drops repeated titles keeping the first,
// sorts newest first and truncates. Missing buckets contribute nothing.
func (a *Aggregator) Aggregate(ctx context.Context, topics []Topic) ([]Article, error) {
	var all []Article
	for _, t := range topics {
		articles, ok, err := a.buckets.Get(ctx, t)
		if err != nil {
			return nil, err
		}
		if ok {
			all = append(all, articles...)
		}
	}

	merged := Merge(all)
	if len(merged) > a.limit {
		merged = merged[:a.limit]
	}
	return merged, nil
}

// Merge deduplicates by title, then sorts by publication date descending.
// Articles whose date does not parse keep their relative order after all
// dated ones.
func Merge(articles []Article) []Article {
	seen := make(map[string]struct{}, len(articles))
	unique := make([]Article, 0, len(articles))
	for _, art := range articles {
		if _, dup := seen[art.Title]; dup {
			continue
		}
		seen[art.Title] = struct{}{}
		unique = append(unique, art)
	}

	type keyed struct {
		at    time.Time
		valid bool
	}
	keys := make([]keyed, len(unique))
	for i, art := range unique {
		t, err := parseTime(art.PublishedDate)
		keys[i] = keyed{at: t, valid: err == nil}
	}
	idx := make([]int, len(unique))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		a, b := keys[idx[i]], keys[idx[j]]
		if a.valid != b.valid {
			return a.valid
		}
		return a.valid && a.at.After(b.at)
	})

	out := make([]Article, len(unique))
	for i, k := range idx {
		out[i] = unique[k]
	}
	return out
}
