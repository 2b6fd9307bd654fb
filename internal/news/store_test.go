package news

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/RobinCoderZhao/epigram/pkg/kv"
)

func newTestStore(t *testing.T) (*TopicStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewTopicStore(kv.NewRedisStoreFromClient(rdb)), mr
}

func TestTopicStore_PutGet(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, Sports); err != nil || ok {
		t.Fatalf("expected absent bucket, got ok=%v err=%v", ok, err)
	}

	first := []Article{art("1", "One", "2024-01-01T00:00:00Z"), art("2", "Two", "2024-01-02T00:00:00Z")}
	if err := store.Put(ctx, Sports, first); err != nil {
		t.Fatal(err)
	}
	second := []Article{art("3", "Three", "2024-01-03T00:00:00Z")}
	if err := store.Put(ctx, Sports, second); err != nil {
		t.Fatal(err)
	}

	got, ok, err := store.Get(ctx, Sports)
	if err != nil || !ok {
		t.Fatalf("expected bucket, got ok=%v err=%v", ok, err)
	}
	if len(got) != 1 || got[0].ID != "3" {
		t.Fatalf("expected bucket to be replaced, got %+v", got)
	}
	if ttl := mr.TTL(BucketKey(Sports)); ttl != 0 {
		t.Fatalf("bucket should not expire, ttl=%v", ttl)
	}
}

func TestTopicStore_EmptyBucket(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, Health, nil); err != nil {
		t.Fatal(err)
	}
	raw, _ := mr.Get("news:health")
	if raw != "[]" {
		t.Fatalf("expected empty JSON array, got %q", raw)
	}
	got, ok, err := store.Get(ctx, Health)
	if err != nil || !ok || len(got) != 0 {
		t.Fatalf("unexpected result %v %v %v", got, ok, err)
	}
}

func TestTopicStore_CorruptBucket(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Set("news:science", "{not json")
	if _, _, err := store.Get(context.Background(), Science); err == nil {
		t.Fatal("expected decode error")
	}
}
