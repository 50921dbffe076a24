package snapshotstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

// fakeClient is an in-memory stand-in for the subset of *redis.Client
// Store depends on, in the style of the teacher's MockRedisClient.
type fakeClient struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeClient() *fakeClient {
	return &fakeClient{data: make(map[string]string)}
}

func (f *fakeClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	cmd := redis.NewStatusCmd(ctx, "set")
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeClient) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewStringCmd(ctx, "get")
	if v, ok := f.data[key]; ok {
		cmd.SetVal(v)
	} else {
		cmd.SetErr(redis.Nil)
	}
	return cmd
}

func (f *fakeClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	cmd := redis.NewIntCmd(ctx, "del")
	cmd.SetVal(n)
	return cmd
}

func TestStorePutGetRoundTrips(t *testing.T) {
	s := New(newFakeClient(), time.Minute)
	ctx := context.Background()
	cp := doctime.Checkpoint{ServerSeq: 4, ClientSeq: 1}

	if err := s.Put(ctx, "doc-1", cp, []byte("snapshot-bytes")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.Get(ctx, "doc-1", cp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("Get() ok = false, want true")
	}
	if string(got) != "snapshot-bytes" {
		t.Fatalf("Get() = %q, want %q", got, "snapshot-bytes")
	}
}

func TestStoreGetMissReportsNotFound(t *testing.T) {
	s := New(newFakeClient(), time.Minute)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "doc-missing", doctime.Checkpoint{ServerSeq: 1})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("Get() ok = true on a cache miss, want false")
	}
}

func TestStoreKeysAreScopedByCheckpoint(t *testing.T) {
	s := New(newFakeClient(), time.Minute)
	ctx := context.Background()

	cp1 := doctime.Checkpoint{ServerSeq: 1}
	cp2 := doctime.Checkpoint{ServerSeq: 2}

	if err := s.Put(ctx, "doc-1", cp1, []byte("v1")); err != nil {
		t.Fatalf("Put cp1: %v", err)
	}
	if err := s.Put(ctx, "doc-1", cp2, []byte("v2")); err != nil {
		t.Fatalf("Put cp2: %v", err)
	}

	v1, _, _ := s.Get(ctx, "doc-1", cp1)
	v2, _, _ := s.Get(ctx, "doc-1", cp2)

	if string(v1) != "v1" || string(v2) != "v2" {
		t.Fatalf("checkpoint-scoped entries collided: v1=%q v2=%q", v1, v2)
	}
}

func TestStoreEvictRemovesEntry(t *testing.T) {
	s := New(newFakeClient(), time.Minute)
	ctx := context.Background()
	cp := doctime.Checkpoint{ServerSeq: 1}

	if err := s.Put(ctx, "doc-1", cp, []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Evict(ctx, "doc-1", cp); err != nil {
		t.Fatalf("Evict: %v", err)
	}

	_, ok, err := s.Get(ctx, "doc-1", cp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("entry survived Evict")
	}
}
