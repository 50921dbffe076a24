// Package snapshotstore mirrors a document's snapshot bytes into redis,
// keyed by document key and checkpoint, so a server can hand a catching
// up client its snapshot without replaying the full change log from
// scratch. It is a read-side cache, not the system of record: the
// change log (replayed through pkg/document.ApplyChangePack) remains
// authoritative, and a cache miss just means falling back to replay
// (spec §6 NON-GOALS: "no on-disk persistence format for live document
// state... only the opaque snapshot-bytes cache").
//
// Grounded on the teacher's storage/redis_client.go wrapper, trimmed to
// the handful of string operations a byte-blob cache actually needs.
package snapshotstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

// Client is the subset of *redis.Client the store depends on, so tests
// can swap in a fake without a live redis server.
type Client interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Store mirrors document snapshots into redis.
type Store struct {
	client Client
	ttl    time.Duration
}

// New wraps an existing redis client. ttl of 0 means entries never
// expire.
func New(client Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Dial opens a *redis.Client against addr/db and wraps it, mirroring
// the teacher's NewCustomRedisClient connectivity check.
func Dial(ctx context.Context, addr string, db int, ttl time.Duration) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("snapshotstore: dial %s: %w", addr, err)
	}
	return New(client, ttl), nil
}

// cacheKey renders the redis key for a document snapshot at checkpoint:
// one entry per (document, server sequence) pair, since that is the
// point a snapshot is valid as of.
func cacheKey(documentKey string, checkpoint doctime.Checkpoint) string {
	return fmt.Sprintf("crdtdoc:snapshot:%s:%d", documentKey, checkpoint.ServerSeq)
}

// Put mirrors a snapshot blob for documentKey as of checkpoint.
func (s *Store) Put(ctx context.Context, documentKey string, checkpoint doctime.Checkpoint, snapshot []byte) error {
	if err := s.client.Set(ctx, cacheKey(documentKey, checkpoint), snapshot, s.ttl).Err(); err != nil {
		return fmt.Errorf("snapshotstore: put %s: %w", documentKey, err)
	}
	return nil
}

// Get returns the cached snapshot bytes for documentKey as of
// checkpoint, and whether one was found.
func (s *Store) Get(ctx context.Context, documentKey string, checkpoint doctime.Checkpoint) ([]byte, bool, error) {
	v, err := s.client.Get(ctx, cacheKey(documentKey, checkpoint)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("snapshotstore: get %s: %w", documentKey, err)
	}
	return v, true, nil
}

// Evict drops the cached snapshot for documentKey as of checkpoint, for
// example after garbage_collect changes what a from-scratch replay
// would produce.
func (s *Store) Evict(ctx context.Context, documentKey string, checkpoint doctime.Checkpoint) error {
	if err := s.client.Del(ctx, cacheKey(documentKey, checkpoint)).Err(); err != nil {
		return fmt.Errorf("snapshotstore: evict %s: %w", documentKey, err)
	}
	return nil
}
