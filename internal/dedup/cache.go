// Package dedup remembers which content unit identifiers have already been
// written so repeated deliveries skip the vector store lookup. The cache is
// an optimisation only: misses fall through to the store and errors never
// fail processing.
package dedup

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/redis"
)

const keyPrefix = "ingest:seen:"

// Cache records identifiers that are known to be stored.
type Cache interface {
	// Seen reports which of ids are known to be stored.
	Seen(ctx context.Context, ids []string) (map[string]bool, error)
	// Mark records ids as stored.
	Mark(ctx context.Context, ids []string) error
}

// Redis keeps one key per identifier with a TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Seen(ctx context.Context, ids []string) (map[string]bool, error) {
	seen := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return seen, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = keyPrefix + id
	}
	exists, err := r.client.MExists(ctx, keys...)
	if err != nil {
		return nil, err
	}
	for i, ok := range exists {
		if ok {
			seen[ids[i]] = true
		}
	}
	return seen, nil
}

func (r *Redis) Mark(ctx context.Context, ids []string) error {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = keyPrefix + id
	}
	return r.client.SetMany(ctx, keys, 1, r.ttl)
}

// Noop is used when no cache is configured.
type Noop struct{}

func (Noop) Seen(context.Context, []string) (map[string]bool, error) {
	return map[string]bool{}, nil
}

func (Noop) Mark(context.Context, []string) error { return nil }
