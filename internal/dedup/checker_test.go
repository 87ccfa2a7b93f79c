package dedup

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/metrics"
)

type mapCache struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (c *mapCache) Seen(_ context.Context, ids []string) (map[string]bool, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]bool{}
	for _, id := range ids {
		if c.seen[id] {
			out[id] = true
		}
	}
	return out, nil
}

func (c *mapCache) Mark(_ context.Context, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.seen[id] = true
	}
	return nil
}

type mapLookup struct {
	stored map[string]bool
	err    error
	calls  [][]string
}

func (l *mapLookup) Fetch(_ context.Context, ids []string) (map[string]bool, error) {
	l.calls = append(l.calls, ids)
	if l.err != nil {
		return nil, l.err
	}
	out := map[string]bool{}
	for _, id := range ids {
		if l.stored[id] {
			out[id] = true
		}
	}
	return out, nil
}

func TestExistingConsultsCacheThenStore(t *testing.T) {
	cache := &mapCache{seen: map[string]bool{"a": true}}
	store := &mapLookup{stored: map[string]bool{"a": true, "b": true}}
	m := metrics.New(nil)
	c := NewChecker(cache, store, m)

	got := c.Existing(context.Background(), nil, []string{"a", "b", "c"})
	assert.Equal(t, map[string]bool{"a": true, "b": true}, got)
	assert.Equal(t, [][]string{{"b", "c"}}, store.calls)
	assert.True(t, cache.seen["b"], "store hits are backfilled into the cache")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DedupCacheTotal.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DedupCacheTotal.WithLabelValues("miss")))
}

func TestExistingSkipsStoreOnFullCacheHit(t *testing.T) {
	cache := &mapCache{seen: map[string]bool{"a": true, "b": true}}
	store := &mapLookup{}
	c := NewChecker(cache, store, nil)

	got := c.Existing(context.Background(), nil, []string{"a", "b"})
	assert.Len(t, got, 2)
	assert.Empty(t, store.calls)
}

func TestExistingFailsOpen(t *testing.T) {
	cache := &mapCache{err: errors.New("redis down")}
	store := &mapLookup{err: errors.New("store down")}
	c := NewChecker(cache, store, nil)

	got := c.Existing(context.Background(), nil, []string{"a", "b"})
	assert.Empty(t, got)
	assert.Len(t, store.calls, 1)
}

func TestNoopCache(t *testing.T) {
	store := &mapLookup{stored: map[string]bool{"a": true}}
	c := NewChecker(nil, store, nil)
	got := c.Existing(context.Background(), nil, []string{"a", "b"})
	assert.Equal(t, map[string]bool{"a": true}, got)
	c.Mark(context.Background(), nil, []string{"b"})
}
