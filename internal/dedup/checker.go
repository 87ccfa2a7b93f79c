package dedup

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/metrics"
)

// Lookup reports which identifiers exist in the authoritative store.
type Lookup interface {
	Fetch(ctx context.Context, ids []string) (map[string]bool, error)
}

// Checker answers "is this unit already stored" from the cache first and the
// store second. Lookup failures are logged and treated as "not stored",
// which is safe because writes are idempotent.
type Checker struct {
	cache   Cache
	cached  bool
	store   Lookup
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewChecker builds a Checker. A nil cache disables caching and m may be nil.
func NewChecker(cache Cache, store Lookup, m *metrics.Metrics) *Checker {
	cached := cache != nil
	if !cached {
		cache = Noop{}
	}
	return &Checker{
		cache:   cache,
		cached:  cached,
		store:   store,
		metrics: m,
		logger:  slog.Default().With("component", "dedup"),
	}
}

// Existing returns the subset of ids already stored.
func (c *Checker) Existing(ctx context.Context, logger *slog.Logger, ids []string) map[string]bool {
	if logger == nil {
		logger = c.logger
	}
	existing := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return existing
	}

	seen, err := c.cache.Seen(ctx, ids)
	if err != nil {
		logger.Warn("dedup cache lookup failed, falling back to store", "error", err)
		c.count("error", 1)
		seen = nil
	}
	misses := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			existing[id] = true
			continue
		}
		misses = append(misses, id)
	}
	c.count("hit", len(ids)-len(misses))
	c.count("miss", len(misses))
	if len(misses) == 0 {
		return existing
	}

	found, err := c.store.Fetch(ctx, misses)
	if err != nil {
		logger.Warn("existence check failed, treating units as new", "ids", len(misses), "error", err)
		return existing
	}
	var backfill []string
	for _, id := range misses {
		if found[id] {
			existing[id] = true
			backfill = append(backfill, id)
		}
	}
	if len(backfill) > 0 {
		c.Mark(ctx, logger, backfill)
	}
	return existing
}

// Mark records ids as stored in the cache. Failures are logged only.
func (c *Checker) Mark(ctx context.Context, logger *slog.Logger, ids []string) {
	if len(ids) == 0 {
		return
	}
	if logger == nil {
		logger = c.logger
	}
	if err := c.cache.Mark(ctx, ids); err != nil {
		logger.Warn("dedup cache update failed", "ids", len(ids), "error", err)
	}
}

func (c *Checker) count(result string, n int) {
	if c.metrics == nil || !c.cached || n == 0 {
		return
	}
	c.metrics.DedupCacheTotal.WithLabelValues(result).Add(float64(n))
}
