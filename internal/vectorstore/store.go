// Package vectorstore persists embedded content units. Backends (pgvector,
// Qdrant, in-memory) share one interface and are safe for concurrent use.
// Writes are idempotent: upserting an existing identifier overwrites it.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/resilience"
)

// Store is a vector index keyed by content unit identifier.
type Store interface {
	// EnsureIndex creates the index with cosine similarity if it is missing
	// and fails when an existing index has a different dimension.
	EnsureIndex(ctx context.Context) error
	// Fetch reports which of ids are already stored.
	Fetch(ctx context.Context, ids []string) (map[string]bool, error)
	// Upsert inserts or overwrites records.
	Upsert(ctx context.Context, records []ingestion.Record) error
	Ping(ctx context.Context) error
	Close() error
}

// Guarded routes reads and writes of a Store through a circuit breaker and
// tags failures as upstream outages.
type Guarded struct {
	Store
	breaker *resilience.CircuitBreaker
}

func NewGuarded(store Store, breaker *resilience.CircuitBreaker) *Guarded {
	return &Guarded{Store: store, breaker: breaker}
}

func (g *Guarded) Fetch(ctx context.Context, ids []string) (map[string]bool, error) {
	var found map[string]bool
	err := g.breaker.Execute(func() error {
		var err error
		found, err = g.Store.Fetch(ctx, ids)
		return err
	})
	if err != nil {
		return nil, upstream(err, "vector store fetch")
	}
	return found, nil
}

func (g *Guarded) Upsert(ctx context.Context, records []ingestion.Record) error {
	err := g.breaker.Execute(func() error {
		return g.Store.Upsert(ctx, records)
	})
	if err != nil {
		return upstream(err, fmt.Sprintf("vector store upsert of %d records", len(records)))
	}
	return nil
}

func upstream(err error, what string) error {
	if apperrors.Classify(err) != apperrors.KindTransient {
		return err
	}
	return apperrors.Wrap(apperrors.ErrUpstreamUnavailable, err, what)
}

func checkDimension(records []ingestion.Record, dim int) error {
	for _, r := range records {
		if dim > 0 && len(r.Vector) != dim {
			return apperrors.Newf(apperrors.ErrUnexpected, "record %s has %d dimensions, index expects %d", r.ID, len(r.Vector), dim)
		}
	}
	return nil
}
