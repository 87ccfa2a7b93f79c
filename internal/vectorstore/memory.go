package vectorstore

import (
	"context"
	"maps"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/ingestion"
)

// Memory keeps records in a map. It backs local runs and tests.
type Memory struct {
	mu        sync.RWMutex
	dimension int
	records   map[string]ingestion.Record
	upserts   int
}

func NewMemory(dimension int) *Memory {
	return &Memory{
		dimension: dimension,
		records:   make(map[string]ingestion.Record),
	}
}

func (m *Memory) EnsureIndex(context.Context) error { return nil }

func (m *Memory) Fetch(ctx context.Context, ids []string) (map[string]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	found := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := m.records[id]; ok {
			found[id] = true
		}
	}
	return found, nil
}

func (m *Memory) Upsert(ctx context.Context, records []ingestion.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkDimension(records, m.dimension); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		r.Vector = append([]float32(nil), r.Vector...)
		r.Metadata = maps.Clone(r.Metadata)
		m.records[r.ID] = r
	}
	m.upserts++
	return nil
}

// Get returns the stored record for id.
func (m *Memory) Get(id string) (ingestion.Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	return r, ok
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Upserts returns the number of Upsert calls that stored records.
func (m *Memory) Upserts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.upserts
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
