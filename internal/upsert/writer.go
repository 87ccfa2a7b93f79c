// Package upsert provides a batch-oriented writer that accumulates enriched
// records in memory and flushes them to the vector store in fixed-size
// batches.
package upsert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/ingestion"
)

// DefaultCapacity is the batch size used when none is configured.
const DefaultCapacity = 100

// Sink receives flushed batches.
type Sink interface {
	Upsert(ctx context.Context, records []ingestion.Record) error
}

// FlushFunc observes every successfully flushed batch.
type FlushFunc func(ctx context.Context, ids []string)

// Writer buffers records and writes them to a Sink whenever the buffer
// reaches capacity. A Writer belongs to a single pipeline call and is not
// safe for concurrent use.
type Writer struct {
	sink     Sink
	buffer   []ingestion.Record
	capacity int
	onFlush  FlushFunc
	flushed  int
	batches  int
	logger   *slog.Logger
}

// NewWriter creates a Writer that flushes every capacity records. onFlush
// may be nil.
func NewWriter(sink Sink, capacity int, onFlush FlushFunc) *Writer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Writer{
		sink:     sink,
		buffer:   make([]ingestion.Record, 0, capacity),
		capacity: capacity,
		onFlush:  onFlush,
		logger:   slog.Default().With("component", "upsert-writer"),
	}
}

// Add appends rec to the buffer and flushes synchronously once the buffer is
// full. A flush error is returned to the caller; earlier batches stay written.
func (w *Writer) Add(ctx context.Context, rec ingestion.Record) error {
	w.buffer = append(w.buffer, rec)
	if len(w.buffer) >= w.capacity {
		return w.Flush(ctx)
	}
	return nil
}

// Flush writes whatever is buffered. An empty buffer is a no-op. On error
// the buffer is kept so the caller can see what was not written.
func (w *Writer) Flush(ctx context.Context) error {
	if len(w.buffer) == 0 {
		return nil
	}
	batch := w.buffer
	if err := w.sink.Upsert(ctx, batch); err != nil {
		w.logger.Error("batch flush failed",
			"batch_size", len(batch),
			"flushed_so_far", w.flushed,
			"error", err,
		)
		return fmt.Errorf("flushing batch of %d records: %w", len(batch), err)
	}
	w.flushed += len(batch)
	w.batches++
	w.logger.Debug("batch flushed", "records", len(batch))

	if w.onFlush != nil {
		ids := make([]string, len(batch))
		for i, r := range batch {
			ids[i] = r.ID
		}
		w.onFlush(ctx, ids)
	}
	w.buffer = make([]ingestion.Record, 0, w.capacity)
	return nil
}

// Buffered returns the number of records not yet flushed.
func (w *Writer) Buffered() int {
	return len(w.buffer)
}

// Flushed returns the number of records written so far.
func (w *Writer) Flushed() int {
	return w.flushed
}

// Batches returns the number of successful flushes.
func (w *Writer) Batches() int {
	return w.batches
}
