// Package ledger keeps one row per processed document in PostgreSQL so that
// failed documents can be found and replayed by hand.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/postgres"
)

// Entry is the outcome of processing one event.
type Entry struct {
	Document  string
	Location  string
	Status    string
	Stage     string
	Reason    string
	Units     int
	Written   int
	Skipped   int
	Partition int
	Offset    int64
}

// Recorder stores ledger entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Store persists entries in the `ingestion_ledger` table:
//
//	CREATE TABLE ingestion_ledger (
//	    document   TEXT NOT NULL,
//	    location   TEXT PRIMARY KEY,
//	    status     TEXT NOT NULL,
//	    stage      TEXT NOT NULL,
//	    reason     TEXT NOT NULL DEFAULT '',
//	    units      INTEGER NOT NULL DEFAULT 0,
//	    written    INTEGER NOT NULL DEFAULT 0,
//	    skipped    INTEGER NOT NULL DEFAULT 0,
//	    partition  INTEGER NOT NULL,
//	    "offset"   BIGINT NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewStore creates a ledger backed by db.
func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "ledger"),
	}
}

const schema = `CREATE TABLE IF NOT EXISTS ingestion_ledger (
	document   TEXT NOT NULL,
	location   TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	stage      TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	units      INTEGER NOT NULL DEFAULT 0,
	written    INTEGER NOT NULL DEFAULT 0,
	skipped    INTEGER NOT NULL DEFAULT 0,
	partition  INTEGER NOT NULL,
	"offset"   BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// EnsureSchema creates the ledger table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating ingestion_ledger: %w", err)
	}
	return nil
}

// Record inserts or replaces the row for e.Location.
func (s *Store) Record(ctx context.Context, e Entry) error {
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO ingestion_ledger
			(document, location, status, stage, reason, units, written, skipped, partition, "offset", updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (location) DO UPDATE SET
			document = EXCLUDED.document,
			status = EXCLUDED.status,
			stage = EXCLUDED.stage,
			reason = EXCLUDED.reason,
			units = EXCLUDED.units,
			written = EXCLUDED.written,
			skipped = EXCLUDED.skipped,
			partition = EXCLUDED.partition,
			"offset" = EXCLUDED."offset",
			updated_at = EXCLUDED.updated_at`,
		e.Document, e.Location, e.Status, e.Stage, truncate(e.Reason, 2048),
		e.Units, e.Written, e.Skipped, e.Partition, e.Offset, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording ledger entry for %s: %w", e.Location, err)
	}
	s.logger.Debug("ledger entry recorded", "location", e.Location, "status", e.Status)
	return nil
}

// Noop discards entries.
type Noop struct{}

func (Noop) Record(context.Context, Entry) error { return nil }

// truncate cuts s to at most max bytes without splitting a UTF-8 sequence,
// which Postgres would reject.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
