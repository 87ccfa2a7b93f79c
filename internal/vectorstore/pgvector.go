package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/postgres"
)

// PGVector stores records in a Postgres table with a vector column and an
// HNSW cosine index.
type PGVector struct {
	client    *postgres.Client
	table     string
	dimension int
	logger    *slog.Logger
}

func NewPGVector(client *postgres.Client, indexName string, dimension int) *PGVector {
	return &PGVector{
		client:    client,
		table:     indexName,
		dimension: dimension,
		logger:    slog.Default().With("component", "pgvector", "table", indexName),
	}
}

func (p *PGVector) EnsureIndex(ctx context.Context) error {
	table := pq.QuoteIdentifier(p.table)
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, table, p.dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`,
			pq.QuoteIdentifier(p.table+"_embedding_hnsw"), table),
	}
	for _, stmt := range stmts {
		if _, err := p.client.DB.ExecContext(ctx, stmt); err != nil {
			return apperrors.Wrap(apperrors.ErrConnection, err, "creating vector index "+p.table)
		}
	}

	var existing int
	err := p.client.DB.QueryRowContext(ctx,
		`SELECT atttypmod FROM pg_attribute WHERE attrelid = $1::regclass AND attname = 'embedding'`,
		table,
	).Scan(&existing)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return apperrors.Wrap(apperrors.ErrConnection, err, "reading vector index dimension")
	}
	if existing > 0 && existing != p.dimension {
		return apperrors.Newf(apperrors.ErrConfiguration,
			"vector index %s has dimension %d, configured %d", p.table, existing, p.dimension)
	}
	p.logger.Info("vector index ready", "dimension", p.dimension, "metric", "cosine")
	return nil
}

func (p *PGVector) Fetch(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	query := fmt.Sprintf(`SELECT id FROM %s WHERE id = ANY($1)`, pq.QuoteIdentifier(p.table))
	rows, err := p.client.DB.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("fetching %d ids: %w", len(ids), err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		found[id] = true
	}
	return found, rows.Err()
}

func (p *PGVector) Upsert(ctx context.Context, records []ingestion.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := checkDimension(records, p.dimension); err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, embedding, metadata, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE
		SET embedding = EXCLUDED.embedding,
		    metadata = EXCLUDED.metadata,
		    updated_at = now()`, pq.QuoteIdentifier(p.table))

	return p.client.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer stmt.Close()
		for _, r := range records {
			meta, err := json.Marshal(r.Metadata)
			if err != nil {
				return fmt.Errorf("encoding metadata of %s: %w", r.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, r.ID, pgvector.NewVector(r.Vector), meta); err != nil {
				return fmt.Errorf("upserting %s: %w", r.ID, err)
			}
		}
		return nil
	})
}

func (p *PGVector) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close is a no-op; the shared Postgres client is closed by its owner.
func (p *PGVector) Close() error { return nil }
