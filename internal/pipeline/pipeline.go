// Package pipeline turns one document-reference event into upserted vector
// records: decode, fetch, extract, segment, dedup, enrich, embed and flush.
// Every failure is classified as permanent or transient so the consumer loop
// can decide whether the offset may be committed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/dedup"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/embedding"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/enrichment"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/extractor"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/fetcher"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/ledger"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/upsert"
	apperrors "github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/tracing"
)

const ledgerTimeout = 5 * time.Second

// TextExtractor converts raw document bytes into text, choosing the format
// from the file name.
type TextExtractor interface {
	Extract(ctx context.Context, filename string, data []byte) (string, error)
}

// SentimentScorer scores the polarity of a text.
type SentimentScorer interface {
	Score(text string) ingestion.Sentiment
}

// Store is the part of the vector store the pipeline reads and writes.
type Store interface {
	dedup.Lookup
	upsert.Sink
}

// Deps are the collaborators of a Pipeline. Cache, Ledger and Metrics are
// optional.
type Deps struct {
	Fetcher   fetcher.Fetcher
	Extractor TextExtractor
	Scorer    SentimentScorer
	Embedder  embedding.Embedder
	Store     Store
	Cache     dedup.Cache
	Ledger    ledger.Recorder
	Metrics   *metrics.Metrics
}

// Config tunes a Pipeline. Zero values fall back to defaults.
type Config struct {
	BatchSize     int
	MinUnitLength int
}

// Pipeline is safe for concurrent use; each Process call owns its own
// upsert writer.
type Pipeline struct {
	deps    Deps
	checker *dedup.Checker
	cfg     Config
}

// New builds a Pipeline.
func New(cfg Config, deps Deps) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = upsert.DefaultCapacity
	}
	if cfg.MinUnitLength <= 0 {
		cfg.MinUnitLength = extractor.DefaultMinUnitLength
	}
	if deps.Ledger == nil {
		deps.Ledger = ledger.Noop{}
	}
	if deps.Scorer == nil {
		deps.Scorer = enrichment.NewScorer(nil, 0)
	}
	return &Pipeline{
		deps:    deps,
		checker: dedup.NewChecker(deps.Cache, deps.Store, deps.Metrics),
		cfg:     cfg,
	}
}

// Process runs every stage for one event payload. It never panics and never
// returns a Success result with a non-nil error.
func (p *Pipeline) Process(ctx context.Context, payload []byte) (res Result) {
	start := time.Now()
	log := logger.FromContext(ctx).With("component", "pipeline")
	ctx, root := tracing.StartSpan(ctx, "process", "")
	log = log.With("trace_id", root.TraceID)

	res.Stage = StageDecode
	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline panic recovered",
				"stage", res.Stage,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			res.Err = apperrors.Newf(apperrors.ErrUnexpected, "panic in %s stage: %v", res.Stage, r)
		}
		p.classify(ctx, &res)
		root.SetAttr("outcome", res.Outcome.String())
		root.SetAttr("stage", string(res.Stage))
		root.EndWithError(res.Err)
		root.Log(log)
		p.finish(ctx, log, res, time.Since(start))
	}()

	res.Err = p.run(ctx, log, payload, &res)
	return res
}

func (p *Pipeline) run(ctx context.Context, log *slog.Logger, payload []byte, res *Result) error {
	var ref ingestion.DocumentReference
	err := p.stage(ctx, res, StageDecode, func(context.Context) error {
		var err error
		ref, err = validator.Decode(payload)
		return err
	})
	if err != nil {
		return err
	}
	res.Reference = ref
	log = log.With("document", ref.ObjectName())

	var data []byte
	if err := p.stage(ctx, res, StageFetch, func(ctx context.Context) error {
		var err error
		data, err = p.deps.Fetcher.Fetch(ctx, ref)
		return err
	}); err != nil {
		return err
	}

	var text string
	if err := p.stage(ctx, res, StageExtract, func(ctx context.Context) error {
		var err error
		text, err = p.deps.Extractor.Extract(ctx, ref.DocumentName(), data)
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return apperrors.Newf(apperrors.ErrMalformedDocument, "no text extracted from %s", ref.ObjectName())
		}
		return nil
	}); err != nil {
		return err
	}

	var units []ingestion.ContentUnit
	if err := p.stage(ctx, res, StageSegment, func(ctx context.Context) error {
		units = extractor.Segment(text, p.cfg.MinUnitLength)
		if len(units) == 0 {
			return apperrors.Newf(apperrors.ErrMalformedDocument, "no content units found in %s", ref.ObjectName())
		}
		tracing.SpanFromContext(ctx).SetAttr("units", len(units))
		return nil
	}); err != nil {
		return err
	}
	res.Units = len(units)

	name := ref.DocumentName()
	var pending []ingestion.ContentUnit
	if err := p.stage(ctx, res, StageDedup, func(ctx context.Context) error {
		ids := make([]string, len(units))
		for i, u := range units {
			ids[i] = ingestion.Identifier(name, u.Index)
		}
		existing := p.checker.Existing(ctx, log, ids)
		for i, u := range units {
			if !existing[ids[i]] {
				pending = append(pending, u)
			}
		}
		res.Skipped = len(units) - len(pending)
		tracing.SpanFromContext(ctx).SetAttr("skipped", res.Skipped)
		return nil
	}); err != nil {
		return err
	}
	if len(pending) == 0 {
		log.Info("all content units already stored", "units", len(units))
		res.Stage = StageComplete
		return nil
	}

	writer := upsert.NewWriter(p.deps.Store, p.cfg.BatchSize, func(ctx context.Context, ids []string) {
		p.checker.Mark(ctx, log, ids)
		if p.deps.Metrics != nil {
			p.deps.Metrics.UpsertBatchesTotal.WithLabelValues("ok").Inc()
		}
	})
	defer func() { res.Written = writer.Flushed() }()

	err = p.stage(ctx, res, StageEmbed, func(ctx context.Context) error {
		for _, u := range pending {
			if err := ctx.Err(); err != nil {
				return apperrors.Wrap(apperrors.ErrTimeout, err, "embedding content units")
			}
			res.Stage = StageEnrich
			sentiment := p.deps.Scorer.Score(u.Text)

			res.Stage = StageEmbed
			vector, err := p.deps.Embedder.Embed(ctx, u.Text)
			if err != nil {
				return fmt.Errorf("embedding unit %d: %w", u.Index, err)
			}

			res.Stage = StageFlush
			if err := writer.Add(ctx, buildRecord(name, u, sentiment, vector)); err != nil {
				p.countFailedBatch()
				return err
			}
			res.Stage = StageEmbed
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := p.stage(ctx, res, StageFlush, func(ctx context.Context) error {
		if err := writer.Flush(ctx); err != nil {
			p.countFailedBatch()
			return err
		}
		tracing.SpanFromContext(ctx).SetAttr("batches", writer.Batches())
		return nil
	}); err != nil {
		return err
	}

	res.Stage = StageComplete
	return nil
}

// stage runs fn under a child span. The stage recorded in res may be moved
// forward by fn itself.
func (p *Pipeline) stage(ctx context.Context, res *Result, name Stage, fn func(ctx context.Context) error) error {
	res.Stage = name
	ctx, span := tracing.StartChildSpan(ctx, string(name))
	err := fn(ctx)
	span.EndWithError(err)
	return err
}

func buildRecord(document string, u ingestion.ContentUnit, s ingestion.Sentiment, vector []float32) ingestion.Record {
	return ingestion.Record{
		ID:     ingestion.Identifier(document, u.Index),
		Vector: vector,
		Metadata: map[string]any{
			ingestion.MetaQuestion:          u.Title,
			ingestion.MetaSourceFile:        document,
			ingestion.MetaChunkID:           u.Index,
			ingestion.MetaCommentCount:      u.ResponseCount,
			ingestion.MetaSentimentNegative: enrichment.Round(s.Negative, 4),
			ingestion.MetaSentimentNeutral:  enrichment.Round(s.Neutral, 4),
			ingestion.MetaSentimentPositive: enrichment.Round(s.Positive, 4),
			ingestion.MetaText:              u.Text,
		},
	}
}

// classify sets res.Outcome from res.Err. Errors observed after the context
// expired are reported as timeouts unless they are already permanent.
func (p *Pipeline) classify(ctx context.Context, res *Result) {
	if res.Err == nil {
		res.Outcome = Success
		return
	}
	if apperrors.IsPermanent(res.Err) {
		res.Outcome = PermanentFailure
		return
	}
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(res.Err, apperrors.ErrTimeout) {
		res.Err = apperrors.Wrap(apperrors.ErrTimeout, res.Err, ctxErr.Error())
	}
	res.Outcome = TransientFailure
}

func (p *Pipeline) finish(ctx context.Context, log *slog.Logger, res Result, elapsed time.Duration) {
	attrs := []any{
		"outcome", res.Outcome.String(),
		"stage", res.Stage,
		"units", res.Units,
		"written", res.Written,
		"skipped", res.Skipped,
		"duration_ms", elapsed.Milliseconds(),
	}
	switch res.Outcome {
	case Success:
		log.Info("document processed", attrs...)
	case PermanentFailure:
		log.Warn("document rejected", append(attrs, "error", res.Err)...)
	default:
		log.Error("document processing failed", append(attrs, "error", res.Err)...)
	}

	if m := p.deps.Metrics; m != nil {
		m.MessagesTotal.WithLabelValues(res.Outcome.String(), string(res.Stage)).Inc()
		m.ProcessingDuration.WithLabelValues(res.Outcome.String()).Observe(elapsed.Seconds())
		m.UnitsTotal.WithLabelValues("written").Add(float64(res.Written))
		m.UnitsTotal.WithLabelValues("skipped").Add(float64(res.Skipped))
	}

	if res.Reference.ObjectName() == "" {
		return
	}
	entry := ledger.Entry{
		Document: res.Reference.DocumentName(),
		Location: res.Reference.ObjectName(),
		Status:   res.Outcome.String(),
		Stage:    string(res.Stage),
		Units:    res.Units,
		Written:  res.Written,
		Skipped:  res.Skipped,
	}
	if res.Err != nil {
		entry.Reason = res.Err.Error()
	}
	if msg, ok := logger.MessageFromContext(ctx); ok {
		entry.Partition = msg.Partition
		entry.Offset = msg.Offset
	}
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerTimeout)
	defer cancel()
	if err := p.deps.Ledger.Record(lctx, entry); err != nil {
		log.Warn("ledger update failed", "error", err)
	}
}

func (p *Pipeline) countFailedBatch() {
	if p.deps.Metrics != nil {
		p.deps.Metrics.UpsertBatchesTotal.WithLabelValues("error").Inc()
	}
}
