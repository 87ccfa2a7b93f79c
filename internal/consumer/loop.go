// Package consumer drives the ingestion loop: it polls the event log, hands
// each event to the processing pipeline on a bounded worker pool and commits
// offsets strictly in order, only once the event's side effects are durable.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/metrics"
)

const (
	stageDeadline = "deadline"
	stageDispatch = "dispatch"

	deadLetterTimeout = 10 * time.Second
)

// Source is the event log as seen by the loop.
type Source interface {
	// Poll waits up to timeout for the next event and returns (nil, nil)
	// when nothing arrived.
	Poll(ctx context.Context, timeout time.Duration) (*kafka.Event, error)
	// Commit marks ev and every earlier offset of its partition consumed.
	Commit(ev kafka.Event) error
	Close() error
}

// Processor runs the pipeline for one event payload.
type Processor interface {
	Process(ctx context.Context, payload []byte) pipeline.Result
}

// DeadLetterPublisher receives events that can never be processed.
type DeadLetterPublisher interface {
	PublishDeadLetter(ctx context.Context, dl kafka.DeadLetter) error
}

// Option configures a Loop.
type Option func(*Loop)

// WithDeadLetter publishes permanent failures to p and lets their offsets be
// committed. Without it permanent failures block their partition like any
// other failure.
func WithDeadLetter(p DeadLetterPublisher) Option {
	return func(l *Loop) { l.deadLetter = p }
}

// WithMetrics records loop metrics in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loop) { l.metrics = m }
}

type outcome struct {
	ev     kafka.Event
	result pipeline.Result
}

// Loop is the single goroutine that owns polling, dispatch and commit state.
type Loop struct {
	source     Source
	processor  Processor
	deadLetter DeadLetterPublisher
	cfg        config.PipelineConfig
	metrics    *metrics.Metrics
	logger     *slog.Logger

	cursors  map[int]*cursor
	inFlight int
}

// New builds a Loop. Zero durations and sizes fall back to defaults, and
// MaxInFlight is capped at WorkerPoolSize.
func New(source Source, processor Processor, cfg config.PipelineConfig, opts ...Option) *Loop {
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 5
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 1
	}
	if cfg.MaxInFlight > cfg.WorkerPoolSize {
		cfg.MaxInFlight = cfg.WorkerPoolSize
	}
	if cfg.PerMessageDeadline <= 0 {
		cfg.PerMessageDeadline = 10 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = time.Second
	}
	if cfg.ErrorPause <= 0 {
		cfg.ErrorPause = time.Second
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 15 * time.Second
	}
	l := &Loop{
		source:    source,
		processor: processor,
		cfg:       cfg,
		logger:    slog.Default().With("component", "ingest-loop"),
		cursors:   make(map[int]*cursor),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run polls until ctx is cancelled, then drains in-flight work for up to
// ShutdownGrace. The worker pool and the source are released on every
// return path. Run returns nil after a requested shutdown.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		if err := l.source.Close(); err != nil {
			l.logger.Warn("closing event source", "error", err)
		}
	}()

	pool, err := ants.NewPool(l.cfg.WorkerPoolSize,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p any) {
			l.logger.Error("worker panic", "panic", p)
		}),
		ants.WithLogger(antsLogger{l.logger}),
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrConfiguration, err, "creating worker pool")
	}
	defer pool.Release()

	results := make(chan outcome, l.cfg.MaxInFlight)
	l.logger.Info("ingest loop started",
		"workers", l.cfg.WorkerPoolSize,
		"max_in_flight", l.cfg.MaxInFlight,
		"deadline", l.cfg.PerMessageDeadline,
	)

	runErr := l.poll(ctx, pool, results)
	l.drain(ctx, results)
	return runErr
}

func (l *Loop) poll(ctx context.Context, pool *ants.Pool, results chan outcome) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		if l.inFlight >= l.cfg.MaxInFlight {
			select {
			case o := <-results:
				l.handle(ctx, o)
			case <-ctx.Done():
				return nil
			}
			continue
		}
		l.collect(ctx, results)

		ev, err := l.source.Poll(ctx, l.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, kafka.ErrConsumerClosed) {
				return err
			}
			l.logger.Error("poll failed", "error", err, "pause", l.cfg.ErrorPause)
			if l.metrics != nil {
				l.metrics.PollErrorsTotal.Inc()
			}
			select {
			case <-time.After(l.cfg.ErrorPause):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		if ev == nil {
			continue
		}
		l.dispatch(ctx, pool, *ev, results)
	}
}

// collect handles every outcome that is already available without waiting.
func (l *Loop) collect(ctx context.Context, results chan outcome) {
	for {
		select {
		case o := <-results:
			l.handle(ctx, o)
		default:
			return
		}
	}
}

func (l *Loop) drain(ctx context.Context, results chan outcome) {
	if l.inFlight == 0 {
		l.logger.Info("ingest loop stopped")
		return
	}
	l.logger.Info("waiting for in-flight messages", "in_flight", l.inFlight, "grace", l.cfg.ShutdownGrace)
	grace := time.NewTimer(l.cfg.ShutdownGrace)
	defer grace.Stop()
	for l.inFlight > 0 {
		select {
		case o := <-results:
			l.handle(ctx, o)
		case <-grace.C:
			l.logger.Warn("shutdown grace expired, abandoning in-flight messages", "in_flight", l.inFlight)
			return
		}
	}
	l.logger.Info("ingest loop stopped")
}

// dispatch submits ev to the pool. Exactly one outcome is delivered for it:
// the worker's result, a timeout when the deadline passes first, or a
// dispatch failure.
func (l *Loop) dispatch(ctx context.Context, pool *ants.Pool, ev kafka.Event, results chan<- outcome) {
	cur, ok := l.cursorFor(ev)
	if !ok {
		return
	}
	cur.track(ev)
	l.inFlight++
	if l.metrics != nil {
		l.metrics.MessagesInFlight.Inc()
	}

	msgCtx := logger.WithMessage(context.WithoutCancel(ctx), ev.Topic, ev.Partition, ev.Offset)
	workCtx, cancel := context.WithTimeout(msgCtx, l.cfg.PerMessageDeadline)

	var once sync.Once
	deliver := func(o outcome) bool {
		delivered := false
		once.Do(func() {
			delivered = true
			results <- o
		})
		return delivered
	}

	timer := time.AfterFunc(l.cfg.PerMessageDeadline, func() {
		if deliver(outcome{ev: ev, result: pipeline.Result{
			Outcome: pipeline.TransientFailure,
			Stage:   stageDeadline,
			Err:     apperrors.Newf(apperrors.ErrTimeout, "no result within %s", l.cfg.PerMessageDeadline),
		}}) {
			cancel()
		}
	})

	err := pool.Submit(func() {
		defer cancel()
		res := l.processor.Process(workCtx, ev.Value)
		timer.Stop()
		if !deliver(outcome{ev: ev, result: res}) {
			l.logger.Debug("late result discarded",
				"partition", ev.Partition,
				"offset", ev.Offset,
				"outcome", res.Outcome.String(),
			)
		}
	})
	if err != nil {
		timer.Stop()
		cancel()
		deliver(outcome{ev: ev, result: pipeline.Result{
			Outcome: pipeline.TransientFailure,
			Stage:   stageDispatch,
			Err:     apperrors.Wrap(apperrors.ErrUnexpected, err, "submitting to worker pool"),
		}})
	}
}

// cursorFor returns the cursor of ev's partition, replacing it when ev comes
// from a newer generation. Events from an older generation are dropped; the
// new owner of the partition redelivers them.
func (l *Loop) cursorFor(ev kafka.Event) (*cursor, bool) {
	cur := l.cursors[ev.Partition]
	switch {
	case cur == nil:
		cur = newCursor(ev.Generation)
		l.cursors[ev.Partition] = cur
	case ev.Generation > cur.generation:
		l.logger.Info("partition reassigned, resetting commit cursor",
			"partition", ev.Partition,
			"generation", ev.Generation,
			"previous_generation", cur.generation,
			"abandoned", cur.outstanding(),
		)
		cur = newCursor(ev.Generation)
		l.cursors[ev.Partition] = cur
	case ev.Generation < cur.generation:
		l.logger.Warn("dropping event from revoked generation",
			"partition", ev.Partition,
			"offset", ev.Offset,
			"generation", ev.Generation,
		)
		return nil, false
	}
	return cur, true
}

func (l *Loop) handle(ctx context.Context, o outcome) {
	l.inFlight--
	if l.metrics != nil {
		l.metrics.MessagesInFlight.Dec()
	}
	ev, res := o.ev, o.result
	log := l.logger.With("partition", ev.Partition, "offset", ev.Offset)

	switch res.Stage {
	case stageDeadline, stageDispatch:
		log.Error("message failed before completing", "stage", res.Stage, "error", res.Err)
		if l.metrics != nil {
			l.metrics.MessagesTotal.WithLabelValues(res.Outcome.String(), string(res.Stage)).Inc()
		}
	}

	cur := l.cursors[ev.Partition]
	if cur == nil || cur.generation != ev.Generation {
		log.Info("outcome belongs to a revoked generation, not committing",
			"generation", ev.Generation,
			"outcome", res.Outcome.String(),
		)
		return
	}

	ok := res.Outcome == pipeline.Success
	if res.Outcome == pipeline.PermanentFailure && l.deadLetter != nil {
		ok = l.publishDeadLetter(ctx, log, ev, res)
	}

	commit, held := cur.resolve(ev.Offset, ok)
	if held > 0 {
		log.Warn("successful offsets held behind a failed offset", "held", held)
		if l.metrics != nil {
			l.metrics.CommitsHeldTotal.Add(float64(held))
		}
	}
	if commit != nil {
		l.commit(*commit)
	}
}

func (l *Loop) commit(ev kafka.Event) {
	if err := l.source.Commit(ev); err != nil {
		l.logger.Error("offset commit failed",
			"partition", ev.Partition,
			"offset", ev.Offset,
			"generation", ev.Generation,
			"error", err,
		)
		if l.metrics != nil {
			l.metrics.CommitFailuresTotal.Inc()
		}
		return
	}
	l.logger.Debug("offset committed", "partition", ev.Partition, "offset", ev.Offset)
	if l.metrics != nil {
		l.metrics.CommitsTotal.Inc()
	}
}

func (l *Loop) publishDeadLetter(ctx context.Context, log *slog.Logger, ev kafka.Event, res pipeline.Result) bool {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deadLetterTimeout)
	defer cancel()
	reason := ""
	if res.Err != nil {
		reason = res.Err.Error()
	}
	err := l.deadLetter.PublishDeadLetter(dctx, kafka.DeadLetter{
		SourceTopic: ev.Topic,
		Partition:   ev.Partition,
		Offset:      ev.Offset,
		Stage:       string(res.Stage),
		Reason:      reason,
		Payload:     string(ev.Value),
		FailedAt:    time.Now().UTC(),
	})
	if err != nil {
		log.Error("dead-letter publish failed, holding offset", "error", err)
		return false
	}
	log.Warn("permanent failure dead-lettered", "stage", res.Stage, "reason", reason)
	if l.metrics != nil {
		l.metrics.DeadLetteredTotal.Inc()
	}
	return true
}

type antsLogger struct {
	logger *slog.Logger
}

func (a antsLogger) Printf(format string, args ...any) {
	a.logger.Warn(fmt.Sprintf(format, args...))
}
