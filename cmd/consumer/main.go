package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/consumer"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/dedup"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/embedding"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/enrichment"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/extractor"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/fetcher"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/ledger"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/vectorstore"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/config"
	rpc "github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/resilience"
)

const healthTimeout = 3 * time.Second

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("trace ingestor terminated", "error", err)
		stop()
		os.Exit(1)
	}
	slog.Info("trace ingestor stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting trace ingestor",
		"topic", cfg.Kafka.Topic,
		"group", cfg.Kafka.ConsumerGroup,
		"bucket", cfg.Storage.Bucket,
		"vector_store", cfg.VectorStore.Backend,
		"index", cfg.VectorStore.IndexName,
	)

	m := metrics.New(prometheus.DefaultRegisterer)
	checker := health.NewChecker()
	newBreaker := func(name string) *resilience.CircuitBreaker {
		cb := resilience.NewCircuitBreaker(name, resilience.CircuitBreakerConfig{
			OnStateChange: func(name string, state resilience.State) {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
			},
		})
		checker.Register(name+"_circuit", func(context.Context) health.ComponentHealth {
			if cb.GetState() == resilience.StateClosed {
				return health.ComponentHealth{Status: health.StatusUp}
			}
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "circuit " + cb.GetState().String()}
		})
		return cb
	}

	if err := kafka.WaitForTopic(ctx, cfg.Kafka); err != nil {
		return err
	}

	counter, err := tokenizer.NewCounter(cfg.Pipeline.Tokenizer)
	if err != nil {
		slog.Warn("tokenizer unavailable, counting words instead", "tokenizer", cfg.Pipeline.Tokenizer, "error", err)
		counter = tokenizer.WordCounter{}
	}

	gcs, err := fetcher.NewGCS(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer gcs.Close()
	checker.RegisterPing("object_storage", healthTimeout, false, gcs.Ping)

	embedder, err := embedding.NewOpenAI(cfg.Embedding, embedding.Options{
		Dimension: cfg.VectorStore.Dimension,
		MaxTokens: cfg.Embedding.MaxTokens,
		Counter:   counter,
		Breaker:   newBreaker("embedding"),
	})
	if err != nil {
		return err
	}

	var pg *postgres.Client
	if cfg.VectorStore.Backend == "pgvector" || cfg.Pipeline.LedgerEnabled {
		pg, err = postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer pg.Close()
		checker.RegisterPing("postgres", healthTimeout, false, pg.Ping)
	}

	store, err := openStore(cfg, pg)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.EnsureIndex(ctx); err != nil {
		return err
	}
	checker.RegisterPing("vector_store", healthTimeout, false, store.Ping)
	guarded := vectorstore.NewGuarded(store, newBreaker("vector_store"))

	var cache dedup.Cache
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("dedup cache unavailable, continuing without it", "addr", cfg.Redis.Addr, "error", err)
		} else {
			defer rdb.Close()
			cache = dedup.NewRedis(rdb, cfg.Redis.CacheTTL)
			checker.RegisterPing("redis", healthTimeout, true, rdb.Ping)
		}
	}

	var recorder ledger.Recorder
	if cfg.Pipeline.LedgerEnabled {
		ls := ledger.NewStore(pg)
		if err := ls.EnsureSchema(ctx); err != nil {
			return err
		}
		recorder = ls
	}

	proc := pipeline.New(pipeline.Config{
		BatchSize:     cfg.Pipeline.BatchSize,
		MinUnitLength: cfg.Pipeline.MinUnitLength,
	}, pipeline.Deps{
		Fetcher:   gcs,
		Extractor: extractor.NewRegistry(),
		Scorer:    enrichment.NewScorer(counter, cfg.Pipeline.SentimentMaxTokens),
		Embedder:  embedder,
		Store:     guarded,
		Cache:     cache,
		Ledger:    recorder,
		Metrics:   m,
	})

	source, err := kafka.NewGroupConsumer(cfg.Kafka, func(generation int32, partitions []int) {
		m.PartitionsAssigned.Set(float64(len(partitions)))
	})
	if err != nil {
		return err
	}

	opts := []consumer.Option{consumer.WithMetrics(m)}
	if cfg.Kafka.DeadLetterTopic != "" {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.DeadLetterTopic)
		defer producer.Close()
		opts = append(opts, consumer.WithDeadLetter(producer))
		slog.Info("dead-letter routing enabled", "topic", cfg.Kafka.DeadLetterTopic)
	}
	loop := consumer.New(source, proc, cfg.Pipeline, opts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Port, m, map[string]http.Handler{
			"/health/live":  checker.LiveHandler(),
			"/health/ready": checker.ReadyHandler(),
		})
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}
	return g.Wait()
}

func openStore(cfg *config.Config, pg *postgres.Client) (vectorstore.Store, error) {
	vs := cfg.VectorStore
	switch vs.Backend {
	case "pgvector":
		return vectorstore.NewPGVector(pg, vs.IndexName, vs.Dimension), nil
	case "qdrant":
		return vectorstore.NewQdrant(rpc.ClientConfig{
			Addr:      cfg.Qdrant.Addr,
			APIKey:    cfg.Qdrant.APIKey,
			TLS:       cfg.Qdrant.TLS,
			KeepAlive: cfg.Qdrant.KeepAlive,
		}, vs.IndexName, vs.Dimension)
	case "memory":
		slog.Warn("using in-memory vector store, records are lost on exit")
		return vectorstore.NewMemory(vs.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown vector store backend %q", vs.Backend)
	}
}
