// Command backfill publishes a document reference event for every object
// under a bucket prefix, so existing documents can be (re)ingested by the
// consumer. Re-publishing is safe: units already in the vector store are
// skipped by the dedup stage.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/fetcher"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/logger"
)

type Config struct {
	Brokers     []string
	Topic       string
	Bucket      string
	ProjectID   string
	Prefix      string
	Concurrency int
	DryRun      bool
}

func main() {
	_ = godotenv.Load()

	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger.Setup(envOr("LOG_LEVEL", "info"), "text")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("=== Document Backfill ===")
	fmt.Printf("Source:      gs://%s/%s\n", cfg.Bucket, cfg.Prefix)
	fmt.Printf("Topic:       %s\n", cfg.Topic)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Println()

	start := time.Now()
	stats, err := run(ctx, cfg)
	printReport(stats, time.Since(start))
	if err != nil {
		fmt.Fprintf(os.Stderr, "backfill stopped: %v\n", err)
		os.Exit(1)
	}
	if stats.failed.Load() > 0 {
		os.Exit(1)
	}
}

// parseFlags reads the command line. Defaults come from the same environment
// variables the consumer reads, so an unconfigured backfill publishes to the
// topic an unconfigured consumer consumes.
func parseFlags(args []string) (Config, error) {
	fs := flag.NewFlagSet("backfill", flag.ContinueOnError)
	brokers := fs.String("brokers", envOr("BOOTSTRAP_SERVERS", "localhost:9092"), "comma-separated Kafka brokers")
	topic := fs.String("topic", envOr("TOPIC", config.DefaultTopic), "topic the consumer reads")
	bucket := fs.String("bucket", os.Getenv("BUCKET_NAME"), "bucket holding the documents")
	project := fs.String("project", os.Getenv("GCP_PROJECT"), "project billed for requester-pays buckets")
	prefix := fs.String("prefix", "", "only objects whose name starts with this prefix")
	concurrency := fs.Int("concurrency", 8, "number of concurrent publishers")
	dryRun := fs.Bool("dry-run", false, "list the references without publishing")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Brokers:     strings.Split(*brokers, ","),
		Topic:       *topic,
		Bucket:      *bucket,
		ProjectID:   *project,
		Prefix:      *prefix,
		Concurrency: max(*concurrency, 1),
		DryRun:      *dryRun,
	}
	if cfg.Bucket == "" {
		return Config{}, errors.New("bucket is required (-bucket or BUCKET_NAME)")
	}
	return cfg, nil
}

type publisher interface {
	Publish(ctx context.Context, key string, value any, headers map[string]string) error
}

type lister interface {
	List(ctx context.Context, prefix string, fn func(ingestion.DocumentReference) error) error
}

func run(ctx context.Context, cfg Config) (*Stats, error) {
	gcs, err := fetcher.NewGCS(ctx, config.StorageConfig{Bucket: cfg.Bucket, ProjectID: cfg.ProjectID})
	if err != nil {
		return NewStats(), err
	}
	defer gcs.Close()

	var pub publisher = dryRunPublisher{}
	if !cfg.DryRun {
		producer := kafka.NewProducer(config.KafkaConfig{Brokers: cfg.Brokers}, cfg.Topic)
		defer producer.Close()
		pub = producer
	}
	return backfill(ctx, gcs, pub, cfg.Prefix, cfg.Concurrency)
}

// backfill publishes one event per listed reference, keyed by object name so
// every event for a document lands on the same partition.
func backfill(ctx context.Context, src lister, pub publisher, prefix string, concurrency int) (*Stats, error) {
	stats := NewStats()
	log := logger.WithComponent("backfill")
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	err := src.List(gctx, prefix, func(ref ingestion.DocumentReference) error {
		if gctx.Err() != nil {
			return gctx.Err()
		}
		g.Go(func() error {
			begin := time.Now()
			err := pub.Publish(gctx, ref.ObjectName(), ref, map[string]string{"source": "backfill"})
			if err != nil {
				log.Warn("publish failed", "object", ref.ObjectName(), "error", err)
			}
			stats.Record(ref.ObjectName(), time.Since(begin), err)
			return nil
		})
		return nil
	})
	g.Wait()
	return stats, err
}

type dryRunPublisher struct{}

func (dryRunPublisher) Publish(_ context.Context, key string, _ any, _ map[string]string) error {
	fmt.Println(key)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
