// Package config loads and validates the ingestion service configuration from
// an optional YAML file, an optional .env file and environment variables. It
// provides typed structs for every subsystem (Kafka, Storage, VectorStore,
// Postgres, Qdrant, Redis, Embedding, Pipeline, Logging, Metrics).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/errors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Kafka       KafkaConfig       `yaml:"kafka"`
	Storage     StorageConfig     `yaml:"storage"`
	VectorStore VectorStoreConfig `yaml:"vectorStore"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Qdrant      QdrantConfig      `yaml:"qdrant"`
	Redis       RedisConfig       `yaml:"redis"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// KafkaConfig holds the event log connection and consumer group settings.
type KafkaConfig struct {
	Brokers           []string      `yaml:"brokers" validate:"required,min=1,dive,required"`
	Topic             string        `yaml:"topic" validate:"required"`
	ConsumerGroup     string        `yaml:"consumerGroup" validate:"required"`
	DeadLetterTopic   string        `yaml:"deadLetterTopic"`
	SessionTimeout    time.Duration `yaml:"sessionTimeout" validate:"gt=0"`
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval" validate:"gt=0"`
	MaxFetchBytes     int           `yaml:"maxFetchBytes" validate:"gt=0"`
	ConnectAttempts   int           `yaml:"connectAttempts" validate:"gt=0"`
	ConnectBackoff    time.Duration `yaml:"connectBackoff" validate:"gt=0"`
}

// StorageConfig points at the object storage bucket holding the documents.
// ProjectID, when set, is billed for requests to requester-pays buckets.
type StorageConfig struct {
	Bucket           string `yaml:"bucket" validate:"required"`
	ProjectID        string `yaml:"projectId"`
	MaxDocumentBytes int64  `yaml:"maxDocumentBytes" validate:"gt=0"`
}

// VectorStoreConfig selects and sizes the vector store backend.
type VectorStoreConfig struct {
	Backend   string `yaml:"backend" validate:"required,oneof=pgvector qdrant memory"`
	IndexName string `yaml:"indexName" validate:"required"`
	Dimension int    `yaml:"dimension" validate:"gt=0"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// QdrantConfig holds the Qdrant gRPC endpoint. APIKey is sent as the
// api-key header on every call; managed clusters also need TLS.
type QdrantConfig struct {
	Addr      string        `yaml:"addr"`
	APIKey    string        `yaml:"apiKey"`
	TLS       bool          `yaml:"tls"`
	KeepAlive time.Duration `yaml:"keepAlive"`
}

// RedisConfig holds the dedup cache connection. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// EmbeddingConfig controls the embedding API client.
type EmbeddingConfig struct {
	APIKey    string `yaml:"apiKey" validate:"required"`
	BaseURL   string `yaml:"baseUrl"`
	Model     string `yaml:"model" validate:"required"`
	MaxTokens int    `yaml:"maxTokens" validate:"gt=0"`
}

// PipelineConfig controls worker concurrency, deadlines and batching.
type PipelineConfig struct {
	WorkerPoolSize     int           `yaml:"workerPoolSize" validate:"gt=0"`
	MaxInFlight        int           `yaml:"maxInFlight" validate:"gt=0,ltefield=WorkerPoolSize"`
	PerMessageDeadline time.Duration `yaml:"perMessageDeadline" validate:"gt=0"`
	PollTimeout        time.Duration `yaml:"pollTimeout" validate:"gt=0"`
	ErrorPause         time.Duration `yaml:"errorPause" validate:"gt=0"`
	ShutdownGrace      time.Duration `yaml:"shutdownGrace" validate:"gt=0"`
	BatchSize          int           `yaml:"batchSize" validate:"gt=0"`
	MinUnitLength      int           `yaml:"minUnitLength" validate:"gt=0"`
	SentimentMaxTokens int           `yaml:"sentimentMaxTokens" validate:"gt=0"`
	Tokenizer          string        `yaml:"tokenizer"`
	LedgerEnabled      bool          `yaml:"ledgerEnabled"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
}

// MetricsConfig controls the Prometheus and health endpoint server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port" validate:"gte=0,lte=65535"`
}

// Load reads the optional .env file and YAML config file (CONFIG_FILE when
// path is empty), applies environment overrides and validates the result.
// Every failure wraps ErrConfiguration.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.Wrap(apperrors.ErrConfiguration, err, "loading .env file")
	}
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrConfiguration, err, "reading config file "+path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrConfiguration, err, "parsing config file "+path)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and ranges.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return apperrors.Newf(apperrors.ErrConfiguration, "invalid fields: %s", strings.Join(fields, ", "))
		}
		return apperrors.Wrap(apperrors.ErrConfiguration, err, "validating config")
	}
	return nil
}

// DefaultTopic is the topic document reference events are published to and
// consumed from when TOPIC is not set.
const DefaultTopic = "trace_metadata"

// defaultConfig returns a Config with the in-cluster defaults. Bucket, index
// name and API key have no defaults and must be supplied.
func defaultConfig() *Config {
	return &Config{
		Kafka: KafkaConfig{
			Brokers:           []string{"kafka.kafka.svc.cluster.local:9092"},
			Topic:             DefaultTopic,
			ConsumerGroup:     "pinecone-consumer-group",
			SessionTimeout:    30 * time.Second,
			HeartbeatInterval: 10 * time.Second,
			MaxFetchBytes:     1048576,
			ConnectAttempts:   5,
			ConnectBackoff:    2 * time.Second,
		},
		Storage: StorageConfig{
			MaxDocumentBytes: 64 << 20,
		},
		VectorStore: VectorStoreConfig{
			Backend:   "pgvector",
			Dimension: 1536,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "traceingestor",
			User:            "traceingestor",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Qdrant: QdrantConfig{
			Addr:      "localhost:6334",
			KeepAlive: 30 * time.Second,
		},
		Redis: RedisConfig{
			PoolSize: 10,
			CacheTTL: 24 * time.Hour,
		},
		Embedding: EmbeddingConfig{
			Model:     "text-embedding-ada-002",
			MaxTokens: 8191,
		},
		Pipeline: PipelineConfig{
			WorkerPoolSize:     5,
			MaxInFlight:        1,
			PerMessageDeadline: 10 * time.Second,
			PollTimeout:        time.Second,
			ErrorPause:         time.Second,
			ShutdownGrace:      15 * time.Second,
			BatchSize:          100,
			MinUnitLength:      30,
			SentimentMaxTokens: 512,
			Tokenizer:          "cl100k_base",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads environment variables and overrides the
// corresponding config fields. Unparsable values are configuration errors.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("BOOTSTRAP_SERVERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := os.Getenv("GROUP_ID"); v != "" {
		cfg.Kafka.ConsumerGroup = v
	}
	if v := os.Getenv("DEAD_LETTER_TOPIC"); v != "" {
		cfg.Kafka.DeadLetterTopic = v
	}
	if v := os.Getenv("BUCKET_NAME"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("GCP_PROJECT"); v != "" {
		cfg.Storage.ProjectID = v
	}
	if v := os.Getenv("VECTOR_INDEX_NAME"); v != "" {
		cfg.VectorStore.IndexName = v
	}
	if v := os.Getenv("VECTOR_BACKEND"); v != "" {
		cfg.VectorStore.Backend = v
	}
	if v := os.Getenv("QDRANT_ADDR"); v != "" {
		cfg.Qdrant.Addr = v
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" {
		cfg.Qdrant.APIKey = v
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"POSTGRES_PORT", &cfg.Postgres.Port},
		{"VECTOR_DIMENSION", &cfg.VectorStore.Dimension},
		{"WORKER_POOL_SIZE", &cfg.Pipeline.WorkerPoolSize},
		{"MAX_IN_FLIGHT", &cfg.Pipeline.MaxInFlight},
		{"UPSERT_BATCH_SIZE", &cfg.Pipeline.BatchSize},
		{"MIN_UNIT_LENGTH", &cfg.Pipeline.MinUnitLength},
		{"METRICS_PORT", &cfg.Metrics.Port},
	}
	for _, o := range ints {
		if err := overrideInt(o.key, o.dst); err != nil {
			return err
		}
	}
	if v := os.Getenv("MAX_DOCUMENT_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return apperrors.Newf(apperrors.ErrConfiguration, "MAX_DOCUMENT_BYTES=%q is not an integer", v)
		}
		cfg.Storage.MaxDocumentBytes = n
	}
	if v := os.Getenv("PER_MESSAGE_DEADLINE_SECONDS"); v != "" {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return apperrors.Newf(apperrors.ErrConfiguration, "PER_MESSAGE_DEADLINE_SECONDS=%q is not a number", v)
		}
		cfg.Pipeline.PerMessageDeadline = time.Duration(secs * float64(time.Second))
	}
	if v := os.Getenv("LEDGER_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return apperrors.Newf(apperrors.ErrConfiguration, "LEDGER_ENABLED=%q is not a boolean", v)
		}
		cfg.Pipeline.LedgerEnabled = b
	}
	if v := os.Getenv("QDRANT_TLS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return apperrors.Newf(apperrors.ErrConfiguration, "QDRANT_TLS=%q is not a boolean", v)
		}
		cfg.Qdrant.TLS = b
	}
	return nil
}

func overrideInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return apperrors.Newf(apperrors.ErrConfiguration, "%s=%q is not an integer", key, v)
	}
	*dst = n
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
