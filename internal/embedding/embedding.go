// Package embedding turns content unit text into vectors through an
// OpenAI-compatible embeddings API. Calls are guarded by a circuit breaker
// and every returned vector is checked against the index dimension.
package embedding

import (
	"context"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/resilience"
)

// Embedder returns the embedding vector of a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options tune a Client. Zero values fall back to defaults.
type Options struct {
	Dimension int
	MaxTokens int
	Counter   tokenizer.Counter
	Breaker   *resilience.CircuitBreaker
}

// Client embeds one text per call.
type Client struct {
	embedder  embeddings.Embedder
	breaker   *resilience.CircuitBreaker
	counter   tokenizer.Counter
	dimension int
	maxTokens int
	logger    *slog.Logger
}

// NewOpenAI builds a Client on the langchaingo OpenAI embedder.
func NewOpenAI(cfg config.EmbeddingConfig, opts Options) (*Client, error) {
	llmOpts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		llmOpts = append(llmOpts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(llmOpts...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrConfiguration, err, "creating openai client")
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrConfiguration, err, "creating embedder")
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = cfg.MaxTokens
	}
	return New(embedder, opts), nil
}

// New wraps any langchaingo embedder.
func New(embedder embeddings.Embedder, opts Options) *Client {
	if opts.Counter == nil {
		opts.Counter = tokenizer.WordCounter{}
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 8191
	}
	if opts.Breaker == nil {
		opts.Breaker = resilience.NewCircuitBreaker("embedding", resilience.CircuitBreakerConfig{})
	}
	return &Client{
		embedder:  embedder,
		breaker:   opts.Breaker,
		counter:   opts.Counter,
		dimension: opts.Dimension,
		maxTokens: opts.MaxTokens,
		logger:    slog.Default().With("component", "embedder"),
	}
}

// Embed truncates text to the model's token budget and returns its vector.
// API failures and an open circuit wrap ErrUpstreamUnavailable; a vector of
// the wrong size wraps ErrUnexpected.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	input := c.counter.Truncate(text, c.maxTokens)
	if len(input) < len(text) {
		c.logger.Debug("embedding input truncated", "from_bytes", len(text), "to_bytes", len(input))
	}

	var vectors [][]float32
	err := c.breaker.Execute(func() error {
		var err error
		vectors, err = c.embedder.EmbedDocuments(ctx, []string{input})
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Wrap(apperrors.ErrTimeout, err, "embedding request")
		}
		return nil, apperrors.Wrap(apperrors.ErrUpstreamUnavailable, err, "embedding request")
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, apperrors.New(apperrors.ErrUnexpected, "embedder returned no vector")
	}
	vec := vectors[0]
	if c.dimension > 0 && len(vec) != c.dimension {
		return nil, apperrors.Newf(apperrors.ErrUnexpected, "embedding has %d dimensions, index expects %d", len(vec), c.dimension)
	}
	return vec, nil
}
