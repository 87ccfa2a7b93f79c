package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/config"
	"github.com/segmentio/kafka-go"
)

// DeadLetter is the envelope published for an event that can never be
// processed. The raw payload is kept verbatim so it can be replayed by hand.
type DeadLetter struct {
	SourceTopic string    `json:"sourceTopic"`
	Partition   int       `json:"partition"`
	Offset      int64     `json:"offset"`
	Stage       string    `json:"stage"`
	Reason      string    `json:"reason"`
	Payload     string    `json:"payload"`
	FailedAt    time.Time `json:"failedAt"`
}

// Producer publishes JSON-encoded events to a Kafka topic.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewProducer creates a Producer for the given topic.
func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
	return &Producer{
		writer: w,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// Publish serialises value and writes it under key synchronously.
func (p *Producer) Publish(ctx context.Context, key string, value any, headers map[string]string) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling event value: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
	}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish message",
			"key", key,
			"error", err,
		)
		return fmt.Errorf("publishing to kafka: %w", err)
	}
	p.logger.Debug("message published",
		"key", key,
		"value_size", len(payload),
	)
	return nil
}

// PublishDeadLetter publishes dl keyed by its source partition and offset.
func (p *Producer) PublishDeadLetter(ctx context.Context, dl DeadLetter) error {
	key := dl.SourceTopic + "-" + strconv.Itoa(dl.Partition) + "-" + strconv.FormatInt(dl.Offset, 10)
	return p.Publish(ctx, key, dl, map[string]string{
		"stage":  dl.Stage,
		"reason": dl.Reason,
	})
}

// Close flushes pending writes and closes the underlying Kafka writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
