// Package kafka provides the event log clients used by the ingestion service,
// backed by segmentio/kafka-go. GroupConsumer joins a consumer group, runs one
// partition reader per assignment and exposes a poll/commit API with manual
// offset management. Producer publishes dead-letter events.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/resilience"
	"github.com/segmentio/kafka-go"
)

var (
	// ErrConsumerClosed is returned by Poll after Close.
	ErrConsumerClosed = errors.New("kafka consumer closed")
	// ErrStaleGeneration is returned when committing an event delivered by a
	// generation that has since been replaced by a rebalance.
	ErrStaleGeneration = errors.New("event belongs to a revoked generation")
)

// Event is one consumed record together with the group generation that
// delivered it.
type Event struct {
	Topic      string
	Partition  int
	Offset     int64
	Generation int32
	Key        []byte
	Value      []byte
	Time       time.Time
}

// AssignmentListener is told how many partitions each new generation
// assigned to this member.
type AssignmentListener func(generation int32, partitions []int)

// GroupConsumer reads a topic as a member of a consumer group. Offsets are
// never committed automatically.
type GroupConsumer struct {
	cfg      config.KafkaConfig
	group    *kafka.ConsumerGroup
	events   chan Event
	errs     chan error
	onAssign AssignmentListener
	logger   *slog.Logger

	mu      sync.Mutex
	current *kafka.Generation

	cancel context.CancelFunc
	done   chan struct{}
	closed chan struct{}
	once   sync.Once
}

// NewGroupConsumer joins the configured consumer group and starts following
// its generations in the background.
func NewGroupConsumer(cfg config.KafkaConfig, onAssign AssignmentListener) (*GroupConsumer, error) {
	logger := slog.Default().With("component", "kafka-consumer", "topic", cfg.Topic, "group", cfg.ConsumerGroup)
	group, err := kafka.NewConsumerGroup(kafka.ConsumerGroupConfig{
		ID:                cfg.ConsumerGroup,
		Brokers:           cfg.Brokers,
		Topics:            []string{cfg.Topic},
		StartOffset:       kafka.FirstOffset,
		SessionTimeout:    cfg.SessionTimeout,
		HeartbeatInterval: cfg.HeartbeatInterval,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Warn(fmt.Sprintf(msg, args...))
		}),
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrConfiguration, err, "creating consumer group")
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &GroupConsumer{
		cfg:      cfg,
		group:    group,
		events:   make(chan Event),
		errs:     make(chan error, 16),
		onAssign: onAssign,
		logger:   logger,
		cancel:   cancel,
		done:     make(chan struct{}),
		closed:   make(chan struct{}),
	}
	go c.run(ctx)
	return c, nil
}

func (c *GroupConsumer) run(ctx context.Context) {
	defer close(c.done)
	for {
		gen, err := c.group.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, kafka.ErrGroupClosed) {
				return
			}
			c.reportError(fmt.Errorf("joining consumer group generation: %w", err))
			select {
			case <-time.After(time.Second):
				continue
			case <-ctx.Done():
				return
			}
		}

		assignments := gen.Assignments[c.cfg.Topic]
		partitions := make([]int, 0, len(assignments))
		for _, a := range assignments {
			partitions = append(partitions, a.ID)
		}
		sort.Ints(partitions)

		c.mu.Lock()
		c.current = gen
		c.mu.Unlock()

		c.logger.Info("partitions assigned",
			"generation", gen.ID,
			"member", gen.MemberID,
			"partitions", partitions,
		)
		if c.onAssign != nil {
			c.onAssign(gen.ID, partitions)
		}

		for _, a := range assignments {
			assignment := a
			genID := gen.ID
			gen.Start(func(gctx context.Context) {
				c.readPartition(gctx, genID, assignment)
			})
		}
	}
}

// readPartition fetches one partition in order and hands each record to Poll.
// It returns when the generation ends.
func (c *GroupConsumer) readPartition(ctx context.Context, generation int32, a kafka.PartitionAssignment) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   c.cfg.Brokers,
		Topic:     c.cfg.Topic,
		Partition: a.ID,
		MinBytes:  1,
		MaxBytes:  c.cfg.MaxFetchBytes,
		MaxWait:   500 * time.Millisecond,
	})
	defer reader.Close()
	if err := reader.SetOffset(a.Offset); err != nil {
		c.reportError(fmt.Errorf("seeking partition %d to %d: %w", a.ID, a.Offset, err))
		return
	}
	c.logger.Debug("partition reader started", "generation", generation, "partition", a.ID, "offset", a.Offset)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.reportError(fmt.Errorf("fetching from partition %d: %w", a.ID, err))
			select {
			case <-time.After(time.Second):
				continue
			case <-ctx.Done():
				return
			}
		}
		ev := Event{
			Topic:      msg.Topic,
			Partition:  msg.Partition,
			Offset:     msg.Offset,
			Generation: generation,
			Key:        msg.Key,
			Value:      msg.Value,
			Time:       msg.Time,
		}
		select {
		case c.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (c *GroupConsumer) reportError(err error) {
	select {
	case c.errs <- err:
	default:
		c.logger.Error("dropping consumer error, poll is not keeping up", "error", err)
	}
}

// Poll waits up to timeout for the next event. It returns (nil, nil) when
// nothing arrived in time.
func (c *GroupConsumer) Poll(ctx context.Context, timeout time.Duration) (*Event, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ev := <-c.events:
		return &ev, nil
	case err := <-c.errs:
		return nil, err
	case <-timer.C:
		return nil, nil
	case <-c.closed:
		return nil, ErrConsumerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Commit marks ev as consumed by committing ev.Offset+1 for its partition.
// Commits through a revoked generation fail with ErrStaleGeneration.
func (c *GroupConsumer) Commit(ev Event) error {
	c.mu.Lock()
	gen := c.current
	c.mu.Unlock()
	if gen == nil || gen.ID != ev.Generation {
		return fmt.Errorf("%w: partition %d offset %d generation %d", ErrStaleGeneration, ev.Partition, ev.Offset, ev.Generation)
	}
	err := gen.CommitOffsets(map[string]map[int]int64{
		ev.Topic: {ev.Partition: ev.Offset + 1},
	})
	if err != nil {
		return fmt.Errorf("committing partition %d offset %d: %w", ev.Partition, ev.Offset+1, err)
	}
	return nil
}

// Close leaves the consumer group and stops all partition readers.
func (c *GroupConsumer) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		c.cancel()
		err = c.group.Close()
		<-c.done
		c.logger.Info("consumer closed")
	})
	return err
}

// WaitForTopic verifies that a broker is reachable and the topic has
// partitions, retrying with exponential backoff up to cfg.ConnectAttempts.
func WaitForTopic(ctx context.Context, cfg config.KafkaConfig) error {
	retryCfg := resilience.RetryConfig{
		MaxAttempts:  cfg.ConnectAttempts,
		InitialDelay: cfg.ConnectBackoff,
		Multiplier:   2,
	}
	err := resilience.Retry(ctx, "kafka connect", retryCfg, func(ctx context.Context) error {
		return checkTopic(ctx, cfg.Brokers, cfg.Topic)
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrConnection, err, "event log unreachable")
	}
	return nil
}

func checkTopic(ctx context.Context, brokers []string, topic string) error {
	var lastErr error
	for _, broker := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = fmt.Errorf("dialing %s: %w", broker, err)
			continue
		}
		partitions, err := conn.ReadPartitions(topic)
		conn.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading partitions of %s from %s: %w", topic, broker, err)
			continue
		}
		if len(partitions) == 0 {
			lastErr = fmt.Errorf("topic %s has no partitions", topic)
			continue
		}
		return nil
	}
	return lastErr
}

// DecodeJSON is a generic helper that unmarshals a Kafka message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
