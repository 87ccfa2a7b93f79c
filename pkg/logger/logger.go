package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type contextKey struct{}

// Setup installs the process-wide slog handler writing to stdout.
func Setup(level string, format string) {
	SetupWriter(os.Stdout, level, format)
}

func SetupWriter(w io.Writer, level string, format string) {
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// Message identifies the event a piece of work belongs to.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
}

// WithMessage tags ctx with the log position of the event being processed so
// that every log line emitted on its behalf can be replayed by hand.
func WithMessage(ctx context.Context, topic string, partition int, offset int64) context.Context {
	return context.WithValue(ctx, contextKey{}, Message{Topic: topic, Partition: partition, Offset: offset})
}

// MessageFromContext returns the position stored by WithMessage.
func MessageFromContext(ctx context.Context) (Message, bool) {
	msg, ok := ctx.Value(contextKey{}).(Message)
	return msg, ok
}

func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if msg, ok := MessageFromContext(ctx); ok {
		logger = logger.With("topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
	}
	return logger
}

func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
