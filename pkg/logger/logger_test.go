package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContextCarriesMessagePosition(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	SetupWriter(&buf, "info", "json")

	ctx := WithMessage(context.Background(), "traces", 3, 42)
	FromContext(ctx).Info("hello")

	out := buf.String()
	assert.Contains(t, out, `"topic":"traces"`)
	assert.Contains(t, out, `"partition":3`)
	assert.Contains(t, out, `"offset":42`)

	msg, ok := MessageFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, Message{Topic: "traces", Partition: 3, Offset: 42}, msg)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestDebugSuppressedAtInfo(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	SetupWriter(&buf, "info", "text")
	slog.Debug("hidden")
	assert.Empty(t, buf.String())
}
