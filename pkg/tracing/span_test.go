package tracing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChildSpansShareTrace(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "process", "")
	require.NotEmpty(t, root.TraceID)
	assert.Equal(t, root.TraceID, TraceIDFromContext(ctx))

	_, fetch := StartChildSpan(ctx, "fetch")
	fetch.EndWithError(errors.New("not found"))
	_, extract := StartChildSpan(ctx, "extract")
	extract.End()
	root.End()

	require.Len(t, root.Children, 2)
	assert.Equal(t, root.TraceID, fetch.TraceID)
	assert.EqualError(t, fetch.Err, "not found")
	assert.False(t, root.EndTime.Before(root.StartTime))
}

func TestStartSpanKeepsGivenTraceID(t *testing.T) {
	_, span := StartSpan(context.Background(), "process", "abc")
	assert.Equal(t, "abc", span.TraceID)
}

func TestOrphanChildStartsTrace(t *testing.T) {
	ctx, span := StartChildSpan(context.Background(), "fetch")
	assert.NotEmpty(t, span.TraceID)
	assert.Same(t, span, SpanFromContext(ctx))
	assert.Empty(t, TraceIDFromContext(context.Background()))
}

func TestLogWritesTreeAtDebugOnly(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "process", "t-1")
	_, child := StartChildSpan(ctx, "embed")
	child.SetAttr("units", 3)
	child.End()
	root.End()

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	assert.Empty(t, buf.String())

	root.Log(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "span=process")
	assert.Contains(t, lines[1], "span=embed")
	assert.Contains(t, lines[1], "units=3")
	assert.Contains(t, lines[1], "depth=1")
}
