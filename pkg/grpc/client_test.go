package grpc

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestAPIKeyInterceptorSetsHeader(t *testing.T) {
	var got []string
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		md, _ := metadata.FromOutgoingContext(ctx)
		got = md.Get("api-key")
		return nil
	}

	require.NoError(t, apiKeyInterceptor("secret")(context.Background(), "/qdrant.Points/Upsert", nil, nil, nil, invoker))
	assert.Equal(t, []string{"secret"}, got)

	require.NoError(t, apiKeyInterceptor("")(context.Background(), "/qdrant.Points/Upsert", nil, nil, nil, invoker))
	assert.Empty(t, got)
}

func TestLoggingInterceptorPassesErrorThrough(t *testing.T) {
	want := status.Error(codes.Unavailable, "connection refused")
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		return want
	}
	err := loggingInterceptor(slog.Default())(context.Background(), "/qdrant.Points/Get", nil, nil, nil, invoker)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestNewClientIsLazy(t *testing.T) {
	conn, err := NewClient(ClientConfig{Addr: "localhost:6334", APIKey: "k", TLS: true, KeepAlive: 30 * time.Second})
	require.NoError(t, err)
	assert.NoError(t, conn.Close())
}
